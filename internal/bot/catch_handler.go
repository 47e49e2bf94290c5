package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Bummbumdut/telegram-fishcast-bot/internal/analysis"
	"github.com/Bummbumdut/telegram-fishcast-bot/internal/fishcast"
)

// maxCatchesShown caps the /catches listing to keep replies readable.
const maxCatchesShown = 10

// CatchHandler serves the catch log, forecast and health commands. These all
// talk straight to the FishCast API with no session state.
type CatchHandler struct {
	client *fishcast.Client
}

// NewCatchHandler creates a catch handler.
func NewCatchHandler(client *fishcast.Client) *CatchHandler {
	return &CatchHandler{client: client}
}

// HandleCatchCommand handles /catch species | bait | location | notes.
// Called from session worker - no locking needed.
func (h *CatchHandler) HandleCatchCommand(ctx context.Context, session *UserSession, args string) {
	parts := strings.Split(args, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		session.reply(MsgCatchUsage)
		return
	}

	now := time.Now()
	entry := fishcast.CatchEntry{
		Species:  parts[0],
		Bait:     parts[1],
		Location: parts[2],
		Date:     now.Format("2006-01-02"),
		Time:     now.Format("15:04"),
	}
	if len(parts) > 3 {
		entry.Notes = strings.Join(parts[3:], " | ")
	}

	LogUser(session.userId, "/catch %s at %s", entry.Species, entry.Location)
	confirmation, err := h.client.LogCatch(ctx, entry)
	if err != nil {
		session.reply(MsgCatchFailed, escapeMarkdown(analysis.UserMessage(err)))
		return
	}
	session.reply(MsgCatchLogged, escapeMarkdown(confirmation))
}

// HandleCatchesCommand handles /catches.
// Called from session worker - no locking needed.
func (h *CatchHandler) HandleCatchesCommand(ctx context.Context, session *UserSession) {
	entries, err := h.client.Catches(ctx)
	if err != nil {
		session.reply(MsgCatchesErr, escapeMarkdown(analysis.UserMessage(err)))
		return
	}
	if len(entries) == 0 {
		session.reply(MsgNoCatches)
		return
	}

	// Show the newest entries last so the freshest catch sits at the bottom
	// of the reply
	shown := entries
	if len(shown) > maxCatchesShown {
		shown = shown[len(shown)-maxCatchesShown:]
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(MsgCatchesHeader, pluralize("catch", "catches", len(entries))))
	for _, e := range shown {
		sb.WriteString(fmt.Sprintf(MsgCatchItem,
			escapeMarkdown(e.Species), escapeMarkdown(e.Bait), escapeMarkdown(e.Location), e.Date, e.Time))
		if e.Notes != "" {
			sb.WriteString(fmt.Sprintf(MsgCatchNotes, escapeMarkdown(e.Notes)))
		}
	}
	session.reply(sb.String())
}

// HandleForecastCommand handles /forecast <location>.
// Called from session worker - no locking needed.
func (h *CatchHandler) HandleForecastCommand(ctx context.Context, session *UserSession, args string) {
	location := strings.TrimSpace(args)
	if location == "" {
		session.reply(MsgForecastUsage)
		return
	}

	LogUser(session.userId, "/forecast %s", location)
	session.sendTypingAction()

	report, err := h.client.Forecast(ctx, fishcast.ForecastRequest{Location: location})
	if err != nil {
		session.reply(MsgForecastErr, escapeMarkdown(analysis.UserMessage(err)))
		return
	}
	session.reply(MsgForecastReport,
		escapeMarkdown(report.Location),
		escapeMarkdown(report.Recommendation),
		escapeMarkdown(report.Conditions),
		escapeMarkdown(report.BestTimes))
}

// HandleHealthCommand handles /health.
// Called from session worker - no locking needed.
func (h *CatchHandler) HandleHealthCommand(ctx context.Context, session *UserSession) {
	status, err := h.client.Health(ctx)
	if err != nil {
		session.reply(MsgHealthErr, escapeMarkdown(analysis.UserMessage(err)))
		return
	}
	if status.Status != "healthy" {
		session.reply(MsgHealthDegraded, escapeMarkdown(status.Service), escapeMarkdown(status.Status))
		return
	}
	session.reply(MsgHealthOk, escapeMarkdown(status.Service))
}
