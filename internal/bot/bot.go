package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/Bummbumdut/telegram-fishcast-bot/internal/analysis"
	"github.com/Bummbumdut/telegram-fishcast-bot/internal/fishcast"
	"github.com/Bummbumdut/telegram-fishcast-bot/internal/storage"
)

// BotAPI defines the interface for Telegram bot API operations.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Bot is the main Telegram bot handler.
type Bot struct {
	tg         BotAPI
	state      BotState
	store      storage.Store
	client     *fishcast.Client
	tracker    *analysis.UsageTracker
	downloader *ImageDownloader
	adminID    int64

	// Handlers
	analyzeHandler *AnalyzeHandler
	catchHandler   *CatchHandler
}

// NewBot creates a new Bot instance.
func NewBot(tg BotAPI, store storage.Store, client *fishcast.Client, tracker *analysis.UsageTracker, adminID int64) *Bot {
	bot := &Bot{
		tg:         tg,
		store:      store,
		client:     client,
		tracker:    tracker,
		downloader: NewImageDownloader().WithMaxSize(analysis.MaxImageBytes),
		adminID:    adminID,
	}

	bot.state = bot.NewBotState()
	bot.analyzeHandler = NewAnalyzeHandler(tg, store, bot.downloader)
	bot.catchHandler = NewCatchHandler(client)

	return bot
}

// Shutdown stops all session workers gracefully.
func (b *Bot) Shutdown() {
	b.state.Shutdown()
}

// HandleUpdate is the main message router.
// It dispatches messages to the appropriate session worker for sequential processing.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, false)
}

// handleUpdateSync is like HandleUpdate but waits for message processing to complete.
// Used in tests where we need synchronous behavior.
func (b *Bot) handleUpdateSync(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, true)
}

// dispatchUpdate routes updates to the appropriate session worker.
// If sync is true, it waits for message processing to complete.
func (b *Bot) dispatchUpdate(ctx context.Context, update tgbotapi.Update, sync bool) {
	var userId int64

	// Determine user ID from the update
	if update.CallbackQuery != nil {
		userId = update.CallbackQuery.From.ID
	} else if update.Message != nil {
		userId = update.Message.From.ID
	} else {
		return
	}

	// Check if user is allowed (admin always allowed)
	// MUST be before getUserSession to prevent memory exhaustion from random user IDs
	if userId != b.adminID {
		allowed, err := b.store.IsUserAllowed(userId)
		if err != nil {
			log.Error().Err(err).Int64("user_id", userId).Msg("whitelist check failed")
			return // Fail closed
		}
		if !allowed {
			return // Silent drop
		}
	}

	session, err := b.state.getUserSession(userId)
	if err != nil {
		log.Error().Err(err).Send()
		return
	}

	// Helper to send sync or async based on flag
	send := func(msg SessionMessage) {
		if sync {
			session.SendSync(msg)
		} else {
			session.Send(msg)
		}
	}

	// Dispatch to session worker based on update type
	if update.CallbackQuery != nil {
		send(SessionMessage{
			Type:          "callback",
			Ctx:           ctx,
			CallbackQuery: update.CallbackQuery,
		})
		return
	}

	if update.Message != nil {
		log.Info().Str("text", update.Message.Text).Str("caption", update.Message.Caption).Msg("got message")

		switch {
		case len(update.Message.Photo) > 0:
			send(SessionMessage{
				Type:    "photo",
				Ctx:     ctx,
				Message: update.Message,
			})
		case update.Message.Document != nil:
			send(SessionMessage{
				Type:    "document",
				Ctx:     ctx,
				Message: update.Message,
			})
		default:
			send(SessionMessage{
				Type:    "text",
				Ctx:     ctx,
				Message: update.Message,
			})
		}
	}
}

// HandleSessionMessage implements MessageHandler interface.
// This is called by the session worker goroutine for sequential processing.
// No mutex locking is needed here since only one goroutine accesses session state.
func (b *Bot) HandleSessionMessage(ctx context.Context, session *UserSession, msg SessionMessage) {
	switch msg.Type {
	case "callback":
		b.handleCallbackQuery(ctx, session, msg.CallbackQuery)
	case "photo":
		b.analyzeHandler.HandlePhoto(ctx, session, msg.Message)
	case "document":
		b.analyzeHandler.HandleDocument(ctx, session, msg.Message)
	case "text":
		b.handleTextMessage(ctx, session, msg.Message)
	case "album_timeout":
		b.analyzeHandler.ProcessAlbumTimeout(msg.Ctx, session, msg.AlbumBuffer)
	case "analysis_complete":
		b.analyzeHandler.HandleAnalysisComplete(msg.Ctx, session, msg.Outcome)
	}
}

// handleTextMessage processes text messages.
// Called from session worker - no locking needed.
func (b *Bot) handleTextMessage(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	b.handleCommand(ctx, session, message)
}

// handleCommand processes bot commands.
// Called from session worker - no locking needed.
func (b *Bot) handleCommand(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	command, args := parseCommand(message.Text)
	argsStr := strings.Join(args, " ")
	switch command {
	case "/start":
		session.reply(MsgWelcome)
	case "/analyze":
		b.analyzeHandler.HandleAnalyzeCommand(ctx, session, argsStr)
	case "/provider":
		b.handleProviderCommand(session, argsStr)
	case "/status":
		b.handleStatusCommand(session)
	case "/usage":
		b.handleUsageCommand(ctx, session)
	case "/reset":
		LogUser(session.userId, "/reset")
		session.reset()
		session.replyAndRemoveCustomKeyboard(MsgAnalysisReset)
	case "/forecast":
		b.catchHandler.HandleForecastCommand(ctx, session, argsStr)
	case "/catch":
		b.catchHandler.HandleCatchCommand(ctx, session, argsStr)
	case "/catches":
		b.catchHandler.HandleCatchesCommand(ctx, session)
	case "/health":
		b.catchHandler.HandleHealthCommand(ctx, session)
	case "/admin":
		b.handleAdminCommand(session, argsStr)
	case "/version":
		session.reply(MsgVersionInfo, Version, BuildTime)
	default:
		session.reply(MsgStartPrompt)
	}
}

// handleCallbackQuery handles inline keyboard button presses.
// Called from session worker - no locking needed.
func (b *Bot) handleCallbackQuery(ctx context.Context, session *UserSession, query *tgbotapi.CallbackQuery) {
	// Answer the callback to remove the loading state
	callback := tgbotapi.NewCallback(query.ID, "")
	b.tg.Request(callback)

	if strings.HasPrefix(query.Data, "analyze:") {
		b.analyzeHandler.HandleAnalyzeCallback(ctx, session, query)
	}
}

// handleProviderCommand handles /provider - view, set or clear the default provider.
func (b *Bot) handleProviderCommand(session *UserSession, args string) {
	args = strings.TrimSpace(args)

	if args == "" {
		if session.hasDefaultProvider {
			session.reply(MsgCurrentProvider, session.defaultProvider.DisplayName())
		} else {
			session.reply(MsgNoProviderSet)
		}
		return
	}

	if args == "off" {
		if err := session.clearDefaultProvider(); err != nil {
			session.replyWithError(err)
			return
		}
		session.reply(MsgProviderCleared)
		return
	}

	p, err := fishcast.ParseProvider(args)
	if err != nil {
		session.reply(MsgUnknownProvider, args)
		return
	}
	if err := session.setDefaultProvider(p); err != nil {
		session.replyWithError(err)
		return
	}
	LogState(session.userId, "default provider set to %s", p)
	session.reply(MsgDefaultProvider, p.DisplayName())
}

// handleStatusCommand renders the session's staging state.
func (b *Bot) handleStatusCommand(session *UserSession) {
	state := session.analysis.State()
	switch {
	case state.Busy:
		session.reply(MsgStatusBusy)
	case state.ErrorMsg != "":
		session.reply(MsgStatusError, escapeMarkdown(state.ErrorMsg))
	case state.Result != nil:
		session.reply(MsgStatusResult, escapeMarkdown(state.Result.Provider))
	case state.Image != nil:
		session.reply(MsgStatusStaged, escapeMarkdown(state.Image.Name), formatByteSize(state.Image.SizeBytes))
	default:
		session.reply(MsgStatusIdle)
	}
}

// handleUsageCommand fetches fresh usage stats, falling back to the last
// snapshot when the endpoint is unavailable.
func (b *Bot) handleUsageCommand(ctx context.Context, session *UserSession) {
	stats, err := b.tracker.Refresh(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("usage refresh failed, trying snapshot")
		var ok bool
		stats, ok = b.tracker.Snapshot()
		if !ok {
			session.reply(MsgUsageUnknown)
			return
		}
	}
	session.reply(MsgUsageReport,
		stats.Daily.Used, stats.Daily.Limit, stats.Daily.Remaining, stats.Daily.Percentage,
		stats.Minute.Used, stats.Minute.Limit, stats.Minute.Remaining)
}

// handleAdminCommand handles /admin command with subcommands.
// Only the admin user can use this command (defense in depth check).
func (b *Bot) handleAdminCommand(session *UserSession, args string) {
	// Defense in depth: verify caller is admin even though whitelist check passed
	if session.userId != b.adminID {
		return // Silent drop for non-admin users
	}

	parts := strings.Fields(args)
	if len(parts) == 0 {
		session.reply(MsgAdminUsage)
		return
	}

	switch parts[0] {
	case "users":
		if len(parts) < 2 {
			session.reply(MsgAdminUsage)
			return
		}
		b.handleAdminUsersCommand(session, parts[1], parts[2:])
	case "stats":
		b.handleAdminStatsCommand(session)
	default:
		session.reply(MsgAdminUsage)
	}
}

// handleAdminUsersCommand handles /admin users subcommands.
func (b *Bot) handleAdminUsersCommand(session *UserSession, action string, args []string) {
	switch action {
	case "add":
		if len(args) < 1 {
			session.reply(MsgAdminUserAddUsage)
			return
		}
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			session.reply(MsgAdminUserInvalidID)
			return
		}
		if err := b.store.AddAllowedUser(userID, session.userId); err != nil {
			session.replyWithError(err)
			return
		}
		session.reply(MsgAdminUserAdded, userID)

	case "remove":
		if len(args) < 1 {
			session.reply(MsgAdminUserRemoveUsage)
			return
		}
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			session.reply(MsgAdminUserInvalidID)
			return
		}
		if err := b.store.RemoveAllowedUser(userID); err != nil {
			session.replyWithError(err)
			return
		}
		session.reply(MsgAdminUserRemoved, userID)

	case "list":
		users, err := b.store.GetAllowedUsers()
		if err != nil {
			session.replyWithError(err)
			return
		}
		if len(users) == 0 {
			session.reply(MsgAdminNoUsers)
			return
		}
		var sb strings.Builder
		sb.WriteString(MsgAdminAllowedUsers)
		for _, u := range users {
			sb.WriteString(fmt.Sprintf("• `%d` (added %s)\n", u.TelegramID, u.AddedAt.Format("2006-01-02")))
		}
		session.reply(sb.String())

	default:
		session.reply(MsgAdminUsage)
	}
}

// handleAdminStatsCommand summarizes the analysis journal across all users.
func (b *Bot) handleAdminStatsCommand(session *UserSession) {
	stats, err := b.store.GetAnalysisStats(0)
	if err != nil {
		session.replyWithError(err)
		return
	}

	var sb strings.Builder
	sb.WriteString(formatReplyText(MsgAdminStats, stats.Total, stats.Succeeded, stats.Failed))

	recent, err := b.store.GetRecentAnalyses(0, 5)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load recent analyses")
	} else if len(recent) > 0 {
		sb.WriteString("\n\nRecent:\n")
		for _, r := range recent {
			mark := "✅"
			if !r.OK {
				mark = "❌"
			}
			sb.WriteString(fmt.Sprintf("%s %s · user `%d` · %dms\n", mark, r.Provider, r.TelegramID, r.DurationMS))
		}
	}
	session.reply(sb.String())
}
