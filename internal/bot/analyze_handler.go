package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Bummbumdut/telegram-fishcast-bot/internal/analysis"
	"github.com/Bummbumdut/telegram-fishcast-bot/internal/fishcast"
	"github.com/Bummbumdut/telegram-fishcast-bot/internal/storage"
)

const (
	// albumBufferTimeout is how long to wait for more photos of an album
	// before treating it as complete. Telegram sends album photos as
	// individual messages with a shared MediaGroupID.
	albumBufferTimeout = 1500 * time.Millisecond
	// maxAlbumPhotos caps how many album photos are buffered.
	maxAlbumPhotos = 10
)

// AnalyzeHandler drives photo staging and spot analysis.
type AnalyzeHandler struct {
	tg         BotAPI
	store      storage.Store
	downloader *ImageDownloader
}

// NewAnalyzeHandler creates an analyze handler.
func NewAnalyzeHandler(tg BotAPI, store storage.Store, downloader *ImageDownloader) *AnalyzeHandler {
	return &AnalyzeHandler{
		tg:         tg,
		store:      store,
		downloader: downloader,
	}
}

// HandlePhoto processes an incoming photo message.
// Called from session worker - no locking needed.
func (h *AnalyzeHandler) HandlePhoto(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	if len(message.Photo) == 0 {
		return
	}
	// Telegram orders PhotoSize entries smallest first
	largest := message.Photo[len(message.Photo)-1]

	if message.MediaGroupID != "" {
		h.bufferAlbumPhoto(session, AlbumPhoto{
			FileID: largest.FileID,
			Width:  largest.Width,
			Height: largest.Height,
		}, message.MediaGroupID)
		return
	}

	LogUser(session.userId, "sent a photo (%dx%d)", largest.Width, largest.Height)
	h.processSinglePhoto(ctx, session, largest.FileID, message.Caption)
}

// HandleDocument processes a file sent without photo compression.
// Called from session worker - no locking needed.
func (h *AnalyzeHandler) HandleDocument(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	doc := message.Document
	LogUser(session.userId, "sent document %s (%s, %d bytes)", doc.FileName, doc.MimeType, doc.FileSize)

	// Check the declared metadata before downloading anything. Staging
	// applies the same rules to the downloaded bytes.
	if err := analysis.Validate(doc.MimeType, int64(doc.FileSize)); err != nil {
		session.reply("%s", analysis.UserMessage(err))
		return
	}

	data, err := h.downloader.DownloadFromTelegramFileID(ctx, h.tg.GetFileDirectURL, doc.FileID)
	if err != nil {
		log.Error().Err(err).Int64("userId", session.userId).Msg("document download failed")
		session.reply(MsgPhotoDownloadErr)
		return
	}

	h.stagePhoto(ctx, session, analysis.File{
		Name:     doc.FileName,
		MIMEType: doc.MimeType,
		Data:     data,
	}, message.Caption)
}

// bufferAlbumPhoto collects photos of one album until the buffer timer fires.
// Called from session worker - no locking needed.
func (h *AnalyzeHandler) bufferAlbumPhoto(session *UserSession, photo AlbumPhoto, mediaGroupID string) {
	buffer := session.albumBuffer

	// A photo from a different album replaces the buffer outright. The
	// staged image only ever comes from one album at a time anyway.
	if buffer == nil || buffer.MediaGroupID != mediaGroupID {
		if buffer != nil && buffer.Timer != nil {
			buffer.Timer.Stop()
		}
		buffer = &AlbumBuffer{
			MediaGroupID:  mediaGroupID,
			Photos:        []AlbumPhoto{},
			FirstReceived: time.Now(),
		}
		session.albumBuffer = buffer
	}

	if len(buffer.Photos) < maxAlbumPhotos {
		buffer.Photos = append(buffer.Photos, photo)
	}

	// Reset or start timer - dispatch through worker channel when done
	if buffer.Timer != nil {
		buffer.Timer.Stop()
	}

	// The update context may be cancelled by the time the timer fires
	capturedBuffer := buffer
	buffer.Timer = time.AfterFunc(albumBufferTimeout, func() {
		session.Send(SessionMessage{
			Type:        "album_timeout",
			Ctx:         context.Background(),
			AlbumBuffer: capturedBuffer,
		})
	})
}

// ProcessAlbumTimeout handles an album whose buffer timer fired. Only the
// first photo is staged; the analysis service takes one image per call.
// Called from session worker - no locking needed.
func (h *AnalyzeHandler) ProcessAlbumTimeout(ctx context.Context, session *UserSession, albumBuffer *AlbumBuffer) {
	// Verify this is still the active album buffer (wasn't replaced or cleared)
	if session.albumBuffer != albumBuffer {
		return
	}

	photos := albumBuffer.Photos
	session.albumBuffer = nil
	if len(photos) == 0 {
		return
	}

	log.Info().Int64("userId", session.userId).Int("count", len(photos)).Msg("album complete, staging first photo")
	LogUser(session.userId, "sent an album of %d photos", len(photos))
	if len(photos) > 1 {
		session.reply(MsgAlbumFirstPhotoUsed, pluralize("photo", "photos", len(photos)-1))
	}

	h.processSinglePhoto(ctx, session, photos[0].FileID, "")
}

// processSinglePhoto downloads a Telegram photo and stages it.
func (h *AnalyzeHandler) processSinglePhoto(ctx context.Context, session *UserSession, fileID string, caption string) {
	data, err := h.downloader.DownloadFromTelegramFileID(ctx, h.tg.GetFileDirectURL, fileID)
	if err != nil {
		log.Error().Err(err).Int64("userId", session.userId).Msg("photo download failed")
		session.reply(MsgPhotoDownloadErr)
		return
	}

	// Telegram compresses photos to JPEG
	name := fmt.Sprintf("spot_%s.jpg", time.Now().Format("20060102_150405"))
	h.stagePhoto(ctx, session, analysis.File{
		Name:     name,
		MIMEType: "image/jpeg",
		Data:     data,
	}, caption)
}

// stagePhoto stages a downloaded file and either starts an analysis right
// away (caption provider or stored default) or asks for a provider choice.
func (h *AnalyzeHandler) stagePhoto(ctx context.Context, session *UserSession, file analysis.File, caption string) {
	staged, err := session.analysis.Accept(file)
	if err != nil {
		LogError(session.userId, "staging rejected: %v", err)
		session.reply("%s", analysis.UserMessage(err))
		return
	}

	StartAuditLog(session.userId)
	LogState(session.userId, "staged %s (%d bytes, %s)", staged.Name, staged.SizeBytes, staged.MIMEType)

	if p, ok := providerFromCaption(caption); ok {
		h.startAnalysis(ctx, session, p)
		return
	}
	if session.hasDefaultProvider {
		h.startAnalysis(ctx, session, session.defaultProvider)
		return
	}

	msg := tgbotapi.NewMessage(session.userId, formatReplyText(MsgPhotoStaged, formatByteSize(staged.SizeBytes)))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = makeProviderKeyboard()
	session.replyWithMessage(msg)
}

// providerFromCaption recognizes a provider named in a photo caption, with
// or without a leading /analyze.
func providerFromCaption(caption string) (fishcast.Provider, bool) {
	caption = strings.TrimSpace(caption)
	caption = strings.TrimSpace(strings.TrimPrefix(caption, "/analyze"))
	if caption == "" {
		return 0, false
	}
	p, err := fishcast.ParseProvider(caption)
	if err != nil {
		return 0, false
	}
	return p, true
}

// makeProviderKeyboard builds the inline keyboard for provider selection.
// Callback data uses the analyze: prefix.
func makeProviderKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(BtnProviderSmart, "analyze:smart"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(BtnProviderGemini, "analyze:gemini"),
			tgbotapi.NewInlineKeyboardButtonData(BtnProviderHF, "analyze:hf"),
		),
	)
}

// HandleAnalyzeCommand handles /analyze with an optional provider argument.
// Without an argument the stored default applies, then smart auto.
// Called from session worker - no locking needed.
func (h *AnalyzeHandler) HandleAnalyzeCommand(ctx context.Context, session *UserSession, args string) {
	args = strings.TrimSpace(args)
	LogUser(session.userId, "/analyze %s", args)

	provider := fishcast.ProviderSmartAuto
	switch {
	case args != "":
		p, err := fishcast.ParseProvider(args)
		if err != nil {
			session.reply(MsgUnknownProvider, args)
			return
		}
		provider = p
	case session.hasDefaultProvider:
		provider = session.defaultProvider
	}

	h.startAnalysis(ctx, session, provider)
}

// HandleAnalyzeCallback handles an analyze:<provider> keyboard press.
// Called from session worker - no locking needed.
func (h *AnalyzeHandler) HandleAnalyzeCallback(ctx context.Context, session *UserSession, query *tgbotapi.CallbackQuery) {
	provider, err := fishcast.ParseProvider(strings.TrimPrefix(query.Data, "analyze:"))
	if err != nil {
		log.Warn().Str("data", query.Data).Msg("unknown analyze callback")
		return
	}

	// Remove the inline keyboard so stale buttons can't start duplicates
	if query.Message != nil {
		edit := tgbotapi.NewEditMessageReplyMarkup(
			query.Message.Chat.ID,
			query.Message.MessageID,
			tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}},
		)
		h.tg.Request(edit)
	}

	LogUser(session.userId, "picked provider %s", provider)
	h.startAnalysis(ctx, session, provider)
}

// startAnalysis kicks off a background analysis of the staged image. The
// worker stays responsive while it runs; the outcome comes back through the
// inbox as an analysis_complete message.
// Called from session worker - no locking needed.
func (h *AnalyzeHandler) startAnalysis(ctx context.Context, session *UserSession, provider fishcast.Provider) {
	state := session.analysis.State()
	if state.Image == nil {
		session.reply(MsgNoStagedImage)
		return
	}
	if state.Busy {
		session.reply(MsgAnalysisBusy)
		return
	}

	invocationID := uuid.NewString()
	LogAPI(session.userId, "analysis %s started with %s", invocationID, provider)
	session.reply(MsgAnalyzing, provider.DisplayName())

	// Keep the typing indicator alive while the analysis runs
	typingCtx, stopTyping := context.WithCancel(ctx)
	go session.startTypingLoop(typingCtx)

	go func() {
		defer stopTyping()

		start := time.Now()
		result, err := session.analysis.Analyze(ctx, provider)
		session.Send(SessionMessage{
			Type: "analysis_complete",
			Ctx:  context.Background(),
			Outcome: &AnalysisOutcome{
				InvocationID: invocationID,
				Provider:     provider,
				Result:       result,
				Err:          err,
				Duration:     time.Since(start),
			},
		})
	}()
}

// HandleAnalysisComplete delivers the outcome of a background analysis and
// records it in the journal.
// Called from session worker - no locking needed.
func (h *AnalyzeHandler) HandleAnalysisComplete(ctx context.Context, session *UserSession, outcome *AnalysisOutcome) {
	if outcome == nil {
		return
	}

	if outcome.Err != nil {
		switch {
		case errors.Is(outcome.Err, analysis.ErrStaleResult):
			// The staged image changed while the analysis ran. Say nothing;
			// the user already moved on.
			LogState(session.userId, "analysis %s discarded as stale", outcome.InvocationID)
			return
		case errors.Is(outcome.Err, analysis.ErrAnalysisInFlight):
			session.reply(MsgAnalysisBusy)
			return
		}

		h.recordAnalysis(session, outcome, false)
		LogError(session.userId, "analysis %s failed: %v", outcome.InvocationID, outcome.Err)
		session.reply("%s", escapeMarkdown(analysis.UserMessage(outcome.Err)))
		return
	}

	h.recordAnalysis(session, outcome, true)
	LogBot(session.userId, "analysis %s delivered (%s, %dms)", outcome.InvocationID, outcome.Result.Provider, outcome.Duration.Milliseconds())
	session.reply(MsgAnalysisResult, escapeMarkdown(outcome.Result.Provider), escapeMarkdown(outcome.Result.Recommendation))
}

// recordAnalysis appends a journal row. Journal failures are logged, not
// surfaced; the user already has their answer.
func (h *AnalyzeHandler) recordAnalysis(session *UserSession, outcome *AnalysisOutcome, ok bool) {
	rec := storage.AnalysisRecord{
		InvocationID: outcome.InvocationID,
		TelegramID:   session.userId,
		Provider:     outcome.Provider.String(),
		OK:           ok,
		DurationMS:   outcome.Duration.Milliseconds(),
	}
	if err := h.store.RecordAnalysis(rec); err != nil {
		log.Warn().Err(err).Str("invocationId", outcome.InvocationID).Msg("failed to record analysis")
	}
}
