package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Bummbumdut/telegram-fishcast-bot/internal/analysis"
	"github.com/Bummbumdut/telegram-fishcast-bot/internal/bot"
	"github.com/Bummbumdut/telegram-fishcast-bot/internal/fishcast"
	"github.com/Bummbumdut/telegram-fishcast-bot/internal/storage"
	"github.com/Bummbumdut/telegram-fishcast-bot/internal/watcher"
)

const logFileName = "telegram-fishcast-bot.log"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Try to load existing .env file
	bot.LoadEnvFile()

	// Check if required config is missing
	if missing := bot.CheckRequiredConfig(); len(missing) > 0 {
		if bot.IsInteractiveTerminal() {
			// Interactive terminal - run setup wizard
			if !bot.RunSetupWizard() {
				bot.WaitOnWindows()
				os.Exit(1)
			}
		} else {
			// Non-interactive (systemd, k8s, etc.) - fail with clear error
			bot.FatalWithWait("missing required config: %s", strings.Join(missing, ", "))
		}
	}

	// JOURNAL_STREAM is set by systemd when running as a service.
	// Skip file logging under systemd (journald handles it, and ProtectSystem=strict
	// makes the working directory read-only).
	if _, underSystemd := os.LookupEnv("JOURNAL_STREAM"); underSystemd {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		// Local development: log to both stderr and file
		logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			bot.FatalWithWait("failed to open log file: %v", err)
		}
		defer logFile.Close()

		consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
		fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
		multiWriter := io.MultiWriter(consoleWriter, fileWriter)
		log.Logger = log.Output(multiWriter)

		log.Info().Str("logFile", logFileName).Msg("logging to file")
	}

	botToken := os.Getenv("BOT_TOKEN")
	if botToken == "" {
		bot.FatalWithWait("BOT_TOKEN is not set")
	}

	// FishCast API base URL (required)
	apiURL := os.Getenv("FISHCAST_API_URL")
	if apiURL == "" {
		bot.FatalWithWait("FISHCAST_API_URL is not set")
	}

	// Admin Telegram ID (required)
	adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID")
	if adminIDStr == "" {
		bot.FatalWithWait("ADMIN_TELEGRAM_ID is not set")
	}
	adminID, err := strconv.ParseInt(adminIDStr, 10, 64)
	if err != nil {
		bot.FatalWithWait("ADMIN_TELEGRAM_ID must be a valid integer: %v", err)
	}

	// Database path (optional, defaults to fishcast.db)
	dbPath := os.Getenv("FISHCAST_DB_PATH")
	if dbPath == "" {
		dbPath = "fishcast.db"
	}

	// Usage poll interval (optional)
	pollInterval := watcher.DefaultPollInterval
	if v := os.Getenv("FISHCAST_USAGE_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			bot.FatalWithWait("FISHCAST_USAGE_POLL_INTERVAL must be a duration like 15m: %v", err)
		}
		pollInterval = d
	}

	tg, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		bot.FatalWithWait("failed to initialize telegram bot: %v", err)
	}
	tg.Debug = false
	log.Info().Str("username", tg.Self.UserName).Msg("authorized on account")

	// Register bot commands for Telegram's command menu
	bot.RegisterCommands(tg)

	// Initialize bot store
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		bot.FatalWithWait("failed to initialize store: %v", err)
	}
	defer store.Close()
	log.Info().Str("dbPath", dbPath).Msg("store initialized")

	// Initialize audit log (writes analysis_<user>.log files to current directory)
	if err := bot.InitAuditLog("."); err != nil {
		log.Warn().Err(err).Msg("failed to initialize audit log")
	}

	client := fishcast.NewClient(fishcast.ClientOpts{BaseURL: apiURL})
	tracker := analysis.NewUsageTracker(client)
	log.Info().Str("apiURL", client.BaseURL()).Msg("fishcast client initialized")

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Warm the usage snapshot so /usage has an answer right away
	if _, err := tracker.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("initial usage fetch failed; is the FishCast API running?")
	}

	g, ctx := errgroup.WithContext(ctx)

	// Run bot update loop
	g.Go(func() error {
		return runBot(ctx, tg, store, client, tracker, adminID)
	})

	// Run watcher service for usage polling and quota alerts
	watcherService := watcher.NewService(tracker, tg, adminID, pollInterval)
	g.Go(func() error {
		watcherService.Run(ctx)
		return nil
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}

func runBot(ctx context.Context, tg *tgbotapi.BotAPI, store storage.Store, client *fishcast.Client, tracker *analysis.UsageTracker, adminID int64) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := tg.GetUpdatesChan(updateConfig)

	b := bot.NewBot(tg, store, client, tracker, adminID)

	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping bot update loop")
			tg.StopReceivingUpdates()
			log.Info().Msg("waiting for active handlers to finish")
			wg.Wait()
			b.Shutdown()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				log.Warn().Msg("updates channel closed")
				wg.Wait()
				b.Shutdown()
				return nil
			}
			wg.Add(1)
			go func(u tgbotapi.Update) {
				defer wg.Done()
				b.HandleUpdate(ctx, u)
			}(update)
		}
	}
}
