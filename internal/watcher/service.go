package watcher

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/Bummbumdut/telegram-fishcast-bot/internal/analysis"
	"github.com/Bummbumdut/telegram-fishcast-bot/internal/fishcast"
)

const (
	// DefaultPollInterval is the time between usage polls.
	DefaultPollInterval = 15 * time.Minute

	// DailyAlertThreshold is the daily usage percentage that triggers an
	// admin alert.
	DailyAlertThreshold = 90.0
)

// BotSender abstracts the Telegram bot API for sending messages.
type BotSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Service is the background service that keeps the shared usage snapshot
// fresh and alerts the admin when the daily quota runs low.
type Service struct {
	tracker      *analysis.UsageTracker
	bot          BotSender
	adminID      int64
	pollInterval time.Duration

	// alerted is true once the admin has been notified for the current
	// crossing. Dropping back below the threshold re-arms the alert.
	// Only touched from the Run goroutine.
	alerted bool
}

// NewService creates a new usage watcher service. A non-positive
// pollInterval selects the default.
func NewService(tracker *analysis.UsageTracker, bot BotSender, adminID int64, pollInterval time.Duration) *Service {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Service{
		tracker:      tracker,
		bot:          bot,
		adminID:      adminID,
		pollInterval: pollInterval,
	}
}

// Run starts the polling loop. It blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	log.Info().Dur("interval", s.pollInterval).Msg("starting usage watcher")

	// Run initial poll after a short delay to let the bot fully start
	time.Sleep(5 * time.Second)
	s.poll(ctx)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("usage watcher stopped")
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

// poll refreshes the usage snapshot and checks the alert threshold.
// Refresh failures keep the previous snapshot.
func (s *Service) poll(ctx context.Context) {
	stats, err := s.tracker.Refresh(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("usage poll failed, keeping previous snapshot")
		return
	}

	log.Debug().
		Int("dailyUsed", stats.Daily.Used).
		Int("dailyLimit", stats.Daily.Limit).
		Float64("dailyPercentage", stats.Daily.Percentage).
		Msg("usage poll complete")

	s.checkDailyThreshold(stats.Daily)
}

// checkDailyThreshold sends one alert per threshold crossing.
func (s *Service) checkDailyThreshold(daily fishcast.UsageWindow) {
	if daily.Percentage < DailyAlertThreshold {
		if s.alerted {
			log.Debug().Msg("daily usage back below threshold, alert re-armed")
		}
		s.alerted = false
		return
	}

	if s.alerted {
		return
	}
	s.alerted = true
	s.sendAlert(daily)
}

// sendAlert notifies the admin about the quota running low.
func (s *Service) sendAlert(daily fishcast.UsageWindow) {
	if s.adminID == 0 {
		return
	}

	text := fmt.Sprintf(
		"⚠️ FishCast daily usage at %.0f%% (%d/%d analyses). New analyses may start failing soon.",
		daily.Percentage, daily.Used, daily.Limit,
	)

	_, err := s.bot.Send(tgbotapi.NewMessage(s.adminID, text))
	if err != nil {
		log.Error().
			Err(err).
			Int64("adminID", s.adminID).
			Msg("failed to send usage alert")
		// Re-arm so the next poll retries
		s.alerted = false
		return
	}

	log.Info().
		Float64("percentage", daily.Percentage).
		Int64("adminID", s.adminID).
		Msg("usage alert sent")
}
