package bot

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Bummbumdut/telegram-fishcast-bot/internal/analysis"
	"github.com/Bummbumdut/telegram-fishcast-bot/internal/fishcast"
)

type BotState struct {
	bot      *Bot
	mu       sync.Mutex
	sessions map[int64]*UserSession
}

func (bs *BotState) newUserSession(userId int64) (*UserSession, error) {
	ctx, cancel := context.WithCancel(context.Background())
	session := UserSession{
		userId:   userId,
		sender:   bs.bot.tg,
		store:    bs.bot.store,
		analysis: analysis.NewSession(bs.bot.client, bs.bot.tracker),
		inbox:    make(chan SessionMessage, 10), // Buffered to avoid blocking
		ctx:      ctx,
		cancel:   cancel,
	}

	// Load the user's stored default provider, if any
	if bs.bot.store != nil {
		stored, err := bs.bot.store.GetDefaultProvider(userId)
		if err != nil {
			log.Warn().Err(err).Int64("userId", userId).Msg("failed to load default provider")
		} else if stored != "" {
			p, perr := fishcast.ParseProvider(stored)
			if perr != nil {
				log.Warn().Err(perr).Int64("userId", userId).Str("provider", stored).Msg("ignoring invalid stored provider")
			} else {
				session.defaultProvider = p
				session.hasDefaultProvider = true
			}
		}
	}

	log.Info().Int64("userId", userId).Msg("new user session created")
	return &session, nil
}

func (bs *BotState) getUserSession(userId int64) (*UserSession, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if session, ok := bs.sessions[userId]; !ok {
		session, err := bs.newUserSession(userId)
		if err != nil {
			return nil, err
		}
		// Set the bot as the message handler and start the worker
		session.SetHandler(bs.bot)
		session.StartWorker()
		bs.sessions[userId] = session
		return session, nil
	} else {
		return session, nil
	}
}

func (b *Bot) NewBotState() BotState {
	return BotState{
		bot:      b,
		sessions: make(map[int64]*UserSession),
	}
}

// Shutdown stops all session workers gracefully.
func (bs *BotState) Shutdown() {
	bs.mu.Lock()
	sessions := make([]*UserSession, 0, len(bs.sessions))
	for _, session := range bs.sessions {
		sessions = append(sessions, session)
	}
	bs.mu.Unlock()

	// Stop all workers (outside the lock to avoid blocking)
	for _, session := range sessions {
		session.Stop()
	}
	log.Info().Int("count", len(sessions)).Msg("stopped all session workers")
}
