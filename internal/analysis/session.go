package analysis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Bummbumdut/telegram-fishcast-bot/internal/fishcast"
)

var (
	// ErrNoImage rejects analysis without a staged image.
	ErrNoImage = errors.New("no image staged")
	// ErrAnalysisInFlight rejects overlapping analysis calls. Callers may
	// treat it as a no-op.
	ErrAnalysisInFlight = errors.New("analysis already in flight")
	// ErrStaleResult reports that a completed analysis was discarded because
	// the session was reset or restaged while it ran.
	ErrStaleResult = errors.New("analysis result discarded as stale")
)

// MsgServiceUnreachable is the generic connectivity message. Transport
// details never reach users; they go to the logs.
const MsgServiceUnreachable = "Could not reach the analysis service. Please try again."

// UserMessage maps an error to the text shown in the error slot. Validation
// and provider messages pass through verbatim; everything else collapses to
// MsgServiceUnreachable.
func UserMessage(err error) string {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Reason
	}
	var pErr *fishcast.ProviderError
	if errors.As(err, &pErr) {
		return pErr.Message
	}
	return MsgServiceUnreachable
}

// Session drives one user's analysis flow: staging, provider calls, usage
// refresh. Safe for concurrent use; every transition goes through Reduce
// under the mutex.
type Session struct {
	client  *fishcast.Client
	tracker *UsageTracker

	mu       sync.Mutex
	state    State
	onChange func(State)
}

// NewSession creates a session sharing the given usage tracker. A nil
// tracker gets a private one. The usage snapshot is seeded from the tracker
// when it already has one.
func NewSession(client *fishcast.Client, tracker *UsageTracker) *Session {
	if tracker == nil {
		tracker = NewUsageTracker(client)
	}
	s := &Session{client: client, tracker: tracker}
	if stats, ok := tracker.Snapshot(); ok {
		s.state.Usage = &stats
	}
	return s
}

// OnChange registers an observer called with a state copy after every
// applied event, while the session lock is held. The callback must not call
// back into the session.
func (s *Session) OnChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// State returns a copy of the current state. Treat the pointed-to image and
// result as read-only.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// applyLocked runs an event through the reducer and notifies the observer.
// Caller must hold mu.
func (s *Session) applyLocked(ev Event) (State, []Effect) {
	next, effects := Reduce(s.state, ev)
	s.state = next
	if s.onChange != nil {
		s.onChange(next)
	}
	return next, effects
}

func (s *Session) apply(ev Event) (State, []Effect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(ev)
}

// Accept validates and stages a file. On rejection the validation message
// lands in the error slot and any previously staged image stays put.
func (s *Session) Accept(file File) (*StagedImage, error) {
	img, err := Stage(file)
	if err != nil {
		log.Info().Str("name", file.Name).Err(err).Msg("rejected file")
		s.apply(ValidationFailed{Reason: err.Error()})
		return nil, err
	}

	log.Info().
		Str("name", img.Name).
		Str("mimeType", img.MIMEType).
		Int64("sizeBytes", img.SizeBytes).
		Msg("staged image")
	s.apply(FileSelected{Image: img})
	return img, nil
}

// Reset returns the session to its initial state. An analysis still in
// flight has its result discarded on arrival. Idempotent.
func (s *Session) Reset() {
	s.apply(Reset{})
}

// Analyze runs one analysis round trip against the given provider. It
// blocks until the server responds, so run it off any hot path. At most one
// analysis is in flight per session; overlapping calls get
// ErrAnalysisInFlight without touching the network.
func (s *Session) Analyze(ctx context.Context, provider fishcast.Provider) (*Result, error) {
	s.mu.Lock()
	if s.state.Busy {
		s.mu.Unlock()
		return nil, ErrAnalysisInFlight
	}
	if s.state.Image == nil {
		s.mu.Unlock()
		return nil, ErrNoImage
	}
	_, effects := s.applyLocked(AnalysisRequested{Provider: provider})
	s.mu.Unlock()

	var start *StartAnalysis
	for _, ef := range effects {
		if e, ok := ef.(StartAnalysis); ok {
			start = &e
		}
	}
	if start == nil {
		// Unreachable given the guards above.
		return nil, ErrAnalysisInFlight
	}

	invocationID := uuid.NewString()
	started := time.Now()
	log.Info().
		Str("invocationID", invocationID).
		Str("provider", provider.String()).
		Int64("sizeBytes", start.Image.SizeBytes).
		Msg("starting analysis")

	analysis, err := s.client.Analyze(ctx, provider, start.Image.Data, start.Image.MIMEType, start.Image.Name)
	if err != nil {
		log.Error().
			Err(err).
			Str("invocationID", invocationID).
			Dur("took", time.Since(started)).
			Msg("analysis failed")
		st, _ := s.apply(AnalysisFailed{Seq: start.Seq, Message: UserMessage(err)})
		if st.Seq != start.Seq {
			return nil, ErrStaleResult
		}
		return nil, err
	}

	result := Result{Recommendation: analysis.Recommendation, Provider: analysis.Provider}
	st, after := s.apply(AnalysisSucceeded{Seq: start.Seq, Result: result})
	for _, ef := range after {
		if _, ok := ef.(RefreshUsage); ok {
			go s.RefreshUsage(context.Background())
		}
	}
	if st.Seq != start.Seq {
		log.Info().Str("invocationID", invocationID).Msg("discarding analysis result after reset")
		return nil, ErrStaleResult
	}

	log.Info().
		Str("invocationID", invocationID).
		Str("provider", analysis.Provider).
		Dur("took", time.Since(started)).
		Msg("analysis complete")
	return &result, nil
}

// RefreshUsage fetches fresh usage stats into the state. Failures are
// logged and swallowed; the previous snapshot stays visible.
func (s *Session) RefreshUsage(ctx context.Context) {
	stats, err := s.tracker.Refresh(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("usage refresh failed, keeping previous snapshot")
		return
	}
	s.apply(UsageRefreshed{Stats: stats})
}

// Tracker returns the usage tracker shared by this session.
func (s *Session) Tracker() *UsageTracker {
	return s.tracker
}
