package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bummbumdut/telegram-fishcast-bot/internal/fishcast"
)

const analyzeSuccessBody = `{
	"success": true,
	"recommendation": "Cast near the reeds at dawn.",
	"filename": "spot.jpg",
	"provider": "Google Gemini"
}`

func newSession(t *testing.T, handler http.HandlerFunc) *Session {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	client := fishcast.NewClient(fishcast.ClientOpts{BaseURL: ts.URL})
	return NewSession(client, nil)
}

func acceptJPEG(t *testing.T, s *Session) *StagedImage {
	t.Helper()
	img, err := s.Accept(File{Name: "spot.jpg", MIMEType: "image/jpeg", Data: []byte("fake jpeg bytes")})
	require.NoError(t, err)
	return img
}

func TestSession_AnalyzeSuccess(t *testing.T) {
	s := newSession(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/analyze-smart":
			w.Write([]byte(analyzeSuccessBody))
		case "/usage-stats":
			w.Write([]byte(usageStatsBody))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	acceptJPEG(t, s)

	result, err := s.Analyze(context.Background(), fishcast.ProviderSmartAuto)
	require.NoError(t, err)
	assert.Equal(t, "Cast near the reeds at dawn.", result.Recommendation)
	assert.Equal(t, "Google Gemini", result.Provider)

	st := s.State()
	assert.False(t, st.Busy)
	require.NotNil(t, st.Result)
	assert.Equal(t, "Cast near the reeds at dawn.", st.Result.Recommendation)
	assert.Empty(t, st.ErrorMsg)

	// The usage refresh runs off the analysis path.
	require.Eventually(t, func() bool {
		return s.State().Usage != nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 5, s.State().Usage.Daily.Used)
}

func TestSession_AnalyzeProviderErrorShownVerbatim(t *testing.T) {
	s := newSession(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success": false, "error": "Analysis failed: Usage limit reached"}`))
	})

	acceptJPEG(t, s)

	_, err := s.Analyze(context.Background(), fishcast.ProviderGemini)
	require.Error(t, err)

	var provErr *fishcast.ProviderError
	require.ErrorAs(t, err, &provErr)

	st := s.State()
	assert.False(t, st.Busy)
	assert.Nil(t, st.Result)
	assert.Equal(t, "Analysis failed: Usage limit reached", st.ErrorMsg)
}

func TestSession_AnalyzeTransportFailureGetsGenericMessage(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	client := fishcast.NewClient(fishcast.ClientOpts{BaseURL: ts.URL})
	ts.Close()
	s := NewSession(client, nil)

	acceptJPEG(t, s)

	_, err := s.Analyze(context.Background(), fishcast.ProviderHuggingFace)
	require.Error(t, err)

	var transErr *fishcast.TransportError
	require.ErrorAs(t, err, &transErr)

	st := s.State()
	assert.Equal(t, MsgServiceUnreachable, st.ErrorMsg)
	assert.NotContains(t, st.ErrorMsg, "connection refused")
}

func TestSession_AnalyzeWithoutImage(t *testing.T) {
	s := newSession(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := s.Analyze(context.Background(), fishcast.ProviderSmartAuto)
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestSession_SingleFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	s := newSession(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze-smart" {
			return
		}
		n := calls.Add(1)
		if n == 1 {
			close(entered)
			<-release
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(analyzeSuccessBody))
	})

	acceptJPEG(t, s)

	firstErr := make(chan error, 1)
	go func() {
		_, err := s.Analyze(context.Background(), fishcast.ProviderSmartAuto)
		firstErr <- err
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first analysis never reached the server")
	}

	_, err := s.Analyze(context.Background(), fishcast.ProviderSmartAuto)
	assert.ErrorIs(t, err, ErrAnalysisInFlight)
	assert.Equal(t, int32(1), calls.Load())

	close(release)
	require.NoError(t, <-firstErr)

	// With the first round trip finished the session accepts work again.
	_, err = s.Analyze(context.Background(), fishcast.ProviderSmartAuto)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSession_ResetDuringFlightDiscardsResult(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	s := newSession(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze-smart" {
			return
		}
		close(entered)
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(analyzeSuccessBody))
	})

	acceptJPEG(t, s)

	result := make(chan error, 1)
	go func() {
		_, err := s.Analyze(context.Background(), fishcast.ProviderSmartAuto)
		result <- err
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("analysis never reached the server")
	}

	s.Reset()
	close(release)

	assert.ErrorIs(t, <-result, ErrStaleResult)

	st := s.State()
	assert.Nil(t, st.Image)
	assert.Nil(t, st.Result)
	assert.False(t, st.Busy)
	assert.Empty(t, st.ErrorMsg)
}

func TestSession_RestageDuringFlightDiscardsResult(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	s := newSession(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze-smart" {
			return
		}
		close(entered)
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(analyzeSuccessBody))
	})

	acceptJPEG(t, s)

	result := make(chan error, 1)
	go func() {
		_, err := s.Analyze(context.Background(), fishcast.ProviderSmartAuto)
		result <- err
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("analysis never reached the server")
	}

	replacement, err := s.Accept(File{Name: "other.jpg", MIMEType: "image/jpeg", Data: []byte("other bytes")})
	require.NoError(t, err)
	close(release)

	assert.ErrorIs(t, <-result, ErrStaleResult)

	st := s.State()
	assert.Same(t, replacement, st.Image)
	assert.Nil(t, st.Result)
	assert.False(t, st.Busy)
}

func TestSession_AcceptRejectionKeepsStagedImage(t *testing.T) {
	s := newSession(t, func(w http.ResponseWriter, r *http.Request) {})

	staged := acceptJPEG(t, s)

	_, err := s.Accept(File{Name: "notes.txt", MIMEType: "text/plain", Data: []byte("not a photo")})
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	st := s.State()
	assert.Same(t, staged, st.Image)
	assert.Equal(t, "File must be an image", st.ErrorMsg)
}

func TestSession_UsageRefreshFailureKeepsSnapshot(t *testing.T) {
	var fail atomic.Bool
	s := newSession(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if fail.Load() {
			w.Write([]byte(`{"success": false, "error": "usage manager unavailable"}`))
			return
		}
		w.Write([]byte(usageStatsBody))
	})

	s.RefreshUsage(context.Background())
	require.NotNil(t, s.State().Usage)

	fail.Store(true)
	s.RefreshUsage(context.Background())

	st := s.State()
	require.NotNil(t, st.Usage)
	assert.Equal(t, 5, st.Usage.Daily.Used)
}

func TestSession_SeedsUsageFromSharedTracker(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(usageStatsBody))
	}))
	t.Cleanup(ts.Close)

	client := fishcast.NewClient(fishcast.ClientOpts{BaseURL: ts.URL})
	tracker := NewUsageTracker(client)
	_, err := tracker.Refresh(context.Background())
	require.NoError(t, err)

	s := NewSession(client, tracker)

	st := s.State()
	require.NotNil(t, st.Usage)
	assert.Equal(t, 25, st.Usage.Daily.Limit)
}

func TestSession_OnChangeObservesTransitions(t *testing.T) {
	s := newSession(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/analyze-smart":
			w.Write([]byte(analyzeSuccessBody))
		case "/usage-stats":
			w.Write([]byte(usageStatsBody))
		}
	})

	var states []State
	s.OnChange(func(st State) {
		states = append(states, st)
	})

	acceptJPEG(t, s)
	_, err := s.Analyze(context.Background(), fishcast.ProviderSmartAuto)
	require.NoError(t, err)

	snapshot := func() []State {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := make([]State, len(states))
		copy(out, states)
		return out
	}

	var sawStaged, sawBusy, sawDone bool
	for _, st := range snapshot() {
		if st.Image != nil && !st.Busy && st.Result == nil {
			sawStaged = true
		}
		if st.Busy {
			sawBusy = true
		}
		if st.Result != nil {
			sawDone = true
		}
	}
	assert.True(t, sawStaged, "observer saw the staged state")
	assert.True(t, sawBusy, "observer saw the busy state")
	assert.True(t, sawDone, "observer saw the completed state")
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "validation",
			err:  &ValidationError{Reason: "File must be an image"},
			want: "File must be an image",
		},
		{
			name: "provider",
			err:  &fishcast.ProviderError{StatusCode: 500, Message: "Analysis failed: model overloaded"},
			want: "Analysis failed: model overloaded",
		},
		{
			name: "transport",
			err:  &fishcast.TransportError{Op: "analyze", Err: errors.New("connection refused")},
			want: MsgServiceUnreachable,
		},
		{
			name: "other",
			err:  fmt.Errorf("some internal problem"),
			want: MsgServiceUnreachable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}
