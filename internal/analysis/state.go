package analysis

import (
	"github.com/Bummbumdut/telegram-fishcast-bot/internal/fishcast"
)

// Result is a completed analysis as shown to the user.
type Result struct {
	Recommendation string
	Provider       string
}

// State is the complete analysis-flow state for one session. It is a value:
// Reduce returns a new State and never mutates its input. At most one of
// Result and ErrorMsg is set at any time.
type State struct {
	Image    *StagedImage
	Busy     bool
	Result   *Result
	ErrorMsg string
	Usage    *fishcast.UsageStats
	// Seq tags analysis invocations. Requesting an analysis, staging a new
	// image, or resetting bumps it; a completion whose Seq no longer
	// matches has its outcome discarded.
	Seq uint64
}

// Event is a state-machine input.
type Event interface{ isEvent() }

// FileSelected stages a validated image.
type FileSelected struct{ Image *StagedImage }

// ValidationFailed reports a rejected file. It touches only the outcome
// slots; an already staged image stays put.
type ValidationFailed struct{ Reason string }

// AnalysisRequested asks for an analysis of the staged image.
type AnalysisRequested struct{ Provider fishcast.Provider }

// AnalysisSucceeded delivers the result of invocation Seq.
type AnalysisSucceeded struct {
	Seq    uint64
	Result Result
}

// AnalysisFailed delivers the user-facing failure message of invocation Seq.
type AnalysisFailed struct {
	Seq     uint64
	Message string
}

// Reset returns the session to its initial state.
type Reset struct{}

// UsageRefreshed delivers a fresh usage snapshot.
type UsageRefreshed struct{ Stats fishcast.UsageStats }

func (FileSelected) isEvent()      {}
func (ValidationFailed) isEvent()  {}
func (AnalysisRequested) isEvent() {}
func (AnalysisSucceeded) isEvent() {}
func (AnalysisFailed) isEvent()    {}
func (Reset) isEvent()             {}
func (UsageRefreshed) isEvent()    {}

// Effect is work the session must perform after a transition.
type Effect interface{ isEffect() }

// StartAnalysis asks the session to run the network call for invocation Seq.
type StartAnalysis struct {
	Seq      uint64
	Provider fishcast.Provider
	Image    *StagedImage
}

// RefreshUsage asks the session to refresh the usage snapshot without
// awaiting completion.
type RefreshUsage struct{}

func (StartAnalysis) isEffect() {}
func (RefreshUsage) isEffect()  {}

// Reduce applies an event to a state. Pure: all I/O happens in the session,
// driven by the returned effects.
//
// Completion handling relies on single-flight: AnalysisRequested is ignored
// while Busy, so Busy means exactly one call is in flight and the next
// completion event belongs to it. A completion always clears Busy; its
// outcome is kept only when its Seq is still current.
func Reduce(s State, ev Event) (State, []Effect) {
	switch ev := ev.(type) {
	case FileSelected:
		s.Image = ev.Image
		s.Result = nil
		s.ErrorMsg = ""
		s.Seq++
		return s, nil

	case ValidationFailed:
		s.Result = nil
		s.ErrorMsg = ev.Reason
		return s, nil

	case AnalysisRequested:
		if s.Busy || s.Image == nil {
			return s, nil
		}
		s.Busy = true
		s.Seq++
		s.Result = nil
		s.ErrorMsg = ""
		return s, []Effect{StartAnalysis{Seq: s.Seq, Provider: ev.Provider, Image: s.Image}}

	case AnalysisSucceeded:
		if !s.Busy {
			return s, nil
		}
		s.Busy = false
		if ev.Seq != s.Seq {
			return s, nil
		}
		r := ev.Result
		s.Result = &r
		s.ErrorMsg = ""
		return s, []Effect{RefreshUsage{}}

	case AnalysisFailed:
		if !s.Busy {
			return s, nil
		}
		s.Busy = false
		if ev.Seq != s.Seq {
			return s, nil
		}
		s.Result = nil
		s.ErrorMsg = ev.Message
		return s, nil

	case Reset:
		// Usage survives a reset: the quota is server truth, not form state.
		return State{Usage: s.Usage, Seq: s.Seq + 1}, nil

	case UsageRefreshed:
		stats := ev.Stats
		s.Usage = &stats
		return s, nil
	}

	return s, nil
}
