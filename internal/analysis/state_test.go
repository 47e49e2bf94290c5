package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bummbumdut/telegram-fishcast-bot/internal/fishcast"
)

func stagedFixture() *StagedImage {
	return &StagedImage{
		Name:      "spot.jpg",
		Data:      []byte("img"),
		MIMEType:  "image/jpeg",
		SizeBytes: 3,
	}
}

func TestReduce_FileSelectedClearsOutcome(t *testing.T) {
	prev := &Result{Recommendation: "old", Provider: "x"}
	s := State{Image: stagedFixture(), Result: prev, Seq: 4}

	img := stagedFixture()
	next, effects := Reduce(s, FileSelected{Image: img})

	assert.Empty(t, effects)
	assert.Same(t, img, next.Image)
	assert.Nil(t, next.Result)
	assert.Empty(t, next.ErrorMsg)
	assert.Equal(t, uint64(5), next.Seq)
}

func TestReduce_ValidationFailedKeepsImage(t *testing.T) {
	img := stagedFixture()
	s := State{Image: img, Result: &Result{Recommendation: "old"}, Seq: 2}

	next, effects := Reduce(s, ValidationFailed{Reason: "File must be an image"})

	assert.Empty(t, effects)
	assert.Same(t, img, next.Image)
	assert.Nil(t, next.Result)
	assert.Equal(t, "File must be an image", next.ErrorMsg)
	assert.Equal(t, uint64(2), next.Seq)
}

func TestReduce_AnalysisRequested(t *testing.T) {
	img := stagedFixture()
	s := State{Image: img, ErrorMsg: "previous failure", Seq: 1}

	next, effects := Reduce(s, AnalysisRequested{Provider: fishcast.ProviderGemini})

	assert.True(t, next.Busy)
	assert.Empty(t, next.ErrorMsg)
	assert.Nil(t, next.Result)
	assert.Equal(t, uint64(2), next.Seq)

	require.Len(t, effects, 1)
	start, ok := effects[0].(StartAnalysis)
	require.True(t, ok)
	assert.Equal(t, uint64(2), start.Seq)
	assert.Equal(t, fishcast.ProviderGemini, start.Provider)
	assert.Same(t, img, start.Image)
}

func TestReduce_AnalysisRequestedIgnoredWhileBusy(t *testing.T) {
	s := State{Image: stagedFixture(), Busy: true, Seq: 3}

	next, effects := Reduce(s, AnalysisRequested{Provider: fishcast.ProviderSmartAuto})

	assert.Empty(t, effects)
	assert.Equal(t, s, next)
}

func TestReduce_AnalysisRequestedIgnoredWithoutImage(t *testing.T) {
	next, effects := Reduce(State{}, AnalysisRequested{Provider: fishcast.ProviderSmartAuto})

	assert.Empty(t, effects)
	assert.False(t, next.Busy)
	assert.Equal(t, uint64(0), next.Seq)
}

func TestReduce_AnalysisSucceeded(t *testing.T) {
	s := State{Image: stagedFixture(), Busy: true, Seq: 2}

	next, effects := Reduce(s, AnalysisSucceeded{
		Seq:    2,
		Result: Result{Recommendation: "Cast near the reeds.", Provider: "Google Gemini"},
	})

	assert.False(t, next.Busy)
	require.NotNil(t, next.Result)
	assert.Equal(t, "Cast near the reeds.", next.Result.Recommendation)
	assert.Equal(t, "Google Gemini", next.Result.Provider)
	assert.Empty(t, next.ErrorMsg)

	require.Len(t, effects, 1)
	_, ok := effects[0].(RefreshUsage)
	assert.True(t, ok)
}

func TestReduce_AnalysisFailed(t *testing.T) {
	s := State{Image: stagedFixture(), Busy: true, Seq: 2}

	next, effects := Reduce(s, AnalysisFailed{Seq: 2, Message: "Analysis failed: quota exceeded"})

	assert.Empty(t, effects)
	assert.False(t, next.Busy)
	assert.Nil(t, next.Result)
	assert.Equal(t, "Analysis failed: quota exceeded", next.ErrorMsg)
}

func TestReduce_CompletionAfterResetDiscarded(t *testing.T) {
	s := State{Image: stagedFixture(), Seq: 1}
	s, effects := Reduce(s, AnalysisRequested{Provider: fishcast.ProviderSmartAuto})
	start := effects[0].(StartAnalysis)

	s, _ = Reduce(s, Reset{})

	next, effects := Reduce(s, AnalysisSucceeded{Seq: start.Seq, Result: Result{Recommendation: "late"}})

	assert.Empty(t, effects)
	assert.Equal(t, s, next)
	assert.Nil(t, next.Result)
	assert.False(t, next.Busy)
}

func TestReduce_CompletionAfterRestageDropsOutcomeButClearsBusy(t *testing.T) {
	s := State{Image: stagedFixture(), Seq: 1}
	s, effects := Reduce(s, AnalysisRequested{Provider: fishcast.ProviderSmartAuto})
	start := effects[0].(StartAnalysis)

	// A new image arrives while the call is in flight.
	s, _ = Reduce(s, FileSelected{Image: stagedFixture()})
	require.True(t, s.Busy)

	next, effects := Reduce(s, AnalysisSucceeded{Seq: start.Seq, Result: Result{Recommendation: "stale"}})

	assert.Empty(t, effects)
	assert.False(t, next.Busy)
	assert.Nil(t, next.Result)
	assert.Empty(t, next.ErrorMsg)
}

func TestReduce_DuplicateCompletionIgnored(t *testing.T) {
	s := State{Image: stagedFixture(), Seq: 1}
	s, effects := Reduce(s, AnalysisRequested{Provider: fishcast.ProviderSmartAuto})
	start := effects[0].(StartAnalysis)

	s, _ = Reduce(s, AnalysisSucceeded{Seq: start.Seq, Result: Result{Recommendation: "first"}})

	next, effects := Reduce(s, AnalysisSucceeded{Seq: start.Seq, Result: Result{Recommendation: "second"}})

	assert.Empty(t, effects)
	assert.Equal(t, "first", next.Result.Recommendation)
}

func TestReduce_ResetKeepsUsage(t *testing.T) {
	usage := &fishcast.UsageStats{Daily: fishcast.UsageWindow{Used: 5, Limit: 25, Percentage: 20.0}}
	s := State{
		Image:    stagedFixture(),
		Result:   &Result{Recommendation: "r"},
		ErrorMsg: "",
		Usage:    usage,
		Seq:      7,
	}

	next, effects := Reduce(s, Reset{})

	assert.Empty(t, effects)
	assert.Nil(t, next.Image)
	assert.Nil(t, next.Result)
	assert.Empty(t, next.ErrorMsg)
	assert.False(t, next.Busy)
	assert.Same(t, usage, next.Usage)
	assert.Equal(t, uint64(8), next.Seq)

	// Resetting an already clean state changes nothing but the counter.
	again, _ := Reduce(next, Reset{})
	assert.Nil(t, again.Image)
	assert.Equal(t, uint64(9), again.Seq)
}

func TestReduce_UsageRefreshed(t *testing.T) {
	next, effects := Reduce(State{}, UsageRefreshed{
		Stats: fishcast.UsageStats{Daily: fishcast.UsageWindow{Used: 5, Limit: 25, Percentage: 20.0}},
	})

	assert.Empty(t, effects)
	require.NotNil(t, next.Usage)
	assert.Equal(t, 5, next.Usage.Daily.Used)
	assert.Equal(t, 25, next.Usage.Daily.Limit)
	assert.Equal(t, 20.0, next.Usage.Daily.Percentage)
}
