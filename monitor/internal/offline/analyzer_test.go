package offline

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/Krimson/ctg-stream/monitor/internal/pipeline"
	"github.com/Krimson/ctg-stream/monitor/internal/session"
	"github.com/Krimson/ctg-stream/monitor/internal/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profileSamples(t *testing.T, name string, seconds int) []pipeline.Sample {
	t.Helper()
	cfg, err := signal.Profile(name, seconds, 11)
	require.NoError(t, err)
	g, err := signal.New(cfg)
	require.NoError(t, err)
	return g.All()
}

func TestAnalyzer_MatchesStreamingRun(t *testing.T) {
	samples := profileSamples(t, "normal", 600)

	live := pipeline.New("rec", pipeline.DefaultConfig(), nil, nil)
	var want pipeline.Snapshot
	for sec := 1; sec <= 600; sec++ {
		var err error
		want, err = live.Tick(samples[(sec-1)*5 : sec*5])
		require.NoError(t, err)
	}
	wantSummary := live.Finalize()

	a := NewAnalyzer(pipeline.DefaultConfig(), nil, nil, nil)
	report, err := a.Analyze(context.Background(), "rec", samples)
	require.NoError(t, err)

	assert.Equal(t, 600, report.DurationSec)
	assert.Equal(t, len(samples), report.SamplesCount)
	assert.Equal(t, wantSummary, report.Summary)
	assert.Equal(t, want.AccelerationsCount, report.Snapshot.AccelerationsCount)
	assert.Equal(t, want.ContractionsCount, report.Snapshot.ContractionsCount)
	assert.Len(t, report.Events, want.AccelerationsCount+want.DecelerationsCount+want.ContractionsCount)

	for i := 1; i < len(report.Notifications); i++ {
		assert.LessOrEqual(t, report.Notifications[i-1].Second, report.Notifications[i].Second)
	}
}

func TestAnalyzer_UnorderedInputAndGaps(t *testing.T) {
	samples := []pipeline.Sample{
		{TimeSec: 9.8, FHR: 141, UC: 10},
		{TimeSec: 0.2, FHR: 140, UC: 10},
		{TimeSec: 5.0, FHR: math.NaN(), UC: 12},
	}

	report, err := NewAnalyzer(pipeline.DefaultConfig(), nil, nil, nil).Analyze(context.Background(), "gap", samples)
	require.NoError(t, err)
	assert.Equal(t, 10, report.DurationSec)
	assert.Equal(t, 10, report.Snapshot.TimeSec)
	require.NotNil(t, report.Snapshot.CurrentFHR)
	assert.Equal(t, 141.0, *report.Snapshot.CurrentFHR)
}

func TestAnalyzer_NoSamples(t *testing.T) {
	_, err := NewAnalyzer(pipeline.DefaultConfig(), nil, nil, nil).Analyze(context.Background(), "x", nil)
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestAnalyzer_MaxDuration(t *testing.T) {
	a := NewAnalyzer(pipeline.DefaultConfig(), nil, nil, nil).WithMaxDuration(time.Minute)

	_, err := a.Analyze(context.Background(), "long", profileSamples(t, "normal", 61))
	assert.ErrorIs(t, err, ErrRecordingTooLong)

	report, err := a.Analyze(context.Background(), "fits", profileSamples(t, "normal", 60))
	require.NoError(t, err)
	assert.Equal(t, 60, report.DurationSec)

	_, err = NewAnalyzer(pipeline.DefaultConfig(), nil, nil, nil).Analyze(context.Background(), "epoch", []pipeline.Sample{
		{TimeSec: 1.0, FHR: 140, UC: 10},
		{TimeSec: 1700000000.0, FHR: 140, UC: 10},
	})
	assert.ErrorIs(t, err, ErrRecordingTooLong)
}

func TestAnalyzer_RebasesToFirstSample(t *testing.T) {
	samples := []pipeline.Sample{
		{TimeSec: 3605.0, FHR: 142, UC: 10},
		{TimeSec: 3600.4, FHR: 140, UC: 10},
		{TimeSec: 3602.2, FHR: 141, UC: 10},
	}
	original := append([]pipeline.Sample(nil), samples...)

	report, err := NewAnalyzer(pipeline.DefaultConfig(), nil, nil, nil).Analyze(context.Background(), "late", samples)
	require.NoError(t, err)
	assert.Equal(t, 5, report.DurationSec)
	require.NotNil(t, report.Snapshot.CurrentFHR)
	assert.Equal(t, 142.0, *report.Snapshot.CurrentFHR)
	assert.Equal(t, original, samples)
}

func TestAnalyzer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAnalyzer(pipeline.DefaultConfig(), nil, nil, nil).Analyze(ctx, "x", profileSamples(t, "normal", 120))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzer_Save(t *testing.T) {
	store := session.NewMemoryStore()
	a := NewAnalyzer(pipeline.DefaultConfig(), nil, store, nil)
	ctx := context.Background()

	report, err := a.Analyze(ctx, "saved", profileSamples(t, "normal", 600))
	require.NoError(t, err)
	require.NoError(t, a.Save(ctx, report, session.Metadata{PatientID: "p-1"}))
	assert.True(t, report.Saved)

	sess, err := store.GetSession(ctx, "saved")
	require.NoError(t, err)
	assert.Equal(t, session.SessionStatusStopped, sess.Status)
	assert.Equal(t, "offline", sess.Metadata.CreatedFrom)
	assert.Equal(t, "p-1", sess.Metadata.PatientID)
	assert.Equal(t, 600, sess.DurationSec)

	sum, err := store.GetSummary(ctx, "saved")
	require.NoError(t, err)
	assert.Equal(t, report.Summary, *sum)

	events, err := store.GetEvents(ctx, "saved")
	require.NoError(t, err)
	assert.Len(t, events, len(report.Events))
}

func TestAnalyzer_SaveWithoutArchive(t *testing.T) {
	a := NewAnalyzer(pipeline.DefaultConfig(), nil, nil, nil)
	assert.Error(t, a.Save(context.Background(), &Report{SessionID: "x"}, session.Metadata{}))
}
