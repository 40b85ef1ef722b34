package batch

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Krimson/ctg-stream/monitor/internal/config"
	"github.com/Krimson/ctg-stream/monitor/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSink для тестирования - собирает все батчи
type TestSink struct {
	mu      sync.Mutex
	batches []Batch
}

func (ts *TestSink) Consume(ctx context.Context, b Batch) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.batches = append(ts.batches, b)
	return nil
}

func (ts *TestSink) GetBatches() []Batch {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	result := make([]Batch, len(ts.batches))
	copy(result, ts.batches)
	return result
}

func sample(t, fhr float64) pipeline.Sample {
	return pipeline.Sample{TimeSec: t, FHR: fhr, UC: 20}
}

func TestBatcher_FlushBySize(t *testing.T) {
	cfg := &config.Config{
		BatchMaxSamples: 3,
		BatchMaxSpanMS:  30000,
		FlushIntervalMS: 5000,
		DropTooOldMS:    30000,
	}

	sink := &TestSink{}
	batcher := NewBatcher(cfg, sink, nil)
	defer batcher.Stop()

	// 5 измерений подряд: один батч из 3, остаток ждет таймера
	for i, fhr := range []float64{120, 121, 122, 123, 124} {
		require.NoError(t, batcher.Add("session1", sample(1+float64(i)*0.2, fhr)))
	}

	require.Eventually(t, func() bool { return len(sink.GetBatches()) == 1 }, time.Second, 10*time.Millisecond)
	batches := sink.GetBatches()
	assert.Len(t, batches[0].Samples, 3)
	assert.Equal(t, "session1", batches[0].SessionID)
}

func TestBatcher_FlushBySpan(t *testing.T) {
	cfg := &config.Config{
		BatchMaxSamples: 100,
		BatchMaxSpanMS:  1000,
		FlushIntervalMS: 5000,
		DropTooOldMS:    30000,
	}

	sink := &TestSink{}
	batcher := NewBatcher(cfg, sink, nil)
	defer batcher.Stop()

	require.NoError(t, batcher.Add("session1", sample(1.0, 120)))
	require.NoError(t, batcher.Add("session1", sample(1.5, 121)))
	// диапазон 1100 мс > 1000: сбрасываются первые два измерения
	require.NoError(t, batcher.Add("session1", sample(2.1, 122)))

	require.Eventually(t, func() bool { return len(sink.GetBatches()) == 1 }, time.Second, 10*time.Millisecond)
	batch := sink.GetBatches()[0]
	assert.Len(t, batch.Samples, 2)
	assert.Equal(t, int64(500), batch.T1MS-batch.T0MS)
}

func TestBatcher_OutOfOrderTolerance(t *testing.T) {
	cfg := &config.Config{
		BatchMaxSamples:     100,
		BatchMaxSpanMS:      30000,
		FlushIntervalMS:     5000,
		OutOfOrderTolerance: 100 * time.Millisecond,
		DropTooOldMS:        30000,
	}

	sink := &TestSink{}
	batcher := NewBatcher(cfg, sink, nil)

	require.NoError(t, batcher.Add("session1", sample(1.0, 120)))
	require.NoError(t, batcher.Add("session1", sample(1.5, 121)))
	require.NoError(t, batcher.Add("session1", sample(1.2, 122)))

	// Stop сбрасывает все незавершенные батчи
	batcher.Stop()

	batches := sink.GetBatches()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0].Samples, 3)

	received, dropped, _, outOfOrder := batcher.GetStats()
	assert.Equal(t, int64(3), received)
	assert.Equal(t, int64(0), dropped)
	assert.Equal(t, int64(1), outOfOrder)
}

func TestBatcher_DropTooOld(t *testing.T) {
	cfg := &config.Config{
		BatchMaxSamples:     100,
		BatchMaxSpanMS:      30000,
		FlushIntervalMS:     5000,
		OutOfOrderTolerance: 500 * time.Millisecond,
		DropTooOldMS:        2000,
	}

	batcher := NewBatcher(cfg, &TestSink{}, nil)
	defer batcher.Stop()

	require.NoError(t, batcher.Add("session1", sample(5, 120)))
	require.NoError(t, batcher.Add("session1", sample(6, 121)))
	require.NoError(t, batcher.Add("session1", sample(1, 122)))

	received, dropped, _, _ := batcher.GetStats()
	assert.Equal(t, int64(2), received)
	assert.Equal(t, int64(1), dropped)
}

func TestBatcher_InvalidSamplesDropped(t *testing.T) {
	cfg := &config.Config{BatchMaxSamples: 100, BatchMaxSpanMS: 30000, FlushIntervalMS: 5000, DropTooOldMS: 30000}
	batcher := NewBatcher(cfg, &TestSink{}, nil)
	defer batcher.Stop()

	assert.NoError(t, batcher.Add("", sample(1, 120)))
	assert.NoError(t, batcher.Add("s", sample(1, 260)))
	assert.NoError(t, batcher.Add("s", pipeline.Sample{TimeSec: 1, FHR: 140, UC: 350}))
	assert.NoError(t, batcher.Add("s", pipeline.Sample{TimeSec: math.Inf(1), FHR: 140, UC: 10}))
	assert.NoError(t, batcher.Add("s", pipeline.Sample{TimeSec: 1, FHR: math.NaN(), UC: math.NaN()}))
	assert.NoError(t, batcher.Add("s", pipeline.Sample{TimeSec: 1, FHR: math.NaN(), UC: 10}))

	received, dropped, _, _ := batcher.GetStats()
	assert.Equal(t, int64(1), received)
	assert.Equal(t, int64(5), dropped)
}

func TestBatcher_TimerFlush(t *testing.T) {
	cfg := &config.Config{
		BatchMaxSamples: 100,
		BatchMaxSpanMS:  30000,
		FlushIntervalMS: 50,
		DropTooOldMS:    30000,
	}

	sink := &TestSink{}
	batcher := NewBatcher(cfg, sink, nil)
	defer batcher.Stop()

	require.NoError(t, batcher.Add("session1", sample(1, 120)))

	require.Eventually(t, func() bool { return len(sink.GetBatches()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, sink.GetBatches()[0].Samples, 1)
}

func TestBatcher_SessionsBatchedSeparately(t *testing.T) {
	cfg := &config.Config{
		BatchMaxSamples: 2,
		BatchMaxSpanMS:  30000,
		FlushIntervalMS: 5000,
		DropTooOldMS:    30000,
	}

	sink := &TestSink{}
	batcher := NewBatcher(cfg, sink, nil)
	defer batcher.Stop()

	batcher.AddAll("a", []pipeline.Sample{sample(1.0, 120), sample(1.2, 121)})
	batcher.AddAll("b", []pipeline.Sample{sample(1.1, 130), sample(1.3, 131)})

	require.Eventually(t, func() bool { return len(sink.GetBatches()) == 2 }, time.Second, 10*time.Millisecond)
	ids := []string{sink.GetBatches()[0].SessionID, sink.GetBatches()[1].SessionID}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestBatcher_FlushSession(t *testing.T) {
	cfg := &config.Config{BatchMaxSamples: 100, BatchMaxSpanMS: 30000, FlushIntervalMS: 5000, DropTooOldMS: 30000}
	sink := &TestSink{}
	batcher := NewBatcher(cfg, sink, nil)
	defer batcher.Stop()

	require.NoError(t, batcher.Add("a", sample(1, 120)))
	batcher.FlushSession("a")

	require.Eventually(t, func() bool { return len(sink.GetBatches()) == 1 }, time.Second, 10*time.Millisecond)
}
