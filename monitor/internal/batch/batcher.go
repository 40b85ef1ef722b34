package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Krimson/ctg-stream/monitor/internal/config"
	"github.com/Krimson/ctg-stream/monitor/internal/pipeline"
	"go.uber.org/zap"
)

// Batcher группирует поступающие измерения по сессиям и передает батчи в Sink
// по размеру, временному диапазону или таймеру
type Batcher struct {
	cfg     *config.Config
	sink    Sink
	logger  *zap.Logger
	mu      sync.Mutex
	batches map[string]*currentBatch

	flushChan chan Batch
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	stats struct {
		mu         sync.RWMutex
		received   int64
		dropped    int64
		flushed    int64
		outOfOrder int64
	}
}

// LogSink пишет сводку батча в лог
type LogSink struct {
	Logger *zap.Logger
}

func (ls *LogSink) Consume(ctx context.Context, b Batch) error {
	ls.Logger.Debug("Batch",
		zap.String("session_id", b.SessionID),
		zap.Int("samples", len(b.Samples)),
		zap.Int64("span_ms", b.T1MS-b.T0MS))
	return nil
}

func NewBatcher(cfg *config.Config, sink Sink, logger *zap.Logger) *Batcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Batcher{
		cfg:       cfg,
		sink:      sink,
		logger:    logger,
		batches:   make(map[string]*currentBatch),
		flushChan: make(chan Batch, 100),
		stopChan:  make(chan struct{}),
	}

	b.wg.Add(2)
	go b.flushWorker()
	go b.timerFlusher()

	return b
}

// Add принимает одно измерение сессии. Невалидные измерения отбрасываются
// и учитываются в статистике; ошибка не возвращается.
func (b *Batcher) Add(sessionID string, s pipeline.Sample) error {
	if err := validateSample(sessionID, s); err != nil {
		b.incrementDropped()
		b.logger.Debug("Invalid sample dropped", zap.String("session_id", sessionID), zap.Error(err))
		return nil
	}

	tsMS := timestampMS(s)
	nowMS := time.Now().UnixMilli()

	b.mu.Lock()
	defer b.mu.Unlock()

	batch, exists := b.batches[sessionID]
	if !exists {
		batch = newCurrentBatch(sessionID)
		b.batches[sessionID] = batch
	}

	if len(batch.Samples) > 0 {
		timeDiff := batch.T1MS - tsMS

		if timeDiff > b.cfg.DropTooOldMS {
			b.incrementDropped()
			b.logger.Warn("Sample too old, dropped",
				zap.String("session_id", sessionID),
				zap.Int64("ts_diff_ms", timeDiff))
			return nil
		}

		if timeDiff > b.cfg.OutOfOrderTolerance.Milliseconds() {
			b.incrementOutOfOrder()
			b.logger.Debug("Out of order sample",
				zap.String("session_id", sessionID),
				zap.Int64("ts_diff_ms", timeDiff))
		}

		span := tsMS - batch.T0MS
		if tsMS < batch.T0MS {
			span = batch.T1MS - tsMS
		}
		if span > b.cfg.BatchMaxSpanMS {
			b.flushBatch(batch)
		}
	}

	batch.addSample(s, tsMS, nowMS)
	b.incrementReceived()

	if batch.shouldFlushBySize(b.cfg.BatchMaxSamples) {
		b.flushBatch(batch)
	}

	return nil
}

// AddAll принимает пачку измерений одной сессии
func (b *Batcher) AddAll(sessionID string, samples []pipeline.Sample) {
	for _, s := range samples {
		_ = b.Add(sessionID, s)
	}
}

func validateSample(sessionID string, s pipeline.Sample) error {
	if sessionID == "" {
		return fmt.Errorf("empty session_id")
	}
	if !s.Valid() {
		return fmt.Errorf("invalid sample: t=%v fhr=%v uc=%v", s.TimeSec, s.FHR, s.UC)
	}
	return nil
}

// flushBatch вызывается под b.mu
func (b *Batcher) flushBatch(batch *currentBatch) {
	if len(batch.Samples) == 0 {
		return
	}

	batchCopy := batch.clone()
	batch.reset()

	select {
	case b.flushChan <- batchCopy:
		b.incrementFlushed()
	default:
		b.logger.Warn("Flush channel full, batch dropped", zap.String("session_id", batchCopy.SessionID))
		b.incrementDropped()
	}
}

func (b *Batcher) flushWorker() {
	defer b.wg.Done()
	for {
		select {
		case batch := <-b.flushChan:
			b.consume(batch)

		case <-b.stopChan:
			for {
				select {
				case batch := <-b.flushChan:
					b.consume(batch)
				default:
					return
				}
			}
		}
	}
}

func (b *Batcher) consume(batch Batch) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.sink.Consume(ctx, batch); err != nil {
		b.logger.Error("Failed to consume batch",
			zap.String("session_id", batch.SessionID),
			zap.Error(err))
	}
}

func (b *Batcher) timerFlusher() {
	defer b.wg.Done()
	ticker := time.NewTicker(time.Duration(b.cfg.FlushIntervalMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.flushOldBatches()

		case <-b.stopChan:
			return
		}
	}
}

func (b *Batcher) flushOldBatches() {
	now := time.Now().UnixMilli()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, batch := range b.batches {
		if len(batch.Samples) > 0 && now-batch.lastAddedMS >= b.cfg.FlushIntervalMS {
			b.flushBatch(batch)
		}
	}
}

// FlushSession немедленно сбрасывает незавершенный батч сессии
func (b *Batcher) FlushSession(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if batch, ok := b.batches[sessionID]; ok {
		b.flushBatch(batch)
		delete(b.batches, sessionID)
	}
}

// Stop сбрасывает все батчи, дожидается их обработки и останавливает фоновые горутины
func (b *Batcher) Stop() {
	b.stopOnce.Do(func() {
		b.logger.Info("Stopping batcher")

		b.flushAllBatches()
		close(b.stopChan)
		b.wg.Wait()

		received, dropped, flushed, outOfOrder := b.GetStats()
		b.logger.Info("Batcher stats",
			zap.Int64("received", received),
			zap.Int64("dropped", dropped),
			zap.Int64("flushed", flushed),
			zap.Int64("out_of_order", outOfOrder))
	})
}

func (b *Batcher) flushAllBatches() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, batch := range b.batches {
		b.flushBatch(batch)
	}
}

// Методы для работы со статистикой
func (b *Batcher) incrementReceived() {
	b.stats.mu.Lock()
	b.stats.received++
	b.stats.mu.Unlock()
}

func (b *Batcher) incrementDropped() {
	b.stats.mu.Lock()
	b.stats.dropped++
	b.stats.mu.Unlock()
}

func (b *Batcher) incrementFlushed() {
	b.stats.mu.Lock()
	b.stats.flushed++
	b.stats.mu.Unlock()
}

func (b *Batcher) incrementOutOfOrder() {
	b.stats.mu.Lock()
	b.stats.outOfOrder++
	b.stats.mu.Unlock()
}

func (b *Batcher) GetStats() (received, dropped, flushed, outOfOrder int64) {
	b.stats.mu.RLock()
	defer b.stats.mu.RUnlock()

	return b.stats.received, b.stats.dropped, b.stats.flushed, b.stats.outOfOrder
}
