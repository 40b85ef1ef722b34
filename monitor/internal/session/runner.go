package session

import (
	"context"
	"sync"
	"time"

	"github.com/Krimson/ctg-stream/monitor/internal/pipeline"
	"go.uber.org/zap"
)

// maxDrainTicks предел тиков при досчете очереди перед финализацией
const maxDrainTicks = 60

// Publisher получает снимок после каждого тика (websocket, кэш)
type Publisher interface {
	Publish(snap pipeline.Snapshot)
}

// PublisherFunc адаптер функции к Publisher
type PublisherFunc func(snap pipeline.Snapshot)

func (f PublisherFunc) Publish(snap pipeline.Snapshot) { f(snap) }

// FinalizeFunc получает итоги и закрытые события после финализации
type FinalizeFunc func(sum pipeline.Summary, events pipeline.Events)

// Runner владеет конвейером одной сессии. Тики выполняются только в горутине Run,
// остальные методы потокобезопасны.
type Runner struct {
	id         string
	pipe       *pipeline.Pipeline
	interval   time.Duration
	publishers []Publisher
	onFinalize FinalizeFunc
	logger     *zap.Logger

	mu       sync.RWMutex
	pending  []pipeline.Sample
	last     *pipeline.Snapshot
	summary  *pipeline.Summary
	lastData time.Time
	samples  int64

	finalizeOnce sync.Once
	stopOnce     sync.Once
	stopChan     chan struct{}
	done         chan struct{}
}

// NewRunner создает исполнителя сессии; Run запускается отдельно
func NewRunner(pipe *pipeline.Pipeline, interval time.Duration, publishers []Publisher, onFinalize FinalizeFunc, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Second
	}
	id := pipe.State().SessionID
	return &Runner{
		id:         id,
		pipe:       pipe,
		interval:   interval,
		publishers: publishers,
		onFinalize: onFinalize,
		logger:     logger.With(zap.String("session_id", id)),
		lastData:   time.Now(),
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// ID идентификатор сессии
func (r *Runner) ID() string { return r.id }

// Push ставит измерения в очередь до следующего тика
func (r *Runner) Push(samples []pipeline.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.summary != nil {
		return ErrSessionNotActive
	}
	r.pending = append(r.pending, samples...)
	r.samples += int64(len(samples))
	r.lastData = time.Now()
	return nil
}

// Run выполняет тики с интервалом до Stop или отмены контекста, затем финализирует
func (r *Runner) Run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.tickOnce(); err != nil {
				r.logger.Error("tick failed, finalizing session", zap.Error(err))
				r.finalize()
				return
			}
		case <-r.stopChan:
			r.drain()
			r.finalize()
			return
		case <-ctx.Done():
			r.drain()
			r.finalize()
			return
		}
	}
}

// tickOnce забирает накопленные измерения и выполняет ровно один тик
func (r *Runner) tickOnce() error {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	snap, err := r.pipe.Tick(batch)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.last = &snap
	r.mu.Unlock()

	for _, p := range r.publishers {
		p.Publish(snap)
	}
	return nil
}

// drain досчитывает принятые измерения перед финализацией: тикает, пока
// очередь исполнителя или конвейера не пуста, но не более maxDrainTicks раз
func (r *Runner) drain() {
	for i := 0; i < maxDrainTicks; i++ {
		r.mu.RLock()
		queued := len(r.pending)
		r.mu.RUnlock()
		if queued == 0 && r.pipe.Backlog() == 0 {
			return
		}
		if err := r.tickOnce(); err != nil {
			r.logger.Error("tick failed while draining", zap.Error(err))
			return
		}
	}
	if backlog := r.pipe.Backlog(); backlog > 0 {
		r.logger.Warn("samples left undrained at finalization", zap.Int("samples", backlog))
	}
}

// finalize выполняется ровно один раз
func (r *Runner) finalize() {
	r.finalizeOnce.Do(func() {
		sum := r.pipe.Finalize()
		events := r.pipe.State().Events

		r.mu.Lock()
		r.summary = &sum
		r.pending = nil
		r.mu.Unlock()

		r.logger.Info("session finalized",
			zap.Int("duration_sec", sum.DurationSec),
			zap.Int("accelerations", sum.AccelerationsCount),
			zap.Int("decelerations", sum.DecelerationsCount),
			zap.Int("contractions", sum.ContractionsCount))

		if r.onFinalize != nil {
			r.onFinalize(sum, events)
		}
	})
}

// Stop завершает поток, дожидается финализации и возвращает итоги
func (r *Runner) Stop() pipeline.Summary {
	r.stopOnce.Do(func() { close(r.stopChan) })
	<-r.done
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *r.summary
}

// Done закрывается после финализации
func (r *Runner) Done() <-chan struct{} { return r.done }

// Snapshot последний снимок или nil до первого тика
func (r *Runner) Snapshot() *pipeline.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return nil
	}
	snap := *r.last
	return &snap
}

// Summary итоги после финализации или nil
func (r *Runner) Summary() *pipeline.Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.summary == nil {
		return nil
	}
	sum := *r.summary
	return &sum
}

// IdleSince время последнего поступления данных
func (r *Runner) IdleSince() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastData
}

// TotalSamples число принятых измерений
func (r *Runner) TotalSamples() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.samples
}
