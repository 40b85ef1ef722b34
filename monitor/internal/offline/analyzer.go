package offline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Krimson/ctg-stream/monitor/internal/csvreader"
	"github.com/Krimson/ctg-stream/monitor/internal/model"
	"github.com/Krimson/ctg-stream/monitor/internal/pipeline"
	"github.com/Krimson/ctg-stream/monitor/internal/session"
	"go.uber.org/zap"
)

var (
	ErrNoSamples        = errors.New("recording has no samples")
	ErrRecordingTooLong = errors.New("recording exceeds maximum duration")
)

// DefaultMaxDuration предельная длительность записи для разбора
const DefaultMaxDuration = 6 * time.Hour

// Report результат разбора записи целиком
type Report struct {
	SessionID     string                  `json:"session_id"`
	DurationSec   int                     `json:"duration_sec"`
	SamplesCount  int                     `json:"samples_count"`
	Snapshot      pipeline.Snapshot       `json:"snapshot"`
	Summary       pipeline.Summary        `json:"summary"`
	Events        []session.SessionEvent  `json:"events"`
	Notifications []pipeline.Notification `json:"notifications"`
	Saved         bool                    `json:"saved"`
}

// Analyzer прогоняет готовую запись через свежий конвейер посекундно
type Analyzer struct {
	cfg        pipeline.Config
	bundle     *model.Bundle
	repository session.Repository
	logger     *zap.Logger

	maxDurationSec int
}

// NewAnalyzer создает анализатор; repository может быть nil, тогда сохранение недоступно
func NewAnalyzer(cfg pipeline.Config, bundle *model.Bundle, repository session.Repository, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		cfg:            cfg,
		bundle:         bundle,
		repository:     repository,
		logger:         logger,
		maxDurationSec: int(DefaultMaxDuration / time.Second),
	}
}

// WithMaxDuration задает предельную длительность записи; d <= 0 оставляет текущую
func (a *Analyzer) WithMaxDuration(d time.Duration) *Analyzer {
	if d > 0 {
		a.maxDurationSec = int(d / time.Second)
	}
	return a
}

// Analyze выполняет по тику на каждую секунду записи и финализирует сессию.
// Время отсчитывается от секунды первого измерения; секунды без измерений
// тикают пустыми. Запись длиннее предела отклоняется до первого тика.
func (a *Analyzer) Analyze(ctx context.Context, sessionID string, samples []pipeline.Sample) (*Report, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	ordered := rebase(samples)

	span := ordered[len(ordered)-1].TimeSec
	if span > float64(a.maxDurationSec) {
		return nil, fmt.Errorf("%w: %.0fs > %ds", ErrRecordingTooLong, math.Ceil(span), a.maxDurationSec)
	}

	groups := csvreader.GroupBySecond(ordered)
	last := 0
	for sec := range groups {
		if sec > last {
			last = sec
		}
	}

	started := time.Now()
	pipe := pipeline.New(sessionID, a.cfg, a.bundle, a.logger)

	var snap pipeline.Snapshot
	for sec := 1; sec <= last; sec++ {
		if sec%60 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		var err error
		snap, err = pipe.Tick(groups[sec])
		if err != nil {
			return nil, fmt.Errorf("analyze %s: %w", sessionID, err)
		}
	}

	summary := pipe.Finalize()
	events := pipe.State().Events

	report := &Report{
		SessionID:     sessionID,
		DurationSec:   summary.DurationSec,
		SamplesCount:  len(ordered),
		Snapshot:      snap,
		Summary:       summary,
		Events:        session.ConvertEvents(sessionID, events),
		Notifications: flatten(snap.Notifications),
	}

	a.logger.Info("offline analysis complete",
		zap.String("session_id", sessionID),
		zap.Int("duration_sec", summary.DurationSec),
		zap.Int("samples", len(ordered)),
		zap.Duration("elapsed", time.Since(started)))
	return report, nil
}

// Save архивирует результат разбора как остановленную сессию
func (a *Analyzer) Save(ctx context.Context, report *Report, meta session.Metadata) error {
	if a.repository == nil {
		return errors.New("archive is not configured")
	}

	now := time.Now()
	meta.CreatedFrom = "offline"
	sess := &session.Session{
		ID:           report.SessionID,
		Status:       session.SessionStatusStopped,
		StartedAt:    now.Add(-time.Duration(report.DurationSec) * time.Second),
		StoppedAt:    &now,
		DurationSec:  report.DurationSec,
		TotalSamples: int64(report.SamplesCount),
		Metadata:     meta,
	}

	if err := a.repository.CreateSession(ctx, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if err := a.repository.SaveSummary(ctx, &report.Summary); err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	if err := a.repository.SaveEvents(ctx, report.Events); err != nil {
		return fmt.Errorf("failed to save events: %w", err)
	}
	report.Saved = true
	return nil
}

// rebase сортирует копию измерений по времени и сдвигает ее так,
// чтобы первое измерение попало в секунду 1
func rebase(samples []pipeline.Sample) []pipeline.Sample {
	ordered := append([]pipeline.Sample(nil), samples...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].TimeSec < ordered[j].TimeSec })

	offset := math.Ceil(ordered[0].TimeSec) - 1
	if offset <= 0 {
		return ordered
	}
	for i := range ordered {
		ordered[i].TimeSec -= offset
	}
	return ordered
}

func flatten(all map[int][]pipeline.Notification) []pipeline.Notification {
	secs := make([]int, 0, len(all))
	for sec := range all {
		secs = append(secs, sec)
	}
	sort.Ints(secs)

	out := make([]pipeline.Notification, 0, len(secs))
	for _, sec := range secs {
		out = append(out, all[sec]...)
	}
	return out
}
