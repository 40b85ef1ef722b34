package pipeline

import (
	"fmt"
	"math"

	"github.com/Krimson/ctg-stream/monitor/internal/model"
	"github.com/Krimson/ctg-stream/monitor/pkg/mathutil"
	"go.uber.org/zap"
)

// Pipeline потоковый анализ одной сессии мониторинга.
// Не потокобезопасен: тики одной сессии выполняются последовательно одним владельцем.
type Pipeline struct {
	cfg       Config
	state     *State
	stages    []Stage
	finalized bool
}

// New создает конвейер сессии. Параметры окна моделей из bundle переопределяют cfg.
// bundle может быть nil, тогда стадия моделей ничего не делает.
func New(sessionID string, cfg Config, bundle *model.Bundle, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bundle != nil {
		if bundle.WindowSize > 0 {
			cfg.Models.WindowSec = bundle.WindowSize
		}
		if bundle.StepSize > 0 {
			cfg.Models.StepSec = bundle.StepSize
		}
		if bundle.EWMAAlpha > 0 {
			cfg.Models.EWMAAlpha = bundle.EWMAAlpha
		}
	}

	return &Pipeline{
		cfg:   cfg,
		state: NewState(sessionID, cfg),
		stages: []Stage{
			IngestionStage{},
			NewTachyBradyStage(cfg.Tachy),
			NewSTVStage(cfg.STV),
			NewContractionStage(cfg.Contraction),
			NewAccelDecelStage(cfg.AccelDecel),
			NewModelsStage(cfg.Models, cfg.FS, bundle, logger.With(zap.String("session_id", sessionID))),
			NewFIGOStage(cfg.FIGO),
			NewSavelyevaStage(cfg.Savelyeva, cfg.FS),
			NewFischerStage(cfg.Fischer, cfg.FS),
			NewStatusComposerStage(cfg.Models),
		},
	}
}

// Tick продвигает время сессии на одну секунду: принимает новые измерения
// (измерения из будущего ждут своего тика), выполняет стадии по порядку
// и возвращает снимок. Ошибка возвращается только при нарушении инварианта
// или после финализации.
func (p *Pipeline) Tick(samples []Sample) (Snapshot, error) {
	if p.finalized {
		return Snapshot{}, ErrFinalized
	}

	st := p.state
	mark := st.Notifications.Len()

	st.enqueue(samples)
	st.Now++
	st.admit()

	for _, stage := range p.stages {
		if err := stage.Tick(st); err != nil {
			return Snapshot{}, fmt.Errorf("stage %s at %ds: %w", stage.Name(), st.Now, err)
		}
	}

	return st.materialize(mark), nil
}

// Now текущее время сессии в секундах
func (p *Pipeline) Now() int { return p.state.Now }

// Backlog число принятых измерений, ждущих своего тика
func (p *Pipeline) Backlog() int { return len(p.state.pending) }

// State возвращает состояние сессии только для чтения
func (p *Pipeline) State() *State { return p.state }

// Stages возвращает имена стадий в порядке выполнения
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Summary итоги сессии
type Summary struct {
	SessionID         string   `json:"session_id"`
	DurationSec       int      `json:"duration_sec"`
	FIGO              *string  `json:"figo"`
	SavelyevaScore    *int     `json:"savelyeva_score"`
	SavelyevaCategory *string  `json:"savelyeva_category"`
	FischerScore      *int     `json:"fischer_score"`
	FischerCategory   *string  `json:"fischer_category"`
	BaselineBPM       *float64 `json:"baseline_bpm"`
	STVAll            *float64 `json:"stv_all"`
	STV10MinMean      *float64 `json:"stv_10min_mean"`
	UterusMean        *float64 `json:"uterus_mean"`

	AccelerationsCount int `json:"accelerations_count"`
	DecelerationsCount int `json:"decelerations_count"`
	ContractionsCount  int `json:"contractions_count"`
}

// Finalize вычисляет итоги сессии по накопленному состоянию. После вызова тики
// запрещены; повторный вызов возвращает те же итоги.
func (p *Pipeline) Finalize() Summary {
	p.finalized = true
	st := p.state
	perMinute := p.cfg.FS * 60

	sum := Summary{
		SessionID:          st.SessionID,
		DurationSec:        st.Now,
		AccelerationsCount: len(st.Events.Accelerations),
		DecelerationsCount: len(st.Events.Decelerations),
		ContractionsCount:  len(st.Events.Contractions),
	}

	if st.Snap.FIGO != "" {
		figo := st.Snap.FIGO
		sum.FIGO = &figo
	}
	if r := st.Snap.Savelyeva; r != nil {
		sum.SavelyevaScore = intPtr(r.Total)
		cat := r.Category
		sum.SavelyevaCategory = &cat
	}
	if r := st.Snap.Fischer; r != nil {
		sum.FischerScore = intPtr(r.Total)
		cat := r.Category
		sum.FischerCategory = &cat
	}

	if vals := st.SecFHR.LastSeconds(st.Now, p.cfg.Tachy.BaselineWindowSec); len(vals) > 0 {
		sum.BaselineBPM = floatPtr(mathutil.Round(mathutil.Median(vals), 1))
	}

	fhr := fhrValues(st.Window)
	if stv := CalculateSTV(fhr, perMinute, p.cfg.STV.ChunksPerMinute); !math.IsNaN(stv) {
		sum.STVAll = floatPtr(mathutil.Round(stv, 2))
	}
	if stv := RollingSTVMean(fhr, perMinute, p.cfg.STV.ChunksPerMinute, 10); !math.IsNaN(stv) {
		sum.STV10MinMean = floatPtr(mathutil.Round(stv, 2))
	}
	if uc := ucValues(st.Window); len(uc) > 0 {
		sum.UterusMean = floatPtr(mathutil.Round(mathutil.Mean(uc), 2))
	}
	return sum
}
