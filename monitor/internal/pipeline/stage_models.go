package pipeline

import (
	"github.com/Krimson/ctg-stream/monitor/internal/features"
	"github.com/Krimson/ctg-stream/monitor/internal/model"
	"github.com/Krimson/ctg-stream/monitor/pkg/mathutil"
	"go.uber.org/zap"
)

// ModelsStage прогнозы STV и сглаженная вероятность гипоксии на скользящем окне признаков.
// Сбой модели оставляет предыдущие значения без изменений.
type ModelsStage struct {
	cfg    ModelsConfig
	bundle *model.Bundle
	calc   *features.Calculator
	logger *zap.Logger
}

func NewModelsStage(cfg ModelsConfig, fs int, bundle *model.Bundle, logger *zap.Logger) *ModelsStage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelsStage{
		cfg:    cfg,
		bundle: bundle,
		calc:   features.NewCalculator(float64(fs)),
		logger: logger,
	}
}

func (s *ModelsStage) Name() string { return "models" }

func (s *ModelsStage) Tick(st *State) error {
	if s.bundle == nil {
		st.hypoxiaErr = model.ErrUnavailable
		return nil
	}
	if s.bundle.Hypoxia == nil {
		st.hypoxiaErr = model.ErrUnavailable
	}
	if !due(st.Now, s.cfg.StepSec) || st.Now < s.cfg.WindowSec {
		return nil
	}

	window := st.windowFrom(float64(st.Now - s.cfg.WindowSec))
	if len(window) == 0 {
		return nil
	}

	fhr := make([]float64, len(window))
	uc := make([]float64, len(window))
	for i, smp := range window {
		fhr[i] = smp.FHR
		uc[i] = smp.UC
	}
	feats := s.calc.Calculate(fhr, uc, float64(st.Now))

	s.forecast(st, feats)
	s.hypoxia(st, feats)
	return nil
}

func (s *ModelsStage) forecast(st *State, feats map[string]float64) {
	for _, name := range s.bundle.STVNames() {
		res := model.Regress(s.bundle.STV[name], feats)
		if !res.OK() {
			s.logger.Warn("STV forecast failed",
				zap.String("session_id", st.SessionID),
				zap.Int("second", st.Now),
				zap.String("model", name),
				zap.Error(res.Err))
			continue
		}
		if st.Snap.STVForecast == nil {
			st.Snap.STVForecast = make(map[string]float64, len(s.bundle.STV))
		}
		st.Snap.STVForecast[name] = mathutil.Round(res.Value, 2)
	}
}

func (s *ModelsStage) hypoxia(st *State, feats map[string]float64) {
	res := model.Classify(s.bundle.Hypoxia, feats)
	st.hypoxiaErr = res.Err
	if !res.OK() {
		s.logger.Warn("Hypoxia classifier failed",
			zap.String("session_id", st.SessionID),
			zap.Int("second", st.Now),
			zap.String("model", "hypoxia"),
			zap.Error(res.Err))
		return
	}

	ewma := UpdateEWMA(st, res.Value, s.cfg.EWMAAlpha)
	st.Snap.HypoxiaProba = floatPtr(mathutil.Round(res.Value, 3))
	st.Snap.HypoxiaProbaEWMA = floatPtr(mathutil.Round(ewma, 3))

	if ewma >= s.cfg.HighRiskThreshold {
		if !st.Flags.HypoxiaActive {
			st.notify(KindHypoxiaHigh, ColorRed, "High hypoxia probability: %.2f", ewma)
			st.Flags.HypoxiaActive = true
		}
		return
	}
	if st.Flags.HypoxiaActive {
		st.notify(KindHypoxiaDecreased, ColorGreen, "Hypoxia probability decreased")
	}
	st.Flags.HypoxiaActive = false
}

// UpdateEWMA обновляет экспоненциальное сглаживание вероятности; первое наблюдение задает начальное значение
func UpdateEWMA(st *State, p, alpha float64) float64 {
	if !st.hasEWMA {
		st.hypoxiaEWMA = p
		st.hasEWMA = true
		return p
	}
	st.hypoxiaEWMA = alpha*p + (1-alpha)*st.hypoxiaEWMA
	return st.hypoxiaEWMA
}
