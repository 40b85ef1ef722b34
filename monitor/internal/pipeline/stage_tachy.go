package pipeline

import (
	"fmt"

	"github.com/Krimson/ctg-stream/monitor/pkg/mathutil"
)

const insufficientData = "Insufficient data"

// TachyBradyStage оценивает 10-минутный базальный ритм и фронты тахикардии и брадикардии
type TachyBradyStage struct {
	cfg TachyConfig
}

func NewTachyBradyStage(cfg TachyConfig) *TachyBradyStage {
	return &TachyBradyStage{cfg: cfg}
}

func (s *TachyBradyStage) Name() string { return "tachy_brady" }

func (s *TachyBradyStage) Tick(st *State) error {
	if due(st.Now, s.cfg.TachyEvalEverySec) {
		s.evalTachy(st)
	}
	if due(st.Now, s.cfg.BradyEvalEverySec) {
		s.evalBrady(st)
	}
	return nil
}

// baseline медиана ЧСС за окно базального ритма на текущую секунду
func (s *TachyBradyStage) baseline(st *State) (float64, bool) {
	vals := st.SecFHR.LastSeconds(st.Now, s.cfg.BaselineWindowSec)
	if len(vals) == 0 {
		return 0, false
	}
	return mathutil.Median(vals), true
}

func (s *TachyBradyStage) evalTachy(st *State) {
	baseline, ok := s.baseline(st)
	if !ok {
		st.Snap.MedianFHR10Min = nil
		st.Snap.Tachycardia = insufficientData
		st.Flags.TachyActive = false
		return
	}
	st.Snap.MedianFHR10Min = floatPtr(baseline)

	if baseline > s.cfg.TachyThreshold {
		deviation := mathutil.Round(baseline-s.cfg.TachyThreshold, 1)
		st.Snap.Tachycardia = fmt.Sprintf("Suspected tachycardia (baseline ≈ %.1f bpm, +%.1f bpm)", baseline, deviation)
		if !st.Flags.TachyActive {
			st.notify(KindTachycardia, ColorRed, "Tachycardia: baseline ≈ %.1f bpm", baseline)
			st.Flags.TachyActive = true
		}
		return
	}

	st.Snap.Tachycardia = fmt.Sprintf("No signs of tachycardia (baseline ≈ %.1f bpm)", baseline)
	if st.Flags.TachyActive {
		st.notify(KindTachycardiaResolved, ColorGreen, "Tachycardia resolved")
	}
	st.Flags.TachyActive = false
}

func (s *TachyBradyStage) evalBrady(st *State) {
	baseline, ok := s.baseline(st)
	if !ok {
		return
	}

	if baseline < s.cfg.BradyThreshold {
		if !st.Flags.BradyActive {
			st.notify(KindBradycardia, ColorRed, "Bradycardia: baseline ≈ %.1f bpm", baseline)
			st.Flags.BradyActive = true
		}
		return
	}

	if st.Flags.BradyActive {
		st.notify(KindBradycardiaResolved, ColorGreen, "Bradycardia resolved")
	}
	st.Flags.BradyActive = false
}
