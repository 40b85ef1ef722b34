package pipeline

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Krimson/ctg-stream/monitor/internal/model"
)

// StatusComposerStage собирает строку статуса для быстрого чтения. Пишет только CurrentStatus.
type StatusComposerStage struct {
	cfg ModelsConfig
}

func NewStatusComposerStage(cfg ModelsConfig) *StatusComposerStage {
	return &StatusComposerStage{cfg: cfg}
}

func (s *StatusComposerStage) Name() string { return "status" }

func (s *StatusComposerStage) Tick(st *State) error {
	st.Snap.CurrentStatus = ComposeStatus(st, s.cfg)
	return nil
}

// ComposeStatus: вероятность гипоксии, идущие события, тахи- или брадикардия, счетчики событий
func ComposeStatus(st *State, cfg ModelsConfig) string {
	parts := []string{probabilityPhrase(st, cfg)}

	if st.ActiveAcceleration != nil {
		parts = append(parts, "Acceleration in progress")
	}
	if st.ActiveDeceleration != nil {
		parts = append(parts, "Deceleration in progress")
	}

	switch {
	case st.Flags.TachyActive:
		baseline, curr := st.Snap.MedianFHR10Min, st.Snap.CurrentFHR
		if baseline != nil && curr != nil {
			delta := *curr - *baseline
			sign := "+"
			if delta < 0 {
				sign = "-"
			}
			parts = append(parts, fmt.Sprintf("Suspected tachycardia (%s%.0f bpm from baseline)", sign, math.Abs(math.Round(delta))))
		} else {
			parts = append(parts, "Suspected tachycardia")
		}
	case st.Flags.BradyActive:
		parts = append(parts, "Suspected bradycardia")
	}

	parts = append(parts, fmt.Sprintf("Accel/Decel: %d/%d", len(st.Events.Accelerations), len(st.Events.Decelerations)))
	return strings.Join(parts, " | ")
}

func probabilityPhrase(st *State, cfg ModelsConfig) string {
	proba := st.Snap.HypoxiaProbaEWMA
	if proba == nil {
		proba = st.Snap.HypoxiaProba
	}
	if proba == nil && errors.Is(st.hypoxiaErr, model.ErrUnavailable) {
		return "Fetal hypoxia probability: model unavailable"
	}
	if proba == nil {
		minutes := max(0, cfg.WindowSec/60-1-st.Now/60)
		return fmt.Sprintf("Fetal hypoxia probability: available in %d min", minutes)
	}

	pct := int(math.Round(*proba * 100))
	switch {
	case *proba >= cfg.HighRiskThreshold:
		return fmt.Sprintf("High fetal hypoxia probability: %d%%", pct)
	case *proba >= cfg.ElevatedThreshold:
		return fmt.Sprintf("Elevated fetal hypoxia probability: %d%%", pct)
	default:
		return fmt.Sprintf("Fetal hypoxia probability: %d%%", pct)
	}
}
