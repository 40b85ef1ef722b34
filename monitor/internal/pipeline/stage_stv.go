package pipeline

import (
	"math"

	"github.com/Krimson/ctg-stream/monitor/pkg/mathutil"
)

// STVStage вычисляет STV по посекундным значениям ЧСС за последние 10 минут
type STVStage struct {
	cfg STVConfig
}

func NewSTVStage(cfg STVConfig) *STVStage {
	return &STVStage{cfg: cfg}
}

func (s *STVStage) Name() string { return "stv" }

func (s *STVStage) Tick(st *State) error {
	if !due(st.Now, s.cfg.EvalEverySec) {
		return nil
	}

	vals := st.SecFHR.LastSeconds(st.Now, s.cfg.WindowSec)
	stv := CalculateSTV(vals, 60, s.cfg.ChunksPerMinute)
	if math.IsNaN(stv) {
		st.Snap.STV = nil
		return nil
	}
	st.Snap.STV = floatPtr(mathutil.Round(stv, 2))
	return nil
}
