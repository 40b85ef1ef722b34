package pipeline

import (
	"math"

	"github.com/Krimson/ctg-stream/monitor/pkg/mathutil"
)

// ContractionStage онлайн-сегментация схваток по UC: робастный базис (медиана),
// динамический порог max(floor, IQR*k), медианное сглаживание и период охлаждения.
type ContractionStage struct {
	cfg ContractionConfig
}

func NewContractionStage(cfg ContractionConfig) *ContractionStage {
	return &ContractionStage{cfg: cfg}
}

func (s *ContractionStage) Name() string { return "contraction" }

func (s *ContractionStage) Tick(st *State) error {
	last, ok := st.SecUC.Last()
	if !ok || last.Second != st.Now || math.IsNaN(last.Value) {
		return nil
	}
	now := st.Now

	recent := st.SecUC.LastSeconds(now, s.cfg.SmoothWindowSec)
	if len(recent) == 0 {
		return nil
	}
	smooth := mathutil.Median(recent)

	window := st.SecUC.LastSeconds(now, s.cfg.BaselineWindowSec)
	base := mathutil.Median(window)
	iqr := mathutil.IQR(window)
	if math.IsNaN(base) || math.IsNaN(iqr) {
		return nil
	}

	thr := math.Max(s.cfg.AmpThreshold, iqr*s.cfg.IQRK)
	above := smooth-base >= thr

	active := st.ActiveContraction
	if active == nil {
		if above && now-st.lastContractionEnd >= s.cfg.CooldownSec {
			st.ActiveContraction = &contractionTracker{
				Start:     now,
				PeakValue: smooth,
				PeakSec:   now,
				Baseline:  base,
			}
			st.notify(KindContractionStart, ColorYellow, "Contraction started (UC rise ≥ %.1f)", thr)
		}
		return nil
	}

	if smooth > active.PeakValue {
		active.PeakValue = smooth
		active.PeakSec = now
	}
	if above {
		return nil
	}

	st.ActiveContraction = nil
	dur := now - active.Start
	if dur < s.cfg.MinLenSec {
		return nil
	}

	c := Contraction{
		Event: Event{
			Start:     active.Start,
			End:       now,
			Duration:  dur,
			Amplitude: mathutil.Round(active.PeakValue-active.Baseline, 1),
		},
		PeakSec:   active.PeakSec,
		PeakValue: mathutil.Round(active.PeakValue, 1),
		Baseline:  mathutil.Round(active.Baseline, 1),
	}
	if err := c.validate(s.cfg.MinLenSec, 0); err != nil {
		return err
	}

	st.Events.Contractions = append(st.Events.Contractions, c)
	st.lastContractionEnd = now
	st.notify(KindContraction, ColorYellow, "Contraction: amplitude ≈ %.1f UC, %ds", c.Amplitude, dur)
	return nil
}
