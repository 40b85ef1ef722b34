package pipeline

import (
	"fmt"
	"strings"

	"github.com/Krimson/ctg-stream/monitor/pkg/mathutil"
)

// Итоговые категории FIGO и балльных шкал
const (
	LabelNormal       = "Normal"
	LabelSuspicious   = "Suspicious"
	LabelPathological = "Pathological"
)

// AxisCategory оценка одного параметра FIGO
type AxisCategory int

const (
	AxisUnknown AxisCategory = iota
	AxisNormal
	AxisBorderline
	AxisPathological
)

func (c AxisCategory) String() string {
	switch c {
	case AxisNormal:
		return "normal"
	case AxisBorderline:
		return "borderline"
	case AxisPathological:
		return "pathological"
	default:
		return "unknown"
	}
}

// AxisResult категория параметра и причина отклонения от нормы
type AxisResult struct {
	Category AxisCategory
	Reason   string
}

// FIGOStage классификация КТГ по FIGO: базальный ритм, вариабельность,
// акцелерации и децелерации за последние 10 минут
type FIGOStage struct {
	cfg FIGOConfig
}

func NewFIGOStage(cfg FIGOConfig) *FIGOStage {
	return &FIGOStage{cfg: cfg}
}

func (s *FIGOStage) Name() string { return "figo" }

func (s *FIGOStage) Tick(st *State) error {
	if !due(st.Now, s.cfg.EvalEverySec) {
		return nil
	}

	axes := []AxisResult{
		FIGOBaseline(st.Snap.MedianFHR10Min),
		s.variability(st),
		s.accelerations(st),
		FIGODecelerations(st.Events.Decelerations, st.Now-600),
	}

	label, color := aggregateFIGO(axes)

	reasons := make([]string, 0, len(axes))
	for _, a := range axes {
		if (a.Category == AxisBorderline || a.Category == AxisPathological) && a.Reason != "" {
			reasons = append(reasons, a.Reason)
		}
	}
	if len(reasons) > 3 {
		reasons = reasons[:3]
	}

	st.Snap.FIGO = label
	st.Snap.FIGOReasons = reasons

	if label != st.Flags.LastFIGO {
		note := "FIGO: " + label
		if len(reasons) > 0 {
			note += " (" + strings.Join(reasons, "; ") + ")"
		}
		st.notify(KindFIGO, color, "%s", note)
		st.Flags.LastFIGO = label
	}
	return nil
}

func aggregateFIGO(axes []AxisResult) (string, Color) {
	worst := AxisNormal
	for _, a := range axes {
		switch a.Category {
		case AxisPathological:
			return LabelPathological, ColorRed
		case AxisBorderline, AxisUnknown:
			worst = AxisBorderline
		}
	}
	if worst == AxisBorderline {
		return LabelSuspicious, ColorYellow
	}
	return LabelNormal, ColorGreen
}

// FIGOBaseline: норма 110–150, пограничный 100–110 или 150–170, иначе патология
func FIGOBaseline(baseline *float64) AxisResult {
	if baseline == nil {
		return AxisResult{AxisUnknown, "No 10-minute baseline"}
	}
	b := *baseline
	switch {
	case b < 100 || b > 170:
		return AxisResult{AxisPathological, fmt.Sprintf("Baseline %.0f bpm (<100 or >170)", b)}
	case b < 110 || b >= 150:
		return AxisResult{AxisBorderline, fmt.Sprintf("Baseline %.0f bpm (100–110 or 150–170)", b)}
	default:
		return AxisResult{AxisNormal, ""}
	}
}

// AmplitudeBand амплитуда вариабельности как половина междецильного размаха
func AmplitudeBand(fhr []float64) float64 {
	if len(fhr) == 0 {
		return 0
	}
	return max(0, (mathutil.Percentile(fhr, 90)-mathutil.Percentile(fhr, 10))/2)
}

// sinusoidalLike грубый признак синусоидального ритма по посекундному ряду:
// амплитуда 5–10 уд/мин и не более двух пересечений сглаженной линии в минуту
func sinusoidalLike(fhr []float64, amp float64) bool {
	if len(fhr) < 60 || amp < 5 || amp >= 10 {
		return false
	}
	trend := mathutil.RollingMedian(fhr, 15, true)
	minutes := max(1.0, float64(len(fhr))/60.0)
	return float64(mathutil.ZeroCrossings(fhr, trend))/minutes <= 2.0
}

func (s *FIGOStage) variability(st *State) AxisResult {
	fhr := st.SecFHR.LastSeconds(st.Now, s.cfg.VariabilityWindowSec)
	if len(fhr) < 60 {
		return AxisResult{AxisUnknown, "Insufficient data for variability"}
	}

	amp := AmplitudeBand(fhr)
	now := st.Now
	long := s.cfg.LongDurationSec
	t := &st.figo

	switch {
	case amp < 5:
		if t.lowVarSince == nil {
			t.lowVarSince = intPtr(now)
		}
		t.midLowVarSince = nil
	case amp <= 10:
		if t.midLowVarSince == nil {
			t.midLowVarSince = intPtr(now)
		}
		t.lowVarSince = nil
	default:
		t.lowVarSince = nil
		t.midLowVarSince = nil
	}

	if sinusoidalLike(fhr, amp) {
		return AxisResult{AxisPathological, "Sinusoidal pattern"}
	}
	if t.lowVarSince != nil && now-*t.lowVarSince >= long {
		return AxisResult{AxisPathological, fmt.Sprintf("Variability <5 bpm for >%d min (≈%.1f)", long/60, amp)}
	}
	if amp > 25 {
		return AxisResult{AxisBorderline, fmt.Sprintf("Variability >25 bpm (≈%.1f)", amp)}
	}
	if t.midLowVarSince != nil && now-*t.midLowVarSince >= long {
		return AxisResult{AxisBorderline, fmt.Sprintf("Variability 5–10 bpm for >%d min (≈%.1f)", long/60, amp)}
	}
	return AxisResult{AxisNormal, ""}
}

func (s *FIGOStage) accelerations(st *State) AxisResult {
	lo := st.Now - 600
	recent := 0
	lastEnd := 0
	for _, a := range st.Events.Accelerations {
		if a.Start >= lo {
			recent++
		}
		lastEnd = max(lastEnd, a.End)
	}
	if recent > 0 {
		return AxisResult{AxisNormal, ""}
	}
	if st.Now-lastEnd >= s.cfg.LongDurationSec {
		return AxisResult{AxisBorderline, fmt.Sprintf("No accelerations for >%d min", s.cfg.LongDurationSec/60)}
	}
	return AxisResult{AxisNormal, ""}
}

// FIGODecelerations оценивает децелерации, начавшиеся не раньше since:
// две и более поздних глубиной от 15 уд/мин - патология, одиночная неглубокая
// не поздняя - норма, прочие - пограничный
func FIGODecelerations(decels []Deceleration, since int) AxisResult {
	recent := make([]Deceleration, 0)
	for _, d := range decels {
		if d.Start >= since {
			recent = append(recent, d)
		}
	}
	if len(recent) == 0 {
		return AxisResult{AxisNormal, ""}
	}

	late := 0
	for _, d := range recent {
		if d.Type == DecelLate && d.Amplitude >= 15 {
			late++
		}
	}
	if late >= 2 {
		return AxisResult{AxisPathological, "Recurrent pronounced late decelerations"}
	}
	if len(recent) == 1 && recent[0].Amplitude < 15 && recent[0].Type != DecelLate {
		return AxisResult{AxisNormal, ""}
	}
	return AxisResult{AxisBorderline, "Sporadic decelerations"}
}
