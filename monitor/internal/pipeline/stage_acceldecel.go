package pipeline

import (
	"math"

	"github.com/Krimson/ctg-stream/monitor/pkg/mathutil"
)

// AccelDecelStage адаптивная детекция акцелераций и децелераций ЧСС
// относительно локального базиса с допуском коротких разрывов и критерием площади.
type AccelDecelStage struct {
	cfg AccelDecelConfig
}

func NewAccelDecelStage(cfg AccelDecelConfig) *AccelDecelStage {
	return &AccelDecelStage{cfg: cfg}
}

func (s *AccelDecelStage) Name() string { return "accel_decel" }

func (s *AccelDecelStage) Tick(st *State) error {
	last, ok := st.SecFHR.Last()
	if !ok || last.Second != st.Now || math.IsNaN(last.Value) {
		return s.dropout(st)
	}
	now := st.Now
	curr := last.Value

	window := st.SecFHR.LastSeconds(now, s.cfg.BaselineWindowSec)
	base := mathutil.Median(window)
	iqr := mathutil.IQR(window)
	if math.IsNaN(base) || math.IsNaN(iqr) {
		return s.dropout(st)
	}
	delta := curr - base

	accelThr := math.Max(s.cfg.AccelThreshold, iqr*s.cfg.IQRK)
	decelThr := math.Min(-s.cfg.DecelThreshold, -iqr*s.cfg.IQRK)
	rising := delta >= accelThr
	falling := delta <= decelThr

	// Продление или закрытие текущих эпизодов. Начало противоположного
	// эпизода закрывает текущий сразу.
	if a := st.ActiveAcceleration; a != nil && !rising {
		a.Gap++
		if a.Gap > s.cfg.GapToleranceSec || falling {
			if err := s.closeAcceleration(st); err != nil {
				return err
			}
		}
	}
	if d := st.ActiveDeceleration; d != nil && !falling {
		d.Gap++
		if d.Gap > s.cfg.GapToleranceSec || rising {
			if err := s.closeDeceleration(st); err != nil {
				return err
			}
		}
	}

	switch {
	case rising:
		a := st.ActiveAcceleration
		if a == nil {
			a = &excursion{Start: now, Extreme: curr, ExtremeSec: now}
			st.ActiveAcceleration = a
			st.notify(KindAccelerationStart, ColorYellow, "Acceleration started (Δ ≥ %.1f bpm)", accelThr)
		} else if curr > a.Extreme {
			a.Extreme = curr
			a.ExtremeSec = now
		}
		a.Gap = 0
		a.Amplitude = math.Max(a.Amplitude, delta)
		a.Area += delta

	case falling:
		d := st.ActiveDeceleration
		if d == nil {
			d = &excursion{Start: now, Extreme: curr, ExtremeSec: now}
			st.ActiveDeceleration = d
			st.notify(KindDecelerationStart, ColorYellow, "Deceleration started (Δ ≤ %.1f bpm)", decelThr)
		} else if curr < d.Extreme {
			d.Extreme = curr
			d.ExtremeSec = now
		}
		d.Gap = 0
		d.Amplitude = math.Max(d.Amplitude, -delta)
		d.Area += -delta
	}

	return nil
}

// dropout учитывает секунду без сигнала как разрыв открытых эпизодов:
// длительность эпизода не растет, а долгая потеря сигнала его закрывает.
func (s *AccelDecelStage) dropout(st *State) error {
	if a := st.ActiveAcceleration; a != nil {
		a.Gap++
		if a.Gap > s.cfg.GapToleranceSec {
			if err := s.closeAcceleration(st); err != nil {
				return err
			}
		}
	}
	if d := st.ActiveDeceleration; d != nil {
		d.Gap++
		if d.Gap > s.cfg.GapToleranceSec {
			if err := s.closeDeceleration(st); err != nil {
				return err
			}
		}
	}
	return nil
}

// span возвращает конец и длительность эпизода по последней секунде над порогом
func (e *excursion) span(now int) (end, dur int) {
	end = now - e.Gap
	return end, end - e.Start + 1
}

func (s *AccelDecelStage) closeAcceleration(st *State) error {
	a := st.ActiveAcceleration
	st.ActiveAcceleration = nil

	end, dur := a.span(st.Now)
	if dur < s.cfg.MinLenSec && a.Area < s.cfg.AccelAreaThreshold {
		return nil
	}

	acc := Acceleration{
		Event: Event{
			Start:     a.Start,
			End:       end,
			Duration:  dur,
			Amplitude: mathutil.Round(a.Amplitude, 1),
			Area:      mathutil.Round(a.Area, 1),
		},
		PeakSec: a.ExtremeSec,
		PeakBPM: mathutil.Round(a.Extreme, 1),
	}
	if err := acc.validate(s.cfg.MinLenSec, s.cfg.AccelAreaThreshold); err != nil {
		return err
	}

	st.Events.Accelerations = append(st.Events.Accelerations, acc)
	st.notifyAt(end, KindAcceleration, ColorYellow, "Acceleration: +%.1f bpm, %ds", acc.Amplitude, dur)
	return nil
}

func (s *AccelDecelStage) closeDeceleration(st *State) error {
	d := st.ActiveDeceleration
	st.ActiveDeceleration = nil

	end, dur := d.span(st.Now)
	if dur < s.cfg.MinLenSec && d.Area < s.cfg.DecelAreaThreshold {
		return nil
	}

	amp := mathutil.Round(d.Amplitude, 1)
	typ, severity, ref := ClassifyDeceleration(st.Events.Contractions, d.Start, end, amp, s.cfg)

	dec := Deceleration{
		Event: Event{
			Start:     d.Start,
			End:       end,
			Duration:  dur,
			Amplitude: amp,
			Area:      mathutil.Round(d.Area, 1),
		},
		NadirSec:    d.ExtremeSec,
		NadirBPM:    mathutil.Round(d.Extreme, 1),
		Type:        typ,
		Severity:    severity,
		Contraction: ref,
	}
	if err := dec.validate(s.cfg.MinLenSec, s.cfg.DecelAreaThreshold); err != nil {
		return err
	}

	st.Events.Decelerations = append(st.Events.Decelerations, dec)

	color := ColorYellow
	if typ == DecelLate {
		color = ColorRed
	}
	if severity != "" {
		st.notifyAt(end, KindDeceleration, color, "Deceleration (%s, %s): -%.1f bpm, %ds", typ, severity, amp, dur)
	} else {
		st.notifyAt(end, KindDeceleration, color, "Deceleration (%s): -%.1f bpm, %ds", typ, amp, dur)
	}
	return nil
}

// nearestContraction возвращает закрытую схватку с наибольшим перекрытием интервала [t0, t1]
func nearestContraction(contractions []Contraction, t0, t1 int) *Contraction {
	var best *Contraction
	bestOverlap := math.MinInt32
	for i := range contractions {
		c := &contractions[i]
		if c.End < t0 || c.Start > t1 {
			continue
		}
		overlap := min(t1, c.End) - max(t0, c.Start)
		if overlap > bestOverlap {
			best = c
			bestOverlap = overlap
		}
	}
	return best
}

// ClassifyDeceleration определяет тип децелерации [start, end] по ближайшей перекрывающейся схватке.
// Поздняя: начало не раньше LateLagSec от начала схватки и окончание не раньше конца схватки.
// Ранняя: синхронна со схваткой и вложена в нее. Иначе вариабельная.
func ClassifyDeceleration(contractions []Contraction, start, end int, amp float64, cfg AccelDecelConfig) (DecelType, Severity, *ContractionRef) {
	c := nearestContraction(contractions, start, end)
	if c == nil {
		return DecelVariable, "", nil
	}
	ref := &ContractionRef{Start: c.Start, End: c.End, PeakSec: c.PeakSec}

	lag := start - c.Start
	if lag >= cfg.LateLagSec && end >= c.End {
		severity := SeveritySevere
		switch {
		case amp <= cfg.MildMaxBPM:
			severity = SeverityMild
		case amp <= cfg.ModerateMaxBPM:
			severity = SeverityModerate
		}
		return DecelLate, severity, ref
	}

	if absInt(lag) <= cfg.EarlyLagSec && c.Start <= start && start <= c.PeakSec && c.PeakSec <= end && end <= c.End {
		return DecelEarly, "", ref
	}
	return DecelVariable, "", ref
}

func absInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
