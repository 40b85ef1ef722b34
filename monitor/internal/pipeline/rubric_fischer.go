package pipeline

import "github.com/Krimson/ctg-stream/monitor/pkg/mathutil"

// FischerScorer классическая 10-балльная шкала Фишера (окно 20 минут)
type FischerScorer struct{}

func (FischerScorer) Name() string           { return "fischer" }
func (FischerScorer) Title() string          { return "Fischer" }
func (FischerScorer) Kind() NotificationKind { return KindFischer }

func (sc FischerScorer) Score(in RubricInput) map[string]int {
	return map[string]int{
		"baseline":       sc.ScoreBaseline(in.Baseline),
		"bandwidth":      sc.ScoreBandwidth(sc.Bandwidth(in.FHR)),
		"zero_crossings": sc.ScoreZeroCrossings(sc.ZeroCrossingsPerMin(in.FHR, in.FS)),
		"accelerations":  sc.ScoreAccelerations(len(in.Accelerations), in.WindowSec),
		"decelerations":  sc.ScoreDecelerations(in.Decelerations),
	}
}

// Bandwidth междецильный размах p90-p10
func (FischerScorer) Bandwidth(fhr []float64) float64 {
	if len(fhr) < 60 {
		return 0
	}
	return max(0, mathutil.Percentile(fhr, 90)-mathutil.Percentile(fhr, 10))
}

// ZeroCrossingsPerMin пересечения 15-секундной скользящей медианы в минуту; нужна минута данных
func (FischerScorer) ZeroCrossingsPerMin(fhr []float64, fs int) float64 {
	if fs <= 0 || len(fhr) < fs*60 {
		return 0
	}
	trend := mathutil.RollingMedian(fhr, fs*15, true)
	minutes := float64(len(fhr)) / float64(fs) / 60.0
	return float64(mathutil.ZeroCrossings(fhr, trend)) / minutes
}

func (FischerScorer) ScoreBaseline(baseline *float64) int {
	if baseline == nil {
		return 0
	}
	b := *baseline
	switch {
	case b < 100 || b > 180:
		return 0
	case b <= 110 || b >= 160:
		return 1
	default:
		return 2
	}
}

func (FischerScorer) ScoreBandwidth(bw float64) int {
	switch {
	case bw < 5:
		return 0
	case bw <= 10 || bw > 30:
		return 1
	default:
		return 2
	}
}

func (FischerScorer) ScoreZeroCrossings(perMin float64) int {
	switch {
	case perMin < 2:
		return 0
	case perMin <= 6:
		return 1
	default:
		return 2
	}
}

// ScoreAccelerations: нет - 0, периодические (от одной за 3 минуты) - 1, спорадические - 2
func (FischerScorer) ScoreAccelerations(n, windowSec int) int {
	if n == 0 {
		return 0
	}
	perMin := float64(n) / max(1.0, float64(windowSec)/60.0)
	if perMin >= 1.0/3.0 {
		return 1
	}
	return 2
}

// ScoreDecelerations: поздние - 0, ранние - 1, нет или только вариабельные - 2
func (FischerScorer) ScoreDecelerations(decels []Deceleration) int {
	early := false
	for _, d := range decels {
		switch d.Type {
		case DecelLate:
			return 0
		case DecelEarly:
			early = true
		}
	}
	if early {
		return 1
	}
	return 2
}
