package pipeline

import "github.com/Krimson/ctg-stream/monitor/pkg/mathutil"

// SavelyevaScorer шкала Фишера в модификации Савельевой (окно 10 минут)
type SavelyevaScorer struct{}

func (SavelyevaScorer) Name() string           { return "savelyeva" }
func (SavelyevaScorer) Title() string          { return "Savelyeva" }
func (SavelyevaScorer) Kind() NotificationKind { return KindSavelyeva }

func (sc SavelyevaScorer) Score(in RubricInput) map[string]int {
	amp := sc.Amplitude(in.FHR)
	return map[string]int{
		"baseline":      sc.ScoreBaseline(in.Baseline),
		"oscillations":  sc.ScoreFrequency(sc.Frequency(in.FHR, in.FS)),
		"amplitude":     sc.ScoreAmplitude(amp, sc.Sinusoidal(in.FHR)),
		"accelerations": sc.ScoreAccelerations(len(in.Accelerations)),
		"decelerations": sc.ScoreDecelerations(in.Decelerations),
	}
}

// Frequency частота осцилляций: пересечения скользящей медианы в минуту
func (SavelyevaScorer) Frequency(fhr []float64, fs int) float64 {
	if len(fhr) < 60 || fs <= 0 {
		return 0
	}
	trend := mathutil.RollingMedian(fhr, 15, true)
	minutes := max(1.0, float64(len(fhr))/float64(fs)/60.0)
	return float64(mathutil.ZeroCrossings(fhr, trend)) / minutes
}

// Amplitude амплитуда осцилляций как половина междецильного размаха
func (SavelyevaScorer) Amplitude(fhr []float64) float64 {
	if len(fhr) < 60 {
		return 0
	}
	return (mathutil.Percentile(fhr, 90) - mathutil.Percentile(fhr, 10)) / 2
}

// Sinusoidal узкий размах p95-p5 < 10 уд/мин
func (SavelyevaScorer) Sinusoidal(fhr []float64) bool {
	if len(fhr) < 60 {
		return false
	}
	return mathutil.Percentile(fhr, 95)-mathutil.Percentile(fhr, 5) < 10
}

func (SavelyevaScorer) ScoreBaseline(baseline *float64) int {
	if baseline == nil {
		return 0
	}
	b := *baseline
	switch {
	case b >= 120 && b <= 160:
		return 2
	case (b >= 100 && b < 120) || (b > 160 && b <= 180):
		return 1
	default:
		return 0
	}
}

func (SavelyevaScorer) ScoreFrequency(perMin float64) int {
	switch {
	case perMin >= 6:
		return 2
	case perMin >= 3:
		return 1
	default:
		return 0
	}
}

func (SavelyevaScorer) ScoreAmplitude(amp float64, sinusoidal bool) int {
	switch {
	case sinusoidal || amp <= 5:
		return 0
	case amp < 10 || amp >= 25:
		return 1
	default:
		return 2
	}
}

func (SavelyevaScorer) ScoreAccelerations(n int) int {
	switch {
	case n >= 2:
		return 2
	case n == 1:
		return 1
	default:
		return 0
	}
}

// ScoreDecelerations: нет или только ранние - 2, есть короткие (<60 с) поздние
// или вариабельные - 1, иначе 0
func (SavelyevaScorer) ScoreDecelerations(decels []Deceleration) int {
	if len(decels) == 0 {
		return 2
	}
	allEarly := true
	for _, d := range decels {
		if d.Type != DecelEarly {
			allEarly = false
			break
		}
	}
	if allEarly {
		return 2
	}
	for _, d := range decels {
		if (d.Type == DecelLate || d.Type == DecelVariable) && d.Duration < 60 {
			return 1
		}
	}
	return 0
}
