package features

import "github.com/Krimson/ctg-stream/monitor/pkg/mathutil"

// Baseline базальный ритм как медиана центрированной скользящей медианы
func Baseline(fhr []float64, window int) float64 {
	if len(fhr) < window {
		return mathutil.Median(fhr)
	}
	return mathutil.Median(mathutil.RollingMedian(fhr, window, true))
}

// EpisodeStats сводка эпизодов отклонения от базального ритма
type EpisodeStats struct {
	Count    int
	Max      float64
	Duration int // в отсчетах
	Late     int
	Variable int
}

// DetectAccelerations находит эпизоды fhr > baseline+threshold длиной не меньше minLen отсчетов
func DetectAccelerations(fhr []float64, baseline, threshold float64, minLen int) EpisodeStats {
	var st EpisodeStats
	forEachRun(fhr, func(v float64) bool { return v > baseline+threshold }, func(start, end int) {
		if end-start < minLen {
			return
		}
		st.Count++
		st.Duration += end - start
		if amp := mathutil.Max(fhr[start:end]) - baseline; amp > st.Max {
			st.Max = amp
		}
	})
	return st
}

// DetectDecelerations находит эпизоды fhr < baseline-threshold. Эпизод считается поздним,
// если его середина лежит в пределах 30 отсчетов после пика UC.
func DetectDecelerations(fhr, uc []float64, baseline, threshold float64, minLen int) EpisodeStats {
	var st EpisodeStats

	var peaks []int
	if len(uc) > 10 {
		peaks = mathutil.FindPeaks(uc, mathutil.Percentile(uc, 70), 1)
	}

	forEachRun(fhr, func(v float64) bool { return v < baseline-threshold }, func(start, end int) {
		if end-start < minLen {
			return
		}
		st.Count++
		st.Duration += end - start
		if depth := baseline - mathutil.Min(fhr[start:end]); depth > st.Max {
			st.Max = depth
		}

		center := (start + end) / 2
		for _, p := range peaks {
			if p < center && center < p+30 {
				st.Late++
				return
			}
		}
		st.Variable++
	})
	return st
}

// forEachRun вызывает fn для каждого максимального отрезка [start, end), где pred истинен
func forEachRun(data []float64, pred func(float64) bool, fn func(start, end int)) {
	i := 0
	for i < len(data) {
		if !pred(data[i]) {
			i++
			continue
		}
		start := i
		for i < len(data) && pred(data[i]) {
			i++
		}
		fn(start, i)
	}
}

// Variability показатели вариабельности ЧСС
type Variability struct {
	STV      float64
	LTV      float64
	CV       float64
	Skewness float64
	Kurtosis float64
}

// CalculateVariability вычисляет STV (средний модуль разности соседних отсчетов),
// LTV (разброс средних шести сегментов), коэффициент вариации и моменты распределения
func CalculateVariability(fhr []float64) Variability {
	if len(fhr) < 2 {
		return Variability{}
	}

	v := Variability{STV: mathutil.MeanAbsDiff(fhr)}

	if len(fhr) >= 60 {
		size := len(fhr) / 6
		means := make([]float64, 0, 6)
		for i := 0; i+size <= len(fhr); i += size {
			means = append(means, mathutil.Mean(fhr[i:i+size]))
		}
		if len(means) > 1 {
			v.LTV = mathutil.PopStd(means)
		}
	}

	if mean := mathutil.Mean(fhr); mean > 0 {
		v.CV = mathutil.PopStd(fhr) / mean
	}
	v.Skewness = mathutil.Skewness(fhr)
	v.Kurtosis = mathutil.Kurtosis(fhr)
	return v
}

// Trends признаки тренда
type Trends struct {
	FHRTrend         float64
	UCTrend          float64
	FHRROC           float64
	VariabilityTrend float64
}

// CalculateTrends вычисляет наклоны рядов, скорость изменения ЧСС и изменение разброса
// между первой и второй половиной окна
func CalculateTrends(fhr, uc []float64) Trends {
	if len(fhr) < 2 {
		return Trends{}
	}

	t := Trends{
		FHRTrend: mathutil.Slope(fhr),
		UCTrend:  mathutil.Slope(uc),
		FHRROC:   (fhr[len(fhr)-1] - fhr[0]) / float64(len(fhr)),
	}
	if len(fhr) >= 20 {
		half := len(fhr) / 2
		t.VariabilityTrend = mathutil.PopStd(fhr[half:]) - mathutil.PopStd(fhr[:half])
	}
	return t
}
