package features

import "github.com/Krimson/ctg-stream/monitor/pkg/mathutil"

// UCFeatures признаки сократительной активности матки
type UCFeatures struct {
	Frequency  float64 // пиков на 300 отсчетов
	PeakMean   float64
	PeakMax    float64
	Regularity float64 // коэффициент вариации интервалов между пиками
}

// CalculateUCFeatures находит пики UC выше 70-го перцентиля не чаще чем через 20 отсчетов
func CalculateUCFeatures(uc []float64) UCFeatures {
	if len(uc) < 10 {
		return UCFeatures{}
	}

	peaks := mathutil.FindPeaks(uc, mathutil.Percentile(uc, 70), 20)
	if len(peaks) == 0 {
		return UCFeatures{}
	}

	heights := make([]float64, len(peaks))
	for i, p := range peaks {
		heights[i] = uc[p]
	}

	f := UCFeatures{
		Frequency: float64(len(peaks)) / (float64(len(uc)) / 300),
		PeakMean:  mathutil.Mean(heights),
		PeakMax:   mathutil.Max(heights),
	}

	if len(peaks) > 1 {
		intervals := make([]float64, len(peaks)-1)
		for i := 1; i < len(peaks); i++ {
			intervals[i-1] = float64(peaks[i] - peaks[i-1])
		}
		if mean := mathutil.Mean(intervals); mean > 0 {
			f.Regularity = mathutil.PopStd(intervals) / mean
		}
	}
	return f
}
