package features

import (
	"math"

	"github.com/Krimson/ctg-stream/monitor/pkg/mathutil"
)

// Calculator вычисляет вектор признаков окна КТГ для моделей
type Calculator struct {
	fs float64 // частота дискретизации
}

// NewCalculator создает калькулятор признаков
func NewCalculator(fs float64) *Calculator {
	if fs <= 0 {
		fs = 1
	}
	return &Calculator{fs: fs}
}

// Calculate вычисляет признаки по сырым рядам окна. NaN в рядах пропускаются,
// итоговые NaN и Inf заменяются нулем.
func (c *Calculator) Calculate(fhr, uc []float64, windowTimeMax float64) map[string]float64 {
	fhrValid := mathutil.DropNaN(fhr)
	ucValid := mathutil.DropNaN(uc)
	if len(fhrValid) == 0 && len(ucValid) == 0 {
		return map[string]float64{}
	}

	f := make(map[string]float64, 48)

	// Базовая статистика ЧСС
	f["median_fhr"] = mathutil.Median(fhrValid)
	f["mean_fhr"] = mathutil.Mean(fhrValid)
	f["std_fhr"] = mathutil.PopStd(fhrValid)
	f["min_fhr"] = mathutil.Min(fhrValid)
	f["max_fhr"] = mathutil.Max(fhrValid)
	f["range_fhr"] = f["max_fhr"] - f["min_fhr"]

	// Базовая статистика UC
	f["median_uc"] = mathutil.Median(ucValid)
	f["mean_uc"] = mathutil.Mean(ucValid)
	f["std_uc"] = mathutil.PopStd(ucValid)
	f["min_uc"] = mathutil.Min(ucValid)
	f["max_uc"] = mathutil.Max(ucValid)

	// HRV
	diff := mathutil.Diff(fhrValid)
	f["sdnn"] = mathutil.PopStd(fhrValid)
	f["rmssd"] = rmssd(diff)
	f["pnn50"] = pnn50(diff)

	baseline := Baseline(fhrValid, 50)
	f["baseline_fhr"] = baseline

	acc := DetectAccelerations(fhrValid, baseline, 15, 2)
	f["acceleration_count"] = float64(acc.Count)
	f["acceleration_max"] = acc.Max
	f["acceleration_duration"] = float64(acc.Duration)

	dec := DetectDecelerations(fhrValid, ucValid, baseline, 15, 2)
	f["deceleration_count"] = float64(dec.Count)
	f["deceleration_max"] = dec.Max
	f["deceleration_duration"] = float64(dec.Duration)
	f["late_deceleration_count"] = float64(dec.Late)
	f["variable_deceleration_count"] = float64(dec.Variable)

	v := CalculateVariability(fhrValid)
	f["stv"] = v.STV
	f["ltv"] = v.LTV
	f["cv"] = v.CV
	f["skewness"] = v.Skewness
	f["kurtosis"] = v.Kurtosis

	t := CalculateTrends(fhrValid, ucValid)
	f["fhr_trend"] = t.FHRTrend
	f["uc_trend"] = t.UCTrend
	f["fhr_roc"] = t.FHRROC
	f["variability_trend"] = t.VariabilityTrend

	u := CalculateUCFeatures(ucValid)
	f["uc_frequency"] = u.Frequency
	f["uc_peak_mean"] = u.PeakMean
	f["uc_peak_max"] = u.PeakMax
	f["uc_regularity"] = u.Regularity

	pf, pu := paired(fhr, uc)
	f["uc_corr"] = mathutil.Correlation(pf, pu)

	x := CalculateXCorrFeatures(pf, pu, c.fs, 60.0)
	f["xcorr_maxabs"] = x.MaxAbs
	f["xcorr_lag"] = x.Lag

	f["window_time_max"] = windowTimeMax

	for k, val := range f {
		f[k] = mathutil.SafeFloat(val)
	}
	return f
}

// paired возвращает отсчеты, где определены оба канала
func paired(fhr, uc []float64) ([]float64, []float64) {
	n := len(fhr)
	if len(uc) < n {
		n = len(uc)
	}
	pf := make([]float64, 0, n)
	pu := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(fhr[i]) || math.IsNaN(uc[i]) {
			continue
		}
		pf = append(pf, fhr[i])
		pu = append(pu, uc[i])
	}
	return pf, pu
}

func rmssd(diff []float64) float64 {
	if len(diff) == 0 {
		return 0
	}
	sum := 0.0
	for _, d := range diff {
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(diff)))
}

func pnn50(diff []float64) float64 {
	if len(diff) == 0 {
		return 0
	}
	cnt := 0
	for _, d := range diff {
		if mathutil.Abs(d) > 50 {
			cnt++
		}
	}
	return float64(cnt) / float64(len(diff))
}
