package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineTrace(n int, base, amp, period float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = base + amp*math.Sin(2*math.Pi*float64(i)/period)
	}
	return out
}

func TestCalculator_ContainsAllFeaturesAndIsFinite(t *testing.T) {
	fhr := sineTrace(3000, 140, 5, 100)
	uc := sineTrace(3000, 20, 15, 600)
	fhr[10] = math.NaN()

	f := NewCalculator(5).Calculate(fhr, uc, 600)

	for _, name := range []string{
		"median_fhr", "mean_fhr", "std_fhr", "min_fhr", "max_fhr", "range_fhr",
		"median_uc", "mean_uc", "std_uc", "min_uc", "max_uc",
		"sdnn", "rmssd", "pnn50", "baseline_fhr",
		"acceleration_count", "deceleration_count", "late_deceleration_count",
		"stv", "ltv", "cv", "skewness", "kurtosis",
		"fhr_trend", "uc_trend", "fhr_roc", "variability_trend",
		"uc_frequency", "uc_peak_mean", "uc_peak_max", "uc_regularity",
		"uc_corr", "xcorr_maxabs", "xcorr_lag", "window_time_max",
	} {
		v, ok := f[name]
		require.True(t, ok, "missing feature %s", name)
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "feature %s = %v", name, v)
	}

	assert.InDelta(t, 140, f["median_fhr"], 0.5)
	assert.InDelta(t, 10, f["range_fhr"], 0.1)
	assert.Equal(t, 600.0, f["window_time_max"])
}

func TestCalculator_EmptyWindow(t *testing.T) {
	f := NewCalculator(5).Calculate([]float64{math.NaN()}, []float64{math.NaN()}, 10)
	assert.Empty(t, f)
}

func TestCalculator_ConstantTraceHasNoEpisodes(t *testing.T) {
	fhr := sineTrace(600, 140, 0, 1)
	uc := sineTrace(600, 10, 0, 1)

	f := NewCalculator(5).Calculate(fhr, uc, 120)

	assert.Equal(t, 0.0, f["acceleration_count"])
	assert.Equal(t, 0.0, f["deceleration_count"])
	assert.Equal(t, 0.0, f["stv"])
	// нулевая дисперсия дает NaN, который заменяется нулем
	assert.Equal(t, 0.0, f["uc_corr"])
	assert.Equal(t, 0.0, f["xcorr_maxabs"])
}

func TestDetectEpisodes(t *testing.T) {
	fhr := make([]float64, 100)
	for i := range fhr {
		fhr[i] = 140
	}
	for i := 20; i < 30; i++ {
		fhr[i] = 160
	}
	for i := 60; i < 61; i++ {
		fhr[i] = 170
	}
	for i := 70; i < 80; i++ {
		fhr[i] = 115
	}

	acc := DetectAccelerations(fhr, 140, 15, 2)
	assert.Equal(t, 1, acc.Count)
	assert.Equal(t, 10, acc.Duration)
	assert.Equal(t, 20.0, acc.Max)

	dec := DetectDecelerations(fhr, nil, 140, 15, 2)
	assert.Equal(t, 1, dec.Count)
	assert.Equal(t, 25.0, dec.Max)
	assert.Equal(t, 1, dec.Variable)
}

func TestDetectDecelerations_LateAfterUCPeak(t *testing.T) {
	fhr := make([]float64, 200)
	uc := make([]float64, 200)
	for i := range fhr {
		fhr[i] = 140
		uc[i] = 10
	}
	uc[100] = 60
	for i := 105; i < 120; i++ {
		fhr[i] = 110
	}

	dec := DetectDecelerations(fhr, uc, 140, 15, 2)
	assert.Equal(t, 1, dec.Count)
	assert.Equal(t, 1, dec.Late)
}

func TestCalculateXCorrFeatures_FindsLag(t *testing.T) {
	fs := 5.0
	uc := sineTrace(3000, 20, 10, 2000)
	fhr := make([]float64, len(uc))
	// ЧСС отстает от UC на 10 секунд и инвертирована
	lag := int(10 * fs)
	for i := range fhr {
		j := i - lag
		if j < 0 {
			j = 0
		}
		fhr[i] = 140 - (uc[j] - 20)
	}

	x := CalculateXCorrFeatures(fhr, uc, fs, 60)
	assert.Greater(t, x.MaxAbs, 0.9)
	assert.InDelta(t, 10, x.Lag, 0.5)
}

func TestCalculateVariability(t *testing.T) {
	v := CalculateVariability([]float64{140, 142, 140, 142})
	assert.Equal(t, 2.0, v.STV)
	assert.Equal(t, 0.0, v.LTV)

	assert.Equal(t, Variability{}, CalculateVariability([]float64{140}))
}
