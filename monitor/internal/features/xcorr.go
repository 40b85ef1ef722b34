package features

import (
	"math"

	"github.com/Krimson/ctg-stream/monitor/pkg/mathutil"
)

// XCorrFeatures признаки кросс-корреляции FHR и UC
type XCorrFeatures struct {
	MaxAbs float64 `json:"maxabs"`
	Lag    float64 `json:"lag"`
}

// CalculateXCorrFeatures ищет лаг с максимальной по модулю корреляцией z-нормированных рядов
func CalculateXCorrFeatures(fhr, uc []float64, fs float64, maxLagS float64) XCorrFeatures {
	nan := XCorrFeatures{MaxAbs: math.NaN(), Lag: math.NaN()}
	if len(fhr) == 0 || len(uc) == 0 {
		return nan
	}

	fhrMean, fhrStd := mathutil.Mean(fhr), mathutil.Std(fhr)
	ucMean, ucStd := mathutil.Mean(uc), mathutil.Std(uc)
	if math.IsNaN(fhrStd) || math.IsNaN(ucStd) || fhrStd < 1e-6 || ucStd < 1e-6 {
		return nan
	}

	fhrNorm := make([]float64, len(fhr))
	for i, v := range fhr {
		fhrNorm[i] = (v - fhrMean) / fhrStd
	}
	ucNorm := make([]float64, len(uc))
	for i, v := range uc {
		ucNorm[i] = (v - ucMean) / ucStd
	}

	maxLag := int(maxLagS * fs)
	minOverlap := int(5 * fs)
	bestVal := 0.0
	bestLag := 0
	found := false

	for lag := -maxLag; lag <= maxLag; lag++ {
		a, b := fhrNorm, ucNorm
		if lag >= 0 {
			if lag >= len(a) {
				continue
			}
			a = a[lag:]
		} else {
			if -lag >= len(b) {
				continue
			}
			b = b[-lag:]
		}
		n := min(len(a), len(b))
		if n < minOverlap || n == 0 {
			continue
		}

		corr := 0.0
		for i := 0; i < n; i++ {
			corr += a[i] * b[i]
		}
		corr /= float64(n)

		if !found || mathutil.Abs(corr) > mathutil.Abs(bestVal) {
			bestVal = corr
			bestLag = lag
			found = true
		}
	}

	if !found {
		return nan
	}
	return XCorrFeatures{
		MaxAbs: mathutil.Abs(bestVal),
		Lag:    float64(bestLag) / fs,
	}
}
