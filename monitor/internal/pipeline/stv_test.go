package pipeline

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateSTV_ConstantIsZero(t *testing.T) {
	vals := make([]float64, 600)
	for i := range vals {
		vals[i] = 140
	}
	assert.Equal(t, 0.0, CalculateSTV(vals, 60, 16))
}

func TestCalculateSTV_UnderOneMinute(t *testing.T) {
	assert.True(t, math.IsNaN(CalculateSTV(make([]float64, 59), 60, 16)))
	assert.True(t, math.IsNaN(CalculateSTV(nil, 60, 16)))
}

func TestCalculateSTV_NonNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		n := 60 + rng.Intn(600)
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = 110 + rng.Float64()*50
			if rng.Intn(20) == 0 {
				vals[i] = math.NaN()
			}
		}
		stv := CalculateSTV(vals, 60, 16)
		if math.IsNaN(stv) {
			continue
		}
		assert.GreaterOrEqual(t, stv, 0.0)
	}
}

func TestCalculateSTV_KnownValue(t *testing.T) {
	// Ступенчатый ряд: 4 интервала по 15 значений, соседние средние отличаются на 2
	vals := make([]float64, 0, 60)
	for chunk := 0; chunk < 4; chunk++ {
		for i := 0; i < 15; i++ {
			vals = append(vals, 140+2*float64(chunk%2))
		}
	}
	assert.InDelta(t, 2.0, CalculateSTV(vals, 60, 4), 1e-9)
}

func TestRollingSTVMean(t *testing.T) {
	vals := make([]float64, 700)
	for i := range vals {
		vals[i] = 140
	}
	assert.Equal(t, 0.0, RollingSTVMean(vals, 60, 16, 10))
	assert.True(t, math.IsNaN(RollingSTVMean(vals[:500], 60, 16, 10)))
}
