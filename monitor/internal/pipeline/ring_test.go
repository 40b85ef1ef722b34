package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_EvictsOldest(t *testing.T) {
	r := NewRing(3)
	for sec := 1; sec <= 5; sec++ {
		r.Push(SecondValue{Second: sec, Value: float64(sec * 10)})
	}

	require.Equal(t, 3, r.Len())
	assert.Equal(t, 3, r.Cap())
	assert.Equal(t, 3, r.At(0).Second)

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, 5, last.Second)
	assert.Equal(t, []float64{30, 40, 50}, r.Values())
}

func TestRing_LastSecondsSkipsNaN(t *testing.T) {
	r := NewRing(10)
	r.Push(SecondValue{Second: 1, Value: 100})
	r.Push(SecondValue{Second: 2, Value: math.NaN()})
	r.Push(SecondValue{Second: 3, Value: 120})
	r.Push(SecondValue{Second: 4, Value: 130})

	assert.Equal(t, []float64{120, 130}, r.LastSeconds(4, 3))
	assert.Equal(t, []float64{100, 120, 130}, r.LastSeconds(4, 600))
	assert.Empty(t, r.LastSeconds(0, 10))
}

func TestRing_Empty(t *testing.T) {
	r := NewRing(5)
	_, ok := r.Last()
	assert.False(t, ok)
	assert.Empty(t, r.Values())
}
