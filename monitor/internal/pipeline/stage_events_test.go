package pipeline

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContraction(start, end, peak int) Contraction {
	return Contraction{
		Event:   Event{Start: start, End: end, Duration: end - start, Amplitude: 40},
		PeakSec: peak,
	}
}

func TestClassifyDeceleration(t *testing.T) {
	cfg := DefaultConfig().AccelDecel
	contractions := []Contraction{testContraction(100, 160, 130)}

	tests := []struct {
		name       string
		start, end int
		amp        float64
		wantType   DecelType
		wantSev    Severity
		wantRef    bool
	}{
		{"late moderate", 135, 165, 30, DecelLate, SeverityModerate, true},
		{"late mild", 140, 170, 12, DecelLate, SeverityMild, true},
		{"late severe", 131, 175, 50, DecelLate, SeveritySevere, true},
		{"early mirrors contraction", 105, 150, 20, DecelEarly, "", true},
		{"late lag but ends inside", 140, 155, 20, DecelVariable, "", true},
		{"no contraction", 300, 330, 25, DecelVariable, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, sev, ref := ClassifyDeceleration(contractions, tt.start, tt.end, tt.amp, cfg)
			assert.Equal(t, tt.wantType, typ)
			assert.Equal(t, tt.wantSev, sev)
			if tt.wantRef {
				require.NotNil(t, ref)
				assert.Equal(t, 100, ref.Start)
			} else {
				assert.Nil(t, ref)
			}
		})
	}
}

func TestNearestContraction_LargestOverlap(t *testing.T) {
	contractions := []Contraction{
		testContraction(100, 140, 120),
		testContraction(150, 210, 180),
	}

	c := nearestContraction(contractions, 135, 200)
	require.NotNil(t, c)
	assert.Equal(t, 150, c.Start)

	assert.Nil(t, nearestContraction(contractions, 220, 260))
}

func TestEventValidate(t *testing.T) {
	ok := Event{Start: 10, End: 30, Duration: 21, Area: 50}
	assert.NoError(t, ok.validate(10, 120))

	byArea := Event{Start: 10, End: 14, Duration: 5, Area: 150}
	assert.NoError(t, byArea.validate(10, 120))

	reversed := Event{Start: 30, End: 10}
	assert.True(t, errors.Is(reversed.validate(10, 120), ErrInvariant))

	tooShort := Event{Start: 10, End: 12, Duration: 3, Area: 20}
	assert.True(t, errors.Is(tooShort.validate(10, 120), ErrInvariant))
}

func TestPipeline_EventInvariantsOnNoisyTrace(t *testing.T) {
	p := New("s1", DefaultConfig(), nil, nil)
	fhr := func(sec int) float64 {
		switch {
		case sec%300 > 100 && sec%300 <= 125:
			return 165
		case sec%400 > 200 && sec%400 <= 240:
			return 105
		}
		return 140
	}
	uc := func(sec int) float64 {
		if sec%400 > 180 && sec%400 <= 240 {
			return 70
		}
		return 15
	}

	snap := runTrace(t, p, 1500, fhr, uc)

	require.NotEmpty(t, snap.Events.Accelerations)
	require.NotEmpty(t, snap.Events.Decelerations)
	require.NotEmpty(t, snap.Events.Contractions)

	cfg := DefaultConfig()
	for _, a := range snap.Events.Accelerations {
		assert.GreaterOrEqual(t, a.End, a.Start)
		assert.True(t, a.Duration >= cfg.AccelDecel.MinLenSec || a.Area >= cfg.AccelDecel.AccelAreaThreshold)
	}
	for _, d := range snap.Events.Decelerations {
		assert.GreaterOrEqual(t, d.End, d.Start)
		assert.True(t, d.Duration >= cfg.AccelDecel.MinLenSec || d.Area >= cfg.AccelDecel.DecelAreaThreshold)
		assert.Contains(t, []DecelType{DecelEarly, DecelLate, DecelVariable}, d.Type)
		if d.Type == DecelLate {
			assert.NotEmpty(t, d.Severity)
		}
	}
	for _, c := range snap.Events.Contractions {
		assert.GreaterOrEqual(t, c.Duration, cfg.Contraction.MinLenSec)
	}
	for i := 1; i < len(snap.Events.Contractions); i++ {
		gap := snap.Events.Contractions[i].Start - snap.Events.Contractions[i-1].End
		assert.GreaterOrEqual(t, gap, cfg.Contraction.CooldownSec)
	}
}

func TestAccelDecel_SignalLossClosesExcursion(t *testing.T) {
	tests := []struct {
		name       string
		riseEnd    int
		wantAccels int
	}{
		{name: "short rise discarded", riseEnd: 203, wantAccels: 0},
		{name: "long rise keeps its own span", riseEnd: 220, wantAccels: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New("s1", DefaultConfig(), nil, nil)
			fhr := func(sec int) float64 {
				switch {
				case sec > 200 && sec <= tt.riseEnd:
					return 170
				case sec > tt.riseEnd && sec <= 503:
					return math.NaN()
				}
				return 140
			}

			snap := runTrace(t, p, 300, fhr, constant(15))
			assert.False(t, snap.AccelerationActive)
			assert.NotContains(t, snap.CurrentStatus, "Acceleration in progress")

			for sec := 301; sec <= 600; sec++ {
				var err error
				snap, err = p.Tick(secondSamples(sec, p.cfg.FS, fhr(sec), 15))
				require.NoError(t, err)
			}

			require.Len(t, snap.Events.Accelerations, tt.wantAccels)
			if tt.wantAccels == 1 {
				a := snap.Events.Accelerations[0]
				assert.Equal(t, 201, a.Start)
				assert.Equal(t, tt.riseEnd, a.End)
				assert.Equal(t, tt.riseEnd-200, a.Duration)
			}
		})
	}
}
