package pipeline

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeline_StageOrder(t *testing.T) {
	p := New("s1", DefaultConfig(), nil, nil)
	assert.Equal(t, []string{
		"ingestion", "tachy_brady", "stv", "contraction", "accel_decel",
		"models", "figo", "savelyeva", "fischer", "status",
	}, p.Stages())
}

func TestPipeline_NowAdvancesByExactlyOne(t *testing.T) {
	p := New("s1", DefaultConfig(), nil, nil)
	for i := 1; i <= 250; i++ {
		var samples []Sample
		if i%3 == 0 {
			samples = secondSamples(i, 5, 140, 20)
		}
		snap, err := p.Tick(samples)
		require.NoError(t, err)
		require.Equal(t, i, snap.TimeSec)
	}
	assert.Equal(t, 250, p.Now())
}

func TestPipeline_FutureSamplesWaitForTheirTick(t *testing.T) {
	p := New("s1", DefaultConfig(), nil, nil)

	early := []Sample{{TimeSec: 2.5, FHR: 150, UC: 10}}
	snap, err := p.Tick(early)
	require.NoError(t, err)
	assert.Nil(t, snap.CurrentFHR)
	assert.Empty(t, p.State().Window)

	snap, err = p.Tick(nil)
	require.NoError(t, err)
	assert.Nil(t, snap.CurrentFHR)

	snap, err = p.Tick(nil)
	require.NoError(t, err)
	require.NotNil(t, snap.CurrentFHR)
	assert.Equal(t, 150.0, *snap.CurrentFHR)
	assert.Len(t, p.State().Window, 1)
}

func TestPipeline_InvalidSamplesDropped(t *testing.T) {
	p := New("s1", DefaultConfig(), nil, nil)

	snap, err := p.Tick([]Sample{
		{TimeSec: 0.2, FHR: 300, UC: 10},
		{TimeSec: 0.4, FHR: 140, UC: 400},
		{TimeSec: 0.6, FHR: math.NaN(), UC: math.NaN()},
		{TimeSec: 0.8, FHR: 130, UC: 15},
	})
	require.NoError(t, err)
	require.Len(t, p.State().Window, 1)
	assert.Equal(t, 130.0, *snap.CurrentFHR)
	assert.Equal(t, 15.0, *snap.CurrentUterus)
}

func TestPipeline_MissingSecondsRecordedAsGaps(t *testing.T) {
	p := New("s1", DefaultConfig(), nil, nil)
	for sec := 1; sec <= 120; sec++ {
		var samples []Sample
		if sec < 50 || sec > 70 {
			samples = secondSamples(sec, 5, 140, 20)
		}
		snap, err := p.Tick(samples)
		require.NoError(t, err)
		if sec >= 50 && sec <= 70 {
			assert.Nil(t, snap.CurrentFHR)
		}
	}

	st := p.State()
	assert.Equal(t, 120, st.SecFHR.Len())
	assert.Len(t, st.SecFHR.Values(), 99)
}

func TestPipeline_RingBuffersBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SecondsCapacity = 100
	p := New("s1", cfg, nil, nil)

	runTrace(t, p, 500, constant(140), constant(20))

	assert.Equal(t, 100, p.State().SecFHR.Len())
	assert.Equal(t, 100, p.State().SecUC.Len())
}

func TestPipeline_STVNullUnderOneMinute(t *testing.T) {
	p := New("s1", DefaultConfig(), nil, nil)

	snap := runTrace(t, p, 50, constant(140), constant(20))
	assert.Nil(t, snap.STV)

	snap = runTrace(t, p, 10, constant(140), constant(20))
	require.NotNil(t, snap.STV)
	assert.GreaterOrEqual(t, *snap.STV, 0.0)
}

// Постоянная ЧСС 140 и UC 20 в течение 700 секунд
func TestPipeline_ScenarioA_ConstantTrace(t *testing.T) {
	p := New("s1", DefaultConfig(), nil, nil)
	snap := runTrace(t, p, 700, constant(140), constant(20))

	assert.Zero(t, countKind(snap, KindTachycardia))
	assert.Zero(t, countKind(snap, KindBradycardia))
	assert.Equal(t, LabelNormal, snap.FIGO)
	assert.Equal(t, 1, countKind(snap, KindFIGO))
	require.NotNil(t, snap.STV)
	assert.Equal(t, 0.0, *snap.STV)
	require.NotNil(t, snap.MedianFHR10Min)
	assert.Equal(t, 140.0, *snap.MedianFHR10Min)
	assert.Contains(t, snap.Tachycardia, "No signs of tachycardia")
	assert.Zero(t, snap.AccelerationsCount)
	assert.Zero(t, snap.DecelerationsCount)
}

func TestPipeline_ScenarioA_ModulatedTraceHasSmallSTV(t *testing.T) {
	p := New("s1", DefaultConfig(), nil, nil)
	fhr := func(sec int) float64 { return 140 + 2*math.Sin(2*math.Pi*float64(sec)/20) }

	snap := runTrace(t, p, 700, fhr, constant(20))

	require.NotNil(t, snap.STV)
	assert.Greater(t, *snap.STV, 0.0)
	assert.Less(t, *snap.STV, 5.0)
	assert.Equal(t, LabelNormal, snap.FIGO)
	assert.Zero(t, countKind(snap, KindTachycardia))
}

// Подъем ЧСС с 140 до 170 на 20 секунд
func TestPipeline_ScenarioB_SingleAcceleration(t *testing.T) {
	p := New("s1", DefaultConfig(), nil, nil)
	fhr := func(sec int) float64 {
		if sec > 200 && sec <= 220 {
			return 170
		}
		return 140
	}

	snap := runTrace(t, p, 260, fhr, constant(20))

	require.Equal(t, 1, snap.AccelerationsCount)
	acc := snap.Events.Accelerations[0]
	assert.Equal(t, 201, acc.Start)
	assert.Equal(t, 220, acc.End)
	assert.InDelta(t, 20, acc.Duration, 1)
	assert.InDelta(t, 30, acc.Amplitude, 1)
	assert.GreaterOrEqual(t, acc.End, acc.Start)
	assert.Zero(t, snap.DecelerationsCount)
	assert.False(t, snap.AccelerationActive)
	assert.Equal(t, 1, countKind(snap, KindAccelerationStart))
	assert.Equal(t, 1, countKind(snap, KindAcceleration))
}

func TestPipeline_ShortExcursionDiscarded(t *testing.T) {
	p := New("s1", DefaultConfig(), nil, nil)
	fhr := func(sec int) float64 {
		if sec > 200 && sec <= 204 {
			return 155
		}
		return 140
	}

	snap := runTrace(t, p, 240, fhr, constant(20))
	assert.Zero(t, snap.AccelerationsCount)
}

func TestPipeline_GapToleranceKeepsOneEpisode(t *testing.T) {
	p := New("s1", DefaultConfig(), nil, nil)
	fhr := func(sec int) float64 {
		switch {
		case sec > 200 && sec <= 208:
			return 165
		case sec > 208 && sec <= 210:
			return 140
		case sec > 210 && sec <= 218:
			return 165
		}
		return 140
	}

	snap := runTrace(t, p, 240, fhr, constant(20))
	require.Equal(t, 1, snap.AccelerationsCount)
	assert.Equal(t, 201, snap.Events.Accelerations[0].Start)
	assert.Equal(t, 218, snap.Events.Accelerations[0].End)
}

// Схватка 303..363 и последующая децелерация 336..368
func TestPipeline_ScenarioC_LateDecelerationEndToEnd(t *testing.T) {
	p := New("s1", DefaultConfig(), nil, nil)
	uc := func(sec int) float64 {
		if sec > 300 && sec <= 360 {
			return 60
		}
		return 10
	}
	fhr := func(sec int) float64 {
		if sec > 335 && sec <= 368 {
			return 110
		}
		return 140
	}

	snap := runTrace(t, p, 400, fhr, uc)

	require.Equal(t, 1, snap.ContractionsCount)
	c := snap.Events.Contractions[0]
	assert.Equal(t, 303, c.Start)
	assert.Equal(t, 363, c.End)
	assert.InDelta(t, 50, c.Amplitude, 0.01)

	require.Equal(t, 1, snap.DecelerationsCount)
	d := snap.Events.Decelerations[0]
	assert.Equal(t, 336, d.Start)
	assert.Equal(t, 368, d.End)
	assert.Equal(t, DecelLate, d.Type)
	assert.Equal(t, SeverityModerate, d.Severity)
	require.NotNil(t, d.Contraction)
	assert.Equal(t, 303, d.Contraction.Start)
}

func TestPipeline_TachycardiaEdgeTriggeredOnce(t *testing.T) {
	p := New("s1", DefaultConfig(), nil, nil)
	snap := runTrace(t, p, 1200, constant(175), constant(20))

	assert.Equal(t, 1, countKind(snap, KindTachycardia))
	assert.Zero(t, countKind(snap, KindTachycardiaResolved))
	assert.True(t, p.State().Flags.TachyActive)
	assert.Contains(t, snap.CurrentStatus, "Suspected tachycardia")
	assert.Equal(t, 1, countKind(snap, KindFIGO))
	assert.Equal(t, LabelPathological, snap.FIGO)
}

func TestPipeline_BradycardiaRisesAndResolves(t *testing.T) {
	p := New("s1", DefaultConfig(), nil, nil)
	runTrace(t, p, 300, constant(100), constant(20))

	st := p.State()
	assert.True(t, st.Flags.BradyActive)

	for sec := 301; sec <= 1200; sec++ {
		_, err := p.Tick(secondSamples(sec, 5, 140, 20))
		require.NoError(t, err)
	}

	snap, err := p.Tick(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, countKind(snap, KindBradycardia))
	assert.Equal(t, 1, countKind(snap, KindBradycardiaResolved))
	assert.False(t, p.State().Flags.BradyActive)
}

func TestPipeline_BradycardiaOwnCadence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tachy.TachyEvalEverySec = 600
	cfg.Tachy.BradyEvalEverySec = 10
	p := New("s1", cfg, nil, nil)

	fhr := func(sec int) float64 {
		if sec <= 590 {
			return 140
		}
		return 90
	}
	snap := runTrace(t, p, 900, fhr, constant(20))

	require.NotNil(t, snap.MedianFHR10Min)
	assert.Equal(t, 140.0, *snap.MedianFHR10Min)
	assert.True(t, p.State().Flags.BradyActive)
	assert.Equal(t, 1, countKind(snap, KindBradycardia))
}

func TestPipeline_NewNotificationsOnlyForCurrentTick(t *testing.T) {
	p := New("s1", DefaultConfig(), nil, nil)
	runTrace(t, p, 59, constant(140), constant(20))

	snap, err := p.Tick(secondSamples(60, 5, 140, 20))
	require.NoError(t, err)
	require.NotEmpty(t, snap.NewNotifications)
	for _, n := range snap.NewNotifications {
		assert.Equal(t, 60, n.Second)
	}

	snap, err = p.Tick(secondSamples(61, 5, 140, 20))
	require.NoError(t, err)
	assert.Empty(t, snap.NewNotifications)
}

func TestPipeline_StatusBeforeModels(t *testing.T) {
	p := New("s1", DefaultConfig(), modelsBundle(&sequenceClassifier{values: []float64{0.2}}, nil), nil)
	snap, err := p.Tick(secondSamples(1, 5, 140, 20))
	require.NoError(t, err)
	assert.Equal(t, "Fetal hypoxia probability: available in 9 min | Accel/Decel: 0/0", snap.CurrentStatus)
}

func TestPipeline_StatusWithoutModel(t *testing.T) {
	p := New("s1", DefaultConfig(), nil, nil)
	snap := runTrace(t, p, 900, constant(140), constant(20))
	assert.Equal(t, "Fetal hypoxia probability: model unavailable | Accel/Decel: 0/0", snap.CurrentStatus)

	p = New("s2", DefaultConfig(), modelsBundle(nil, nil), nil)
	snap = runTrace(t, p, 1, constant(140), constant(20))
	assert.Contains(t, snap.CurrentStatus, "model unavailable")
}

// Финализация сессии без тиков
func TestPipeline_ScenarioD_FinalizeEmpty(t *testing.T) {
	p := New("s1", DefaultConfig(), nil, nil)

	sum := p.Finalize()
	assert.Nil(t, sum.FIGO)
	assert.Nil(t, sum.SavelyevaScore)
	assert.Nil(t, sum.FischerScore)
	assert.Nil(t, sum.BaselineBPM)
	assert.Nil(t, sum.STVAll)
	assert.Nil(t, sum.STV10MinMean)
	assert.Nil(t, sum.UterusMean)
	assert.Zero(t, sum.AccelerationsCount)
	assert.Zero(t, sum.DecelerationsCount)

	assert.Equal(t, sum, p.Finalize())
}

func TestPipeline_FinalizeAfterSession(t *testing.T) {
	p := New("s1", DefaultConfig(), nil, nil)
	fhr := func(sec int) float64 { return 140 + 3*math.Sin(2*math.Pi*float64(sec)/30) }
	runTrace(t, p, 700, fhr, constant(20))

	sum := p.Finalize()
	require.NotNil(t, sum.FIGO)
	assert.Equal(t, LabelNormal, *sum.FIGO)
	require.NotNil(t, sum.BaselineBPM)
	assert.InDelta(t, 140, *sum.BaselineBPM, 1)
	require.NotNil(t, sum.STVAll)
	assert.Greater(t, *sum.STVAll, 0.0)
	require.NotNil(t, sum.STV10MinMean)
	require.NotNil(t, sum.UterusMean)
	assert.Equal(t, 20.0, *sum.UterusMean)
	require.NotNil(t, sum.SavelyevaScore)
	require.NotNil(t, sum.FischerScore)
	assert.Equal(t, 700, sum.DurationSec)
}

func TestPipeline_TickAfterFinalize(t *testing.T) {
	p := New("s1", DefaultConfig(), nil, nil)
	p.Finalize()

	_, err := p.Tick(nil)
	assert.True(t, errors.Is(err, ErrFinalized))
}

func TestPipeline_SessionsAreIsolated(t *testing.T) {
	a := New("a", DefaultConfig(), nil, nil)
	b := New("b", DefaultConfig(), nil, nil)

	runTrace(t, a, 100, constant(175), constant(20))
	snap := runTrace(t, b, 10, constant(140), constant(20))

	assert.Equal(t, 10, snap.TimeSec)
	assert.Equal(t, "b", snap.SessionID)
	assert.Zero(t, countKind(snap, KindTachycardia))
	assert.Equal(t, 100, a.Now())
}
