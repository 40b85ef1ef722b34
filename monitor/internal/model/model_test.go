package model

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadBundle(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "stv_10.json", `{"kind":"linear","intercept":1.5,"coefficients":{"stv":2}}`)
	writeJSON(t, dir, "hypoxia.json", `{"kind":"logistic","intercept":0,"coefficients":{"std_fhr":0}}`)
	manifest := writeJSON(t, dir, "manifest.json", `{
		"window_size": 600,
		"step_size": 10,
		"fs": 5,
		"ewma_alpha": 0.02,
		"stv_models": {"stv_10": "stv_10.json", "stv_20": "missing.json"},
		"hypoxia_model": "hypoxia.json"
	}`)

	b, err := LoadBundle(manifest)
	require.NoError(t, err)

	assert.Equal(t, 600, b.WindowSize)
	assert.Equal(t, 10, b.StepSize)
	assert.Equal(t, 0.02, b.EWMAAlpha)
	assert.Equal(t, []string{"stv_10", "stv_20"}, b.STVNames())

	res := Regress(b.STV["stv_10"], map[string]float64{"stv": 3})
	require.True(t, res.OK())
	assert.Equal(t, 7.5, res.Value)

	res = Regress(b.STV["stv_20"], nil)
	assert.False(t, res.OK())
	assert.True(t, errors.Is(res.Err, ErrUnavailable))

	res = Classify(b.Hypoxia, map[string]float64{})
	require.True(t, res.OK())
	assert.Equal(t, 0.5, res.Value)
}

func TestLoadBundle_BadManifest(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadBundle(filepath.Join(dir, "nope.json"))
	assert.Error(t, err)

	bad := writeJSON(t, dir, "bad.json", `{not json`)
	_, err = LoadBundle(bad)
	assert.Error(t, err)
}

func TestLoadBundle_UnsupportedKindAndMissingHypoxia(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "tree.json", `{"kind":"xgboost"}`)
	manifest := writeJSON(t, dir, "manifest.json", `{"stv_models": {"stv_10": "tree.json"}}`)

	b, err := LoadBundle(manifest)
	require.NoError(t, err)

	assert.ErrorIs(t, Regress(b.STV["stv_10"], nil).Err, ErrUnavailable)
	assert.ErrorIs(t, Classify(b.Hypoxia, nil).Err, ErrUnavailable)
}

type panicky struct{}

func (panicky) Predict(map[string]float64) (float64, error)      { panic("index out of range") }
func (panicky) PredictProba(map[string]float64) (float64, error) { panic("index out of range") }

type overshoot float64

func (o overshoot) PredictProba(map[string]float64) (float64, error) { return float64(o), nil }

func TestResultHelpers(t *testing.T) {
	assert.ErrorIs(t, Regress(nil, nil).Err, ErrUnavailable)
	assert.ErrorIs(t, Classify(nil, nil).Err, ErrUnavailable)

	assert.Error(t, Regress(panicky{}, nil).Err)
	assert.Error(t, Classify(panicky{}, nil).Err)

	assert.Equal(t, 1.0, Classify(overshoot(1.7), nil).Value)
	assert.Equal(t, 0.0, Classify(overshoot(-0.2), nil).Value)

	assert.False(t, Result{Value: math.NaN()}.OK())
	assert.False(t, Result{Value: math.Inf(1)}.OK())
	assert.True(t, Result{Value: 0.3}.OK())
}

func TestLinear_NonFiniteScore(t *testing.T) {
	m := &Linear{Name: "stv_10", Coefficients: map[string]float64{"x": 1}}
	_, err := m.Predict(map[string]float64{"x": math.Inf(1)})
	assert.Error(t, err)

	lg := &Logistic{Linear: Linear{Name: "hypoxia", Intercept: 100}}
	p, err := lg.PredictProba(nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p, 1e-9)
}
