package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Manifest описание набора моделей на диске
type Manifest struct {
	WindowSize   int               `json:"window_size"`
	StepSize     int               `json:"step_size"`
	FS           int               `json:"fs"`
	EWMAAlpha    float64           `json:"ewma_alpha"`
	STVModels    map[string]string `json:"stv_models"`
	HypoxiaModel string            `json:"hypoxia_model"`
}

// artifact файл модели
type artifact struct {
	Kind         string             `json:"kind"`
	Intercept    float64            `json:"intercept"`
	Coefficients map[string]float64 `json:"coefficients"`
}

// LoadBundle читает манифест и все артефакты. Пути артефактов считаются
// относительно каталога манифеста. Незагруженный артефакт заменяется моделью,
// которая при каждом вызове возвращает ErrUnavailable.
func LoadBundle(manifestPath string) (*Bundle, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse model manifest: %w", err)
	}

	dir := filepath.Dir(manifestPath)
	b := &Bundle{
		WindowSize: m.WindowSize,
		StepSize:   m.StepSize,
		FS:         m.FS,
		EWMAAlpha:  m.EWMAAlpha,
		STV:        make(map[string]Regressor, len(m.STVModels)),
	}

	for name, path := range m.STVModels {
		lin, err := loadArtifact(resolve(dir, path), name)
		if err != nil {
			b.STV[name] = unavailable{name: name, err: err}
			continue
		}
		b.STV[name] = lin
	}

	if m.HypoxiaModel == "" {
		b.Hypoxia = unavailable{name: "hypoxia", err: fmt.Errorf("not configured")}
		return b, nil
	}
	lin, err := loadArtifact(resolve(dir, m.HypoxiaModel), "hypoxia")
	if err != nil {
		b.Hypoxia = unavailable{name: "hypoxia", err: err}
		return b, nil
	}
	b.Hypoxia = &Logistic{Linear: *lin}
	return b, nil
}

func loadArtifact(path, name string) (*Linear, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse artifact %s: %w", path, err)
	}
	if a.Kind != "" && a.Kind != "linear" && a.Kind != "logistic" {
		return nil, fmt.Errorf("artifact %s: unsupported kind %q", path, a.Kind)
	}

	return &Linear{Name: name, Intercept: a.Intercept, Coefficients: a.Coefficients}, nil
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
