package signal

import (
	"fmt"
	"sort"
)

// Profiles готовые сценарии записи для эмулятора и офлайн-прогона
var Profiles = map[string]func(durationSec int, seed int64) Config{
	"normal":      normalProfile,
	"tachycardia": tachycardiaProfile,
	"late-decels": lateDecelProfile,
}

// ProfileNames список доступных сценариев
func ProfileNames() []string {
	names := make([]string, 0, len(Profiles))
	for name := range Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Profile возвращает конфигурацию сценария по имени
func Profile(name string, durationSec int, seed int64) (Config, error) {
	p, ok := Profiles[name]
	if !ok {
		return Config{}, fmt.Errorf("%w: unknown profile %q", ErrInvalidConfig, name)
	}
	return p(durationSec, seed), nil
}

func normalProfile(durationSec int, seed int64) Config {
	cfg := Config{
		FS:            5,
		DurationSec:   durationSec,
		Seed:          seed,
		FHRBase:       140,
		FHRNoise:      3,
		FHRWaveAmp:    6,
		FHRWavePeriod: 20,
		UCBase:        15,
		UCNoise:       1,
	}
	for t := 240.0; t+90 < float64(durationSec); t += 300 {
		cfg.Contractions = append(cfg.Contractions, Episode{Start: t, Duration: 70, Amplitude: 45, RampSec: 20})
		cfg.FHREpisodes = append(cfg.FHREpisodes, Episode{Start: t - 100, Duration: 25, Amplitude: 22, RampSec: 4})
	}
	return cfg
}

func tachycardiaProfile(durationSec int, seed int64) Config {
	cfg := normalProfile(durationSec, seed)
	cfg.FHRBase = 172
	return cfg
}

func lateDecelProfile(durationSec int, seed int64) Config {
	cfg := normalProfile(durationSec, seed)
	cfg.FHREpisodes = nil
	for _, c := range cfg.Contractions {
		cfg.FHREpisodes = append(cfg.FHREpisodes, Episode{Start: c.Start + 40, Duration: c.Duration, Amplitude: -35, RampSec: 3})
	}
	return cfg
}
