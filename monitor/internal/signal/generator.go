package signal

import (
	"errors"
	"math"
	"math/rand"

	"github.com/Krimson/ctg-stream/monitor/internal/pipeline"
)

var ErrInvalidConfig = errors.New("invalid generator configuration")

// Episode отклонение сигнала на интервале (Start, Start+Duration] секунд.
// RampSec задает длительность подъема и спада; 0 дает прямоугольную форму.
type Episode struct {
	Start     float64
	Duration  float64
	Amplitude float64
	RampSec   float64
}

// level возвращает вклад эпизода в момент t
func (e Episode) level(t float64) float64 {
	if t <= e.Start || t > e.Start+e.Duration {
		return 0
	}
	if e.RampSec <= 0 {
		return e.Amplitude
	}
	ramp := math.Min(e.RampSec, e.Duration/2)
	since := t - e.Start
	until := e.Start + e.Duration - t
	switch {
	case since < ramp:
		return e.Amplitude * since / ramp
	case until < ramp:
		return e.Amplitude * until / ramp
	default:
		return e.Amplitude
	}
}

// Config параметры синтетической записи КТГ
type Config struct {
	FS          int
	DurationSec int
	Seed        int64

	FHRBase       float64
	FHRNoise      float64 // равномерный шум ±FHRNoise
	FHRWaveAmp    float64 // медленная синусоидальная модуляция
	FHRWavePeriod float64
	FHREpisodes   []Episode // акцелерации (+) и децелерации (-)
	FHRDropouts   []Episode // интервалы потери сигнала ЧСС

	UCBase       float64
	UCNoise      float64
	Contractions []Episode
}

func (c Config) Validate() error {
	if c.FS <= 0 || c.DurationSec < 0 {
		return ErrInvalidConfig
	}
	if c.FHRBase < 0 || c.FHRBase > pipeline.MaxFHR || c.UCBase < 0 || c.UCBase > pipeline.MaxUC {
		return ErrInvalidConfig
	}
	return nil
}

// Generator детерминированный генератор измерений (FS отсчетов в секунду)
type Generator struct {
	cfg  Config
	rand *rand.Rand
}

func New(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Generator{cfg: cfg, rand: rand.New(rand.NewSource(cfg.Seed))}, nil
}

// Reset перезапускает генератор шума
func (g *Generator) Reset() {
	g.rand = rand.New(rand.NewSource(g.cfg.Seed))
}

// Second возвращает измерения с моментами в (sec-1, sec]
func (g *Generator) Second(sec int) []pipeline.Sample {
	out := make([]pipeline.Sample, 0, g.cfg.FS)
	for k := 1; k <= g.cfg.FS; k++ {
		t := float64(sec-1) + float64(k)/float64(g.cfg.FS)
		out = append(out, g.at(t))
	}
	return out
}

// All возвращает всю запись длительностью DurationSec
func (g *Generator) All() []pipeline.Sample {
	out := make([]pipeline.Sample, 0, g.cfg.FS*g.cfg.DurationSec)
	for sec := 1; sec <= g.cfg.DurationSec; sec++ {
		out = append(out, g.Second(sec)...)
	}
	return out
}

// DurationSec длительность записи
func (g *Generator) DurationSec() int { return g.cfg.DurationSec }

func (g *Generator) at(t float64) pipeline.Sample {
	fhr := g.cfg.FHRBase
	if g.cfg.FHRNoise > 0 {
		fhr += (g.rand.Float64()*2 - 1) * g.cfg.FHRNoise
	}
	if g.cfg.FHRWaveAmp != 0 && g.cfg.FHRWavePeriod > 0 {
		fhr += g.cfg.FHRWaveAmp * math.Sin(2*math.Pi*t/g.cfg.FHRWavePeriod)
	}
	for _, e := range g.cfg.FHREpisodes {
		fhr += e.level(t)
	}
	fhr = clamp(fhr, 0, pipeline.MaxFHR)

	uc := g.cfg.UCBase
	if g.cfg.UCNoise > 0 {
		uc += (g.rand.Float64()*2 - 1) * g.cfg.UCNoise
	}
	for _, c := range g.cfg.Contractions {
		uc += c.level(t)
	}
	uc = clamp(uc, 0, pipeline.MaxUC)

	for _, d := range g.cfg.FHRDropouts {
		if t > d.Start && t <= d.Start+d.Duration {
			fhr = math.NaN()
		}
	}

	return pipeline.Sample{TimeSec: t, FHR: fhr, UC: uc}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
