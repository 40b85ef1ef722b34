package pipeline

// Config пороги и интервалы всех стадий конвейера
type Config struct {
	// Частота дискретизации сырых измерений, Гц
	FS int
	// Емкость посекундных кольцевых буферов
	SecondsCapacity int

	Tachy       TachyConfig
	STV         STVConfig
	Contraction ContractionConfig
	AccelDecel  AccelDecelConfig
	Models      ModelsConfig
	FIGO        FIGOConfig
	Savelyeva   RubricConfig
	Fischer     RubricConfig
}

type TachyConfig struct {
	BaselineWindowSec int
	TachyThreshold    float64
	TachyEvalEverySec int
	BradyThreshold    float64
	BradyEvalEverySec int
}

type STVConfig struct {
	EvalEverySec int
	WindowSec    int
	// Число интервалов на минуту записи
	ChunksPerMinute int
}

type ContractionConfig struct {
	BaselineWindowSec int
	AmpThreshold      float64
	IQRK              float64
	MinLenSec         int
	CooldownSec       int
	SmoothWindowSec   int
}

type AccelDecelConfig struct {
	BaselineWindowSec  int
	AccelThreshold     float64
	DecelThreshold     float64
	IQRK               float64
	MinLenSec          int
	GapToleranceSec    int
	AccelAreaThreshold float64
	DecelAreaThreshold float64

	// Классификация децелераций относительно схватки
	LateLagSec     int
	EarlyLagSec    int
	MildMaxBPM     float64
	ModerateMaxBPM float64
}

type ModelsConfig struct {
	WindowSec         int
	StepSec           int
	EWMAAlpha         float64
	HighRiskThreshold float64
	ElevatedThreshold float64
}

type FIGOConfig struct {
	EvalEverySec         int
	VariabilityWindowSec int
	LongDurationSec      int
}

type RubricConfig struct {
	WindowSec    int
	EvalEverySec int
}

// DefaultConfig возвращает конфигурацию со значениями по умолчанию
func DefaultConfig() Config {
	return Config{
		FS:              5,
		SecondsCapacity: 30 * 60,
		Tachy: TachyConfig{
			BaselineWindowSec: 600,
			TachyThreshold:    160,
			TachyEvalEverySec: 10,
			BradyThreshold:    110,
			BradyEvalEverySec: 10,
		},
		STV: STVConfig{
			EvalEverySec:    10,
			WindowSec:       600,
			ChunksPerMinute: 16,
		},
		Contraction: ContractionConfig{
			BaselineWindowSec: 180,
			AmpThreshold:      12,
			IQRK:              0.9,
			MinLenSec:         25,
			CooldownSec:       10,
			SmoothWindowSec:   5,
		},
		AccelDecel: AccelDecelConfig{
			BaselineWindowSec:  90,
			AccelThreshold:     12,
			DecelThreshold:     12,
			IQRK:               0.85,
			MinLenSec:          10,
			GapToleranceSec:    3,
			AccelAreaThreshold: 120,
			DecelAreaThreshold: 120,
			LateLagSec:         30,
			EarlyLagSec:        10,
			MildMaxBPM:         15,
			ModerateMaxBPM:     45,
		},
		Models: ModelsConfig{
			WindowSec:         600,
			StepSec:           10,
			EWMAAlpha:         0.01,
			HighRiskThreshold: 0.8,
			ElevatedThreshold: 0.5,
		},
		FIGO: FIGOConfig{
			EvalEverySec:         60,
			VariabilityWindowSec: 600,
			LongDurationSec:      2400,
		},
		Savelyeva: RubricConfig{WindowSec: 600, EvalEverySec: 60},
		Fischer:   RubricConfig{WindowSec: 1200, EvalEverySec: 60},
	}
}
