package pipeline

import "fmt"

// DecelType тип децелерации по отношению к схватке
type DecelType string

const (
	DecelEarly    DecelType = "early"
	DecelLate     DecelType = "late"
	DecelVariable DecelType = "variable"
)

// Severity степень тяжести поздней децелерации
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Event закрытое событие на записи: границы в секундах сессии включительно
type Event struct {
	Start     int     `json:"start"`
	End       int     `json:"end"`
	Duration  int     `json:"duration"`
	Amplitude float64 `json:"amplitude"`
	Area      float64 `json:"area"`
}

// Acceleration закрытая акцелерация ЧСС
type Acceleration struct {
	Event
	PeakSec int     `json:"peak_sec"`
	PeakBPM float64 `json:"peak_bpm"`
}

// ContractionRef ссылка на схватку, относительно которой классифицирована децелерация
type ContractionRef struct {
	Start   int `json:"start"`
	End     int `json:"end"`
	PeakSec int `json:"peak_sec"`
}

// Deceleration закрытая децелерация ЧСС
type Deceleration struct {
	Event
	NadirSec    int             `json:"nadir_sec"`
	NadirBPM    float64         `json:"nadir_bpm"`
	Type        DecelType       `json:"type"`
	Severity    Severity        `json:"severity,omitempty"`
	Contraction *ContractionRef `json:"contraction,omitempty"`
}

// Contraction закрытая схватка по каналу UC
type Contraction struct {
	Event
	PeakSec   int     `json:"peak_sec"`
	PeakValue float64 `json:"peak_value"`
	Baseline  float64 `json:"baseline"`
}

// Events журналы закрытых событий сессии
type Events struct {
	Accelerations []Acceleration `json:"accelerations"`
	Decelerations []Deceleration `json:"decelerations"`
	Contractions  []Contraction  `json:"contractions"`
}

func (e Events) clone() Events {
	return Events{
		Accelerations: append([]Acceleration(nil), e.Accelerations...),
		Decelerations: append([]Deceleration(nil), e.Decelerations...),
		Contractions:  append([]Contraction(nil), e.Contractions...),
	}
}

// validate проверяет инварианты закрытого события
func (e Event) validate(minLen int, areaThreshold float64) error {
	if e.End < e.Start {
		return fmt.Errorf("%w: event end %d before start %d", ErrInvariant, e.End, e.Start)
	}
	if e.Duration < 0 {
		return fmt.Errorf("%w: negative event duration %d", ErrInvariant, e.Duration)
	}
	if e.Duration < minLen && (areaThreshold <= 0 || e.Area < areaThreshold) {
		return fmt.Errorf("%w: event %d..%d passes neither duration nor area gate", ErrInvariant, e.Start, e.End)
	}
	return nil
}

// excursion незакрытое отклонение ЧСС от локального базального ритма
type excursion struct {
	Start      int
	Extreme    float64 // пик или надир ЧСС
	ExtremeSec int
	Amplitude  float64 // максимальное отклонение от базального ритма, по модулю
	Area       float64
	Gap        int // секунд подряд ниже порога
}

// contractionTracker незакрытая схватка
type contractionTracker struct {
	Start     int
	PeakValue float64
	PeakSec   int
	Baseline  float64 // базис UC на момент начала
}
