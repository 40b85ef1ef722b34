package pipeline

import "math"

const (
	// MaxFHR верхняя граница допустимого значения ЧСС плода, уд/мин
	MaxFHR = 250.0
	// MaxUC верхняя граница допустимого значения тонуса матки
	MaxUC = 300.0
)

// Sample одно измерение ЧСС плода и тонуса матки.
// Отсутствующее значение канала представлено NaN.
type Sample struct {
	TimeSec float64 `json:"time_sec"`
	FHR     float64 `json:"fhr"`
	UC      float64 `json:"uc"`
}

// NewSample создает измерение из nullable значений каналов
func NewSample(timeSec float64, fhr, uc *float64) Sample {
	s := Sample{TimeSec: timeSec, FHR: math.NaN(), UC: math.NaN()}
	if fhr != nil {
		s.FHR = *fhr
	}
	if uc != nil {
		s.UC = *uc
	}
	return s
}

// Valid сообщает, может ли измерение попасть в состояние сессии.
// Отсутствующий канал допустим, значение вне диапазона - нет.
func (s Sample) Valid() bool {
	if math.IsNaN(s.TimeSec) || math.IsInf(s.TimeSec, 0) || s.TimeSec < 0 {
		return false
	}
	if math.IsInf(s.FHR, 0) || math.IsInf(s.UC, 0) {
		return false
	}
	if !math.IsNaN(s.FHR) && (s.FHR < 0 || s.FHR > MaxFHR) {
		return false
	}
	if !math.IsNaN(s.UC) && (s.UC < 0 || s.UC > MaxUC) {
		return false
	}
	return !(math.IsNaN(s.FHR) && math.IsNaN(s.UC))
}
