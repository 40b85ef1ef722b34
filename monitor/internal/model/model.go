package model

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrUnavailable артефакт модели отсутствует или не загрузился
var ErrUnavailable = errors.New("model artifact unavailable")

// Regressor модель регрессии над вектором признаков
type Regressor interface {
	Predict(features map[string]float64) (float64, error)
}

// Classifier бинарный классификатор, возвращает вероятность положительного класса
type Classifier interface {
	PredictProba(features map[string]float64) (float64, error)
}

// Result результат одного вызова модели
type Result struct {
	Value float64
	Err   error
}

// OK сообщает, что вызов завершился успешно и вернул конечное число
func (r Result) OK() bool {
	return r.Err == nil && !math.IsNaN(r.Value) && !math.IsInf(r.Value, 0)
}

// Regress вызывает регрессор, превращая ошибки и панику модели в Result
func Regress(m Regressor, features map[string]float64) (res Result) {
	if m == nil {
		return Result{Err: ErrUnavailable}
	}
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("regressor panic: %v", r)}
		}
	}()
	v, err := m.Predict(features)
	return Result{Value: v, Err: err}
}

// Classify вызывает классификатор; вероятность ограничивается отрезком [0, 1]
func Classify(m Classifier, features map[string]float64) (res Result) {
	if m == nil {
		return Result{Err: ErrUnavailable}
	}
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("classifier panic: %v", r)}
		}
	}()
	p, err := m.PredictProba(features)
	if err != nil {
		return Result{Err: err}
	}
	return Result{Value: math.Max(0, math.Min(1, p))}
}

// Linear линейная модель: intercept + Σ coef·feature. Отсутствующий признак равен нулю.
type Linear struct {
	Name         string             `json:"name"`
	Intercept    float64            `json:"intercept"`
	Coefficients map[string]float64 `json:"coefficients"`
}

func (m *Linear) score(features map[string]float64) (float64, error) {
	sum := m.Intercept
	for name, coef := range m.Coefficients {
		sum += coef * features[name]
	}
	if math.IsNaN(sum) || math.IsInf(sum, 0) {
		return 0, fmt.Errorf("model %s: non-finite score", m.Name)
	}
	return sum, nil
}

func (m *Linear) Predict(features map[string]float64) (float64, error) {
	return m.score(features)
}

// Logistic логистическая модель: sigmoid(intercept + Σ coef·feature)
type Logistic struct {
	Linear
}

func (m *Logistic) PredictProba(features map[string]float64) (float64, error) {
	z, err := m.score(features)
	if err != nil {
		return 0, err
	}
	return 1 / (1 + math.Exp(-z)), nil
}

// unavailable заглушка для артефакта, который не удалось загрузить
type unavailable struct {
	name string
	err  error
}

func (u unavailable) Predict(map[string]float64) (float64, error) {
	return 0, fmt.Errorf("%w: %s: %v", ErrUnavailable, u.name, u.err)
}

func (u unavailable) PredictProba(map[string]float64) (float64, error) {
	return 0, fmt.Errorf("%w: %s: %v", ErrUnavailable, u.name, u.err)
}

// Bundle набор моделей сессии и параметры их окна
type Bundle struct {
	WindowSize int
	StepSize   int
	FS         int
	EWMAAlpha  float64

	STV     map[string]Regressor
	Hypoxia Classifier
}

// STVNames возвращает имена регрессоров STV в стабильном порядке
func (b *Bundle) STVNames() []string {
	names := make([]string, 0, len(b.STV))
	for name := range b.STV {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
