package pipeline

import (
	"fmt"
	"math"
	"sort"
)

// Flags признаки для фронтовой генерации уведомлений
type Flags struct {
	TachyActive   bool
	BradyActive   bool
	HypoxiaActive bool
	LastFIGO      string
}

// figoTimers моменты начала длительных состояний вариабельности
type figoTimers struct {
	lowVarSince    *int
	midLowVarSince *int
}

// State состояние одной сессии мониторинга.
// Принадлежит одному конвейеру и изменяется только стадиями по порядку.
type State struct {
	SessionID string
	Now       int

	SecFHR *Ring
	SecUC  *Ring

	// Window все сырые измерения с TimeSec <= Now, по возрастанию времени
	Window  []Sample
	pending []Sample

	ActiveAcceleration *excursion
	ActiveDeceleration *excursion
	ActiveContraction  *contractionTracker
	lastContractionEnd int

	Events        Events
	Flags         Flags
	Notifications *NotificationLog

	// Snap последние вычисленные значения полей снимка
	Snap Snapshot

	figo        figoTimers
	hypoxiaEWMA float64
	hasEWMA     bool
	// hypoxiaErr ошибка последнего вызова классификатора гипоксии
	hypoxiaErr error
}

// NewState создает пустое состояние сессии
func NewState(sessionID string, cfg Config) *State {
	return &State{
		SessionID:          sessionID,
		SecFHR:             NewRing(cfg.SecondsCapacity),
		SecUC:              NewRing(cfg.SecondsCapacity),
		Window:             make([]Sample, 0, 1024),
		lastContractionEnd: math.MinInt32,
		Notifications:      newNotificationLog(),
		Snap:               Snapshot{SessionID: sessionID},
	}
}

// enqueue добавляет новые измерения в очередь ожидания, отбрасывая невалидные
func (st *State) enqueue(samples []Sample) {
	for _, s := range samples {
		if !s.Valid() {
			continue
		}
		st.pending = append(st.pending, s)
	}
}

// admit переносит в окно измерения, чье время уже наступило
func (st *State) admit() {
	if len(st.pending) == 0 {
		return
	}

	sort.SliceStable(st.pending, func(i, j int) bool {
		return st.pending[i].TimeSec < st.pending[j].TimeSec
	})

	now := float64(st.Now)
	n := sort.Search(len(st.pending), func(i int) bool {
		return st.pending[i].TimeSec > now
	})

	for _, s := range st.pending[:n] {
		st.insert(s)
	}
	st.pending = append(st.pending[:0], st.pending[n:]...)
}

func (st *State) insert(s Sample) {
	if len(st.Window) == 0 || st.Window[len(st.Window)-1].TimeSec <= s.TimeSec {
		st.Window = append(st.Window, s)
		return
	}
	i := sort.Search(len(st.Window), func(i int) bool {
		return st.Window[i].TimeSec > s.TimeSec
	})
	st.Window = append(st.Window, Sample{})
	copy(st.Window[i+1:], st.Window[i:])
	st.Window[i] = s
}

// windowAfter возвращает измерения окна с TimeSec > from
func (st *State) windowAfter(from float64) []Sample {
	i := sort.Search(len(st.Window), func(i int) bool {
		return st.Window[i].TimeSec > from
	})
	return st.Window[i:]
}

// windowFrom возвращает измерения окна с TimeSec >= from
func (st *State) windowFrom(from float64) []Sample {
	i := sort.Search(len(st.Window), func(i int) bool {
		return st.Window[i].TimeSec >= from
	})
	return st.Window[i:]
}

func (st *State) notify(kind NotificationKind, color Color, format string, args ...interface{}) {
	st.notifyAt(st.Now, kind, color, format, args...)
}

func (st *State) notifyAt(sec int, kind NotificationKind, color Color, format string, args ...interface{}) {
	st.Notifications.add(Notification{
		Second:  sec,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Color:   color,
	})
}

// fhrValues возвращает не-NaN значения ЧСС
func fhrValues(samples []Sample) []float64 {
	vals := make([]float64, 0, len(samples))
	for _, s := range samples {
		if !math.IsNaN(s.FHR) {
			vals = append(vals, s.FHR)
		}
	}
	return vals
}

// ucValues возвращает не-NaN значения тонуса матки
func ucValues(samples []Sample) []float64 {
	vals := make([]float64, 0, len(samples))
	for _, s := range samples {
		if !math.IsNaN(s.UC) {
			vals = append(vals, s.UC)
		}
	}
	return vals
}

func floatPtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func intPtr(v int) *int {
	return &v
}
