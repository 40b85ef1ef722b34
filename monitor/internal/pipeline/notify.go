package pipeline

import "sort"

// Color цвет уведомления для отображения
type Color string

const (
	ColorRed    Color = "red"
	ColorYellow Color = "yellow"
	ColorGreen  Color = "green"
)

// NotificationKind источник уведомления
type NotificationKind string

const (
	KindTachycardia         NotificationKind = "tachycardia"
	KindTachycardiaResolved NotificationKind = "tachycardia_resolved"
	KindBradycardia         NotificationKind = "bradycardia"
	KindBradycardiaResolved NotificationKind = "bradycardia_resolved"
	KindAccelerationStart   NotificationKind = "acceleration_start"
	KindAcceleration        NotificationKind = "acceleration"
	KindDecelerationStart   NotificationKind = "deceleration_start"
	KindDeceleration        NotificationKind = "deceleration"
	KindContractionStart    NotificationKind = "contraction_start"
	KindContraction         NotificationKind = "contraction"
	KindHypoxiaHigh         NotificationKind = "hypoxia_high"
	KindHypoxiaDecreased    NotificationKind = "hypoxia_decreased"
	KindFIGO                NotificationKind = "figo"
	KindSavelyeva           NotificationKind = "savelyeva"
	KindFischer             NotificationKind = "fischer"
)

// Notification запись журнала уведомлений
type Notification struct {
	Second  int              `json:"second"`
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`
	Color   Color            `json:"color"`
}

// NotificationLog журнал уведомлений сессии, только на добавление
type NotificationLog struct {
	bySecond map[int][]Notification
	ordered  []Notification
}

func newNotificationLog() *NotificationLog {
	return &NotificationLog{bySecond: make(map[int][]Notification)}
}

func (l *NotificationLog) add(n Notification) {
	l.bySecond[n.Second] = append(l.bySecond[n.Second], n)
	l.ordered = append(l.ordered, n)
}

// Len общее число уведомлений
func (l *NotificationLog) Len() int { return len(l.ordered) }

// Since возвращает уведомления, добавленные после первых mark записей
func (l *NotificationLog) Since(mark int) []Notification {
	if mark >= len(l.ordered) {
		return nil
	}
	return append([]Notification(nil), l.ordered[mark:]...)
}

// All возвращает копию журнала, сгруппированного по секундам
func (l *NotificationLog) All() map[int][]Notification {
	out := make(map[int][]Notification, len(l.bySecond))
	for sec, list := range l.bySecond {
		out[sec] = append([]Notification(nil), list...)
	}
	return out
}

// Seconds возвращает отсортированный список секунд с уведомлениями
func (l *NotificationLog) Seconds() []int {
	secs := make([]int, 0, len(l.bySecond))
	for sec := range l.bySecond {
		secs = append(secs, sec)
	}
	sort.Ints(secs)
	return secs
}
