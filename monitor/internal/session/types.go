package session

import (
	"errors"
	"time"

	"github.com/Krimson/ctg-stream/monitor/internal/pipeline"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionNotActive = errors.New("session is not active")
)

// SessionStatus представляет статус сессии
type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "ACTIVE"
	SessionStatusStopped SessionStatus = "STOPPED"
)

// Session представляет мониторинговую сессию
type Session struct {
	ID           string        `json:"id"`
	Status       SessionStatus `json:"status"`
	StartedAt    time.Time     `json:"started_at"`
	StoppedAt    *time.Time    `json:"stopped_at,omitempty"`
	DurationSec  int           `json:"duration_sec"`
	TotalSamples int64         `json:"total_samples"`
	Metadata     Metadata      `json:"metadata,omitempty"`
}

// Metadata содержит дополнительную информацию о сессии
type Metadata struct {
	PatientID   string                 `json:"patient_id,omitempty"`
	DoctorID    string                 `json:"doctor_id,omitempty"`
	FacilityID  string                 `json:"facility_id,omitempty"`
	Notes       string                 `json:"notes,omitempty"`
	CustomData  map[string]interface{} `json:"custom_data,omitempty"`
	CreatedFrom string                 `json:"created_from,omitempty"` // "web", "grpc", "mqtt", "auto-created"
}

// EventType представляет тип закрытого события
type EventType string

const (
	EventTypeAcceleration EventType = "acceleration"
	EventTypeDeceleration EventType = "deceleration"
	EventTypeContraction  EventType = "contraction"
)

// SessionEvent строка архива закрытых событий
type SessionEvent struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Type      EventType `json:"type"`
	StartSec  int       `json:"start_sec"`
	EndSec    int       `json:"end_sec"`
	Duration  int       `json:"duration"`
	Amplitude float64   `json:"amplitude"`
	DecelType string    `json:"decel_type,omitempty"`
	Severity  string    `json:"severity,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateSessionRequest представляет запрос на создание сессии
type CreateSessionRequest struct {
	PatientID   string                 `json:"patient_id,omitempty"`
	DoctorID    string                 `json:"doctor_id,omitempty"`
	FacilityID  string                 `json:"facility_id,omitempty"`
	Notes       string                 `json:"notes,omitempty"`
	CustomData  map[string]interface{} `json:"custom_data,omitempty"`
	CreatedFrom string                 `json:"created_from,omitempty"`
}

// SessionResponse представляет ответ с информацией о сессии
type SessionResponse struct {
	Session  *Session           `json:"session"`
	Snapshot *pipeline.Snapshot `json:"snapshot,omitempty"`
	Summary  *pipeline.Summary  `json:"summary,omitempty"`
}

// ConvertEvents раскладывает журналы конвейера в строки архива, по времени начала внутри типа
func ConvertEvents(sessionID string, ev pipeline.Events) []SessionEvent {
	now := time.Now()
	out := make([]SessionEvent, 0, len(ev.Accelerations)+len(ev.Decelerations)+len(ev.Contractions))

	for _, a := range ev.Accelerations {
		out = append(out, SessionEvent{
			SessionID: sessionID,
			Type:      EventTypeAcceleration,
			StartSec:  a.Start,
			EndSec:    a.End,
			Duration:  a.Duration,
			Amplitude: a.Amplitude,
			CreatedAt: now,
		})
	}
	for _, d := range ev.Decelerations {
		out = append(out, SessionEvent{
			SessionID: sessionID,
			Type:      EventTypeDeceleration,
			StartSec:  d.Start,
			EndSec:    d.End,
			Duration:  d.Duration,
			Amplitude: d.Amplitude,
			DecelType: string(d.Type),
			Severity:  string(d.Severity),
			CreatedAt: now,
		})
	}
	for _, c := range ev.Contractions {
		out = append(out, SessionEvent{
			SessionID: sessionID,
			Type:      EventTypeContraction,
			StartSec:  c.Start,
			EndSec:    c.End,
			Duration:  c.Duration,
			Amplitude: c.Amplitude,
			CreatedAt: now,
		})
	}
	return out
}
