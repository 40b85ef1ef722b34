package session

import (
	"context"

	"github.com/Krimson/ctg-stream/monitor/internal/pipeline"
)

// Repository архив сессий, итогов и закрытых событий (Domain Layer)
type Repository interface {
	// Управление сессиями
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	UpdateSession(ctx context.Context, session *Session) error
	ListSessions(ctx context.Context, limit, offset int) ([]*Session, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Итоги финализации
	SaveSummary(ctx context.Context, summary *pipeline.Summary) error
	GetSummary(ctx context.Context, sessionID string) (*pipeline.Summary, error)

	// Закрытые события
	SaveEvents(ctx context.Context, events []SessionEvent) error
	GetEvents(ctx context.Context, sessionID string) ([]SessionEvent, error)
}

// CacheStore живое состояние сессии (Redis)
type CacheStore interface {
	SetSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Последний снимок (перезаписывается каждый тик)
	SetSnapshot(ctx context.Context, snap *pipeline.Snapshot) error
	GetSnapshot(ctx context.Context, sessionID string) (*pipeline.Snapshot, error)

	// Уведомления (append-only)
	AppendNotifications(ctx context.Context, sessionID string, list []pipeline.Notification) error
	GetNotifications(ctx context.Context, sessionID string, sinceSec int) ([]pipeline.Notification, error)

	SetSessionTTL(ctx context.Context, sessionID string, ttl int) error
}
