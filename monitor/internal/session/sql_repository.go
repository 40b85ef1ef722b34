package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/Krimson/ctg-stream/monitor/internal/pipeline"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect диалект SQL архива
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// SQLRepository реализует Repository для PostgreSQL и SQLite (Infrastructure Layer)
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLRepository создает репозиторий поверх открытого соединения
func NewSQLRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	return &SQLRepository{
		db:      db,
		dialect: dialect,
	}
}

// OpenSQLRepository открывает архив: driver = postgres (dsn) или sqlite (путь к файлу или :memory:)
func OpenSQLRepository(ctx context.Context, driver, dsn string) (*SQLRepository, error) {
	dialect := Dialect(driver)
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return nil, fmt.Errorf("unsupported archive driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Проверяем соединение
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Настройки пула соединений
	if dialect == DialectPostgres {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	} else {
		// SQLite: одна запись за раз, :memory: живет в пределах соединения
		db.SetMaxOpenConns(1)
	}

	return &SQLRepository{db: db, dialect: dialect}, nil
}

// Close закрывает соединение с БД
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// Ping проверяет доступность БД
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// rebind переводит плейсхолдеры $N в ?N для SQLite
func (r *SQLRepository) rebind(query string) string {
	if r.dialect != DialectSQLite {
		return query
	}
	return placeholderRe.ReplaceAllString(query, "?$1")
}

// EnsureSchema создает таблицы архива, если их нет
func (r *SQLRepository) EnsureSchema(ctx context.Context) error {
	idColumn, jsonType, tsType := "BIGSERIAL PRIMARY KEY", "JSONB", "TIMESTAMPTZ"
	if r.dialect == DialectSQLite {
		idColumn, jsonType, tsType = "INTEGER PRIMARY KEY AUTOINCREMENT", "TEXT", "DATETIME"
	}

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			started_at %[2]s NOT NULL,
			stopped_at %[2]s,
			duration_sec INTEGER NOT NULL DEFAULT 0,
			total_samples BIGINT NOT NULL DEFAULT 0,
			metadata %[1]s
		)`, jsonType, tsType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS session_summaries (
			session_id TEXT PRIMARY KEY REFERENCES sessions(id) ON DELETE CASCADE,
			duration_sec INTEGER NOT NULL,
			figo TEXT,
			baseline_bpm DOUBLE PRECISION,
			stv_all DOUBLE PRECISION,
			summary %[1]s NOT NULL,
			created_at %[2]s NOT NULL
		)`, jsonType, tsType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS session_events (
			id %[1]s,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			event_type TEXT NOT NULL,
			start_sec INTEGER NOT NULL,
			end_sec INTEGER NOT NULL,
			duration INTEGER NOT NULL,
			amplitude DOUBLE PRECISION NOT NULL,
			decel_type TEXT,
			severity TEXT,
			created_at %[2]s NOT NULL
		)`, idColumn, tsType),
		`CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events (session_id, start_sec)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// ===== Управление сессиями =====

func (r *SQLRepository) CreateSession(ctx context.Context, session *Session) error {
	metadataJSON, err := json.Marshal(session.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO sessions (id, status, started_at, stopped_at, duration_sec, total_samples, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		session.ID,
		string(session.Status),
		session.StartedAt,
		session.StoppedAt,
		session.DurationSec,
		session.TotalSamples,
		string(metadataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

func (r *SQLRepository) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	query := `
		SELECT id, status, started_at, stopped_at, duration_sec, total_samples, metadata
		FROM sessions
		WHERE id = $1
	`

	session, err := scanSession(r.db.QueryRowContext(ctx, r.rebind(query), sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

func (r *SQLRepository) UpdateSession(ctx context.Context, session *Session) error {
	metadataJSON, err := json.Marshal(session.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		UPDATE sessions
		SET status = $2, stopped_at = $3, duration_sec = $4, total_samples = $5, metadata = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		session.ID,
		string(session.Status),
		session.StoppedAt,
		session.DurationSec,
		session.TotalSamples,
		string(metadataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, session.ID)
	}

	return nil
}

func (r *SQLRepository) ListSessions(ctx context.Context, limit, offset int) ([]*Session, error) {
	query := `
		SELECT id, status, started_at, stopped_at, duration_sec, total_samples, metadata
		FROM sessions
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

func (r *SQLRepository) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Каскад через FK в SQLite выключен по умолчанию, удаляем явно
	queries := []string{
		"DELETE FROM session_events WHERE session_id = $1",
		"DELETE FROM session_summaries WHERE session_id = $1",
		"DELETE FROM sessions WHERE id = $1",
	}

	for _, query := range queries {
		if _, err := tx.ExecContext(ctx, r.rebind(query), sessionID); err != nil {
			return fmt.Errorf("failed to delete session data: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*Session, error) {
	var session Session
	var status string
	var metadataJSON []byte

	err := row.Scan(
		&session.ID,
		&status,
		&session.StartedAt,
		&session.StoppedAt,
		&session.DurationSec,
		&session.TotalSamples,
		&metadataJSON,
	)
	if err != nil {
		return nil, err
	}
	session.Status = SessionStatus(status)

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &session.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &session, nil
}

// ===== Итоги =====

func (r *SQLRepository) SaveSummary(ctx context.Context, summary *pipeline.Summary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	query := `
		INSERT INTO session_summaries (session_id, duration_sec, figo, baseline_bpm, stv_all, summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id) DO UPDATE SET
			duration_sec = EXCLUDED.duration_sec,
			figo = EXCLUDED.figo,
			baseline_bpm = EXCLUDED.baseline_bpm,
			stv_all = EXCLUDED.stv_all,
			summary = EXCLUDED.summary,
			created_at = EXCLUDED.created_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		summary.SessionID,
		summary.DurationSec,
		summary.FIGO,
		summary.BaselineBPM,
		summary.STVAll,
		string(payload),
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}

	return nil
}

func (r *SQLRepository) GetSummary(ctx context.Context, sessionID string) (*pipeline.Summary, error) {
	query := `SELECT summary FROM session_summaries WHERE session_id = $1`

	var payload []byte
	if err := r.db.QueryRowContext(ctx, r.rebind(query), sessionID).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no summary for %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	var summary pipeline.Summary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}

	return &summary, nil
}

// ===== События =====

func (r *SQLRepository) SaveEvents(ctx context.Context, events []SessionEvent) error {
	if len(events) == 0 {
		return nil
	}

	query := `
		INSERT INTO session_events (session_id, event_type, start_sec, end_sec, duration, amplitude, decel_type, severity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, r.rebind(query))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, event := range events {
		_, err := stmt.ExecContext(ctx,
			event.SessionID,
			string(event.Type),
			event.StartSec,
			event.EndSec,
			event.Duration,
			event.Amplitude,
			event.DecelType,
			event.Severity,
			event.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *SQLRepository) GetEvents(ctx context.Context, sessionID string) ([]SessionEvent, error) {
	query := `
		SELECT id, session_id, event_type, start_sec, end_sec, duration, amplitude, decel_type, severity, created_at
		FROM session_events
		WHERE session_id = $1
		ORDER BY start_sec ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	events := make([]SessionEvent, 0)
	for rows.Next() {
		var event SessionEvent
		var eventType string
		var decelType, severity sql.NullString

		err := rows.Scan(
			&event.ID,
			&event.SessionID,
			&eventType,
			&event.StartSec,
			&event.EndSec,
			&event.Duration,
			&event.Amplitude,
			&decelType,
			&severity,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		event.Type = EventType(eventType)
		event.DecelType = decelType.String
		event.Severity = severity.String
		events = append(events, event)
	}

	return events, rows.Err()
}
