package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Krimson/ctg-stream/monitor/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepository(t *testing.T) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLRepository(db, DialectPostgres), mock
}

func TestSQLRepository_Rebind(t *testing.T) {
	pg := NewSQLRepository(nil, DialectPostgres)
	lite := NewSQLRepository(nil, DialectSQLite)

	query := "UPDATE sessions SET status = $2 WHERE id = $1 AND duration_sec > $10"
	assert.Equal(t, query, pg.rebind(query))
	assert.Equal(t, "UPDATE sessions SET status = ?2 WHERE id = ?1 AND duration_sec > ?10", lite.rebind(query))
}

func TestSQLRepository_CreateSessionPostgres(t *testing.T) {
	repo, mock := newMockRepository(t)
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
		WithArgs("s1", "ACTIVE", started, nil, 0, int64(0), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateSession(context.Background(), &Session{
		ID:        "s1",
		Status:    SessionStatusActive,
		StartedAt: started,
		Metadata:  Metadata{PatientID: "p-1"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepository_GetSessionNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM sessions")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepository_GetSessionPostgres(t *testing.T) {
	repo, mock := newMockRepository(t)
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	stopped := started.Add(20 * time.Minute)

	rows := sqlmock.NewRows([]string{"id", "status", "started_at", "stopped_at", "duration_sec", "total_samples", "metadata"}).
		AddRow("s1", "STOPPED", started, stopped, 1200, int64(6000), []byte(`{"patient_id":"p-1"}`))
	mock.ExpectQuery(regexp.QuoteMeta("FROM sessions")).WithArgs("s1").WillReturnRows(rows)

	session, err := repo.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, SessionStatusStopped, session.Status)
	require.NotNil(t, session.StoppedAt)
	assert.True(t, stopped.Equal(*session.StoppedAt))
	assert.Equal(t, 1200, session.DurationSec)
	assert.Equal(t, int64(6000), session.TotalSamples)
	assert.Equal(t, "p-1", session.Metadata.PatientID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepository_UpdateMissingSession(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions")).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateSession(context.Background(), &Session{ID: "missing", Status: SessionStatusStopped})
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepository_SaveSummaryPostgres(t *testing.T) {
	repo, mock := newMockRepository(t)
	figo := "Normal"
	baseline := 140.0
	sum := &pipeline.Summary{SessionID: "s1", DurationSec: 600, FIGO: &figo, BaselineBPM: &baseline}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO session_summaries")).
		WithArgs("s1", 600, "Normal", 140.0, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SaveSummary(context.Background(), sum))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepository_SaveEventsUsesTransaction(t *testing.T) {
	repo, mock := newMockRepository(t)
	events := []SessionEvent{
		{SessionID: "s1", Type: EventTypeAcceleration, StartSec: 201, EndSec: 220, Duration: 20, Amplitude: 30},
		{SessionID: "s1", Type: EventTypeDeceleration, StartSec: 336, EndSec: 368, Duration: 33, Amplitude: 25, DecelType: "late", Severity: "moderate"},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO session_events"))
	prep.ExpectExec().WithArgs("s1", "acceleration", 201, 220, 20, 30.0, "", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs("s1", "deceleration", 336, 368, 33, 25.0, "late", "moderate", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SaveEvents(context.Background(), events))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepository_SaveNoEvents(t *testing.T) {
	repo, mock := newMockRepository(t)

	require.NoError(t, repo.SaveEvents(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepository_DeleteSessionRollsBackOnError(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM session_events")).WithArgs("s1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM session_summaries")).WithArgs("s1").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.DeleteSession(context.Background(), "s1")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepository_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, err := OpenSQLRepository(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	defer repo.Close()
	require.NoError(t, repo.EnsureSchema(ctx))
	// Повторный вызов не падает
	require.NoError(t, repo.EnsureSchema(ctx))

	started := time.Now().Add(-time.Hour)
	for i, id := range []string{"old", "new"} {
		require.NoError(t, repo.CreateSession(ctx, &Session{
			ID:        id,
			Status:    SessionStatusActive,
			StartedAt: started.Add(time.Duration(i) * time.Minute),
			Metadata:  Metadata{CreatedFrom: "grpc"},
		}))
	}
	// Повторное создание игнорируется
	require.NoError(t, repo.CreateSession(ctx, &Session{ID: "old", Status: SessionStatusActive, StartedAt: started}))

	list, err := repo.ListSessions(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "grpc", list[1].Metadata.CreatedFrom)

	stoppedAt := time.Now()
	require.NoError(t, repo.UpdateSession(ctx, &Session{
		ID:           "new",
		Status:       SessionStatusStopped,
		StoppedAt:    &stoppedAt,
		DurationSec:  1800,
		TotalSamples: 9000,
	}))

	got, err := repo.GetSession(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, SessionStatusStopped, got.Status)
	assert.Equal(t, 1800, got.DurationSec)
	require.NotNil(t, got.StoppedAt)
	assert.WithinDuration(t, stoppedAt, *got.StoppedAt, time.Second)

	figo := "Suspicious"
	score := 7
	stv := 4.2
	require.NoError(t, repo.SaveSummary(ctx, &pipeline.Summary{SessionID: "new", DurationSec: 1800, FIGO: &figo, SavelyevaScore: &score}))
	require.NoError(t, repo.SaveSummary(ctx, &pipeline.Summary{SessionID: "new", DurationSec: 1800, FIGO: &figo, SavelyevaScore: &score, STVAll: &stv}))

	sum, err := repo.GetSummary(ctx, "new")
	require.NoError(t, err)
	require.NotNil(t, sum.STVAll)
	assert.InDelta(t, 4.2, *sum.STVAll, 1e-9)
	assert.Equal(t, 7, *sum.SavelyevaScore)

	events := ConvertEvents("new", pipeline.Events{
		Contractions:  []pipeline.Contraction{{Event: pipeline.Event{Start: 303, End: 363, Duration: 61, Amplitude: 50}}},
		Accelerations: []pipeline.Acceleration{{Event: pipeline.Event{Start: 201, End: 220, Duration: 20, Amplitude: 30}}},
	})
	require.NoError(t, repo.SaveEvents(ctx, events))

	stored, err := repo.GetEvents(ctx, "new")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, EventTypeAcceleration, stored[0].Type)
	assert.Equal(t, 201, stored[0].StartSec)
	assert.Equal(t, EventTypeContraction, stored[1].Type)
	assert.NotZero(t, stored[0].ID)

	require.NoError(t, repo.DeleteSession(ctx, "new"))
	_, err = repo.GetSession(ctx, "new")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = repo.GetSummary(ctx, "new")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	stored, err = repo.GetEvents(ctx, "new")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestSQLRepository_UnsupportedDriver(t *testing.T) {
	_, err := OpenSQLRepository(context.Background(), "mysql", "dsn")
	assert.Error(t, err)
}

func TestSessionMetadataJSON(t *testing.T) {
	data, err := json.Marshal(Metadata{PatientID: "p"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"patient_id":"p"}`, string(data))
}

func TestSQLRepository_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	require.NoError(t, NewSQLRepository(db, DialectPostgres).Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
