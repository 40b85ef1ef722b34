package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Krimson/ctg-stream/monitor/internal/batch"
	"github.com/Krimson/ctg-stream/monitor/internal/config"
	"github.com/Krimson/ctg-stream/monitor/internal/model"
	"github.com/Krimson/ctg-stream/monitor/internal/pipeline"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const archiveTimeout = 10 * time.Second

// Manager управляет сессиями мониторинга (Application Layer).
// Реализует batch.Sink: батчи маршрутизируются в исполнителей сессий.
type Manager struct {
	cfg        *config.Config
	cache      CacheStore
	repository Repository
	logger     *zap.Logger

	mu         sync.RWMutex
	runners    map[string]*Runner
	sessions   map[string]Session
	publishers []Publisher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ batch.Sink = (*Manager)(nil)

// NewManager создает новый менеджер сессий
func NewManager(cfg *config.Config, cache CacheStore, repository Repository, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:        cfg,
		cache:      cache,
		repository: repository,
		logger:     logger,
		runners:    make(map[string]*Runner),
		sessions:   make(map[string]Session),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// AddPublisher подписывает получателя на снимки всех новых сессий
func (m *Manager) AddPublisher(p Publisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishers = append(m.publishers, p)
}

// Start запускает остановку простаивающих сессий
func (m *Manager) Start() {
	if m.cfg.SessionIdleTimeout <= 0 {
		return
	}
	period := m.cfg.SessionIdleTimeout / 4
	if period < time.Second {
		period = time.Second
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.stopIdle(time.Now())
			case <-m.ctx.Done():
				return
			}
		}
	}()
}

// Shutdown финализирует все активные сессии и дожидается архивации
func (m *Manager) Shutdown() {
	m.cancel()
	m.wg.Wait()
	m.logger.Info("session manager stopped")
}

// CreateSession создает новую сессию и запускает ее конвейер
func (m *Manager) CreateSession(ctx context.Context, req *CreateSessionRequest) (*Session, error) {
	session := Session{
		ID:        uuid.New().String(),
		Status:    SessionStatusActive,
		StartedAt: time.Now(),
		Metadata: Metadata{
			PatientID:   req.PatientID,
			DoctorID:    req.DoctorID,
			FacilityID:  req.FacilityID,
			Notes:       req.Notes,
			CustomData:  req.CustomData,
			CreatedFrom: req.CreatedFrom,
		},
	}

	if err := m.register(ctx, session); err != nil {
		return nil, err
	}

	m.logger.Info("session created", zap.String("session_id", session.ID))
	return &session, nil
}

// Consume передает батч исполнителю сессии, создавая сессию при первых данных
func (m *Manager) Consume(ctx context.Context, b batch.Batch) error {
	runner, err := m.getOrCreateRunner(ctx, b.SessionID)
	if err != nil {
		return err
	}
	return runner.Push(b.Samples)
}

// GetSession получает сессию по ID: память, затем кэш, затем архив
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[sessionID]
	runner := m.runners[sessionID]
	m.mu.RUnlock()

	if ok {
		if runner != nil {
			if snap := runner.Snapshot(); snap != nil {
				session.DurationSec = snap.TimeSec
			}
			session.TotalSamples = runner.TotalSamples()
		}
		return &session, nil
	}

	if found, err := m.cache.GetSession(ctx, sessionID); err == nil {
		return found, nil
	}

	found, err := m.repository.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return found, nil
}

// ListSessions возвращает список сессий из архива
func (m *Manager) ListSessions(ctx context.Context, limit, offset int) ([]*Session, error) {
	return m.repository.ListSessions(ctx, limit, offset)
}

// StopSession завершает поток сессии, финализирует ее и возвращает итоги
func (m *Manager) StopSession(ctx context.Context, sessionID string) (*pipeline.Summary, error) {
	m.mu.RLock()
	runner := m.runners[sessionID]
	m.mu.RUnlock()

	if runner == nil {
		if _, err := m.GetSession(ctx, sessionID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrSessionNotActive, sessionID)
	}

	sum := runner.Stop()
	return &sum, nil
}

// DeleteSession останавливает сессию (если активна) и удаляет ее данные
func (m *Manager) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.RLock()
	runner := m.runners[sessionID]
	m.mu.RUnlock()
	if runner != nil {
		runner.Stop()
	}

	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if err := m.cache.DeleteSession(ctx, sessionID); err != nil {
		m.logger.Warn("failed to delete session from cache", zap.String("session_id", sessionID), zap.Error(err))
	}
	if err := m.repository.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session from archive: %w", err)
	}

	m.logger.Info("session deleted", zap.String("session_id", sessionID))
	return nil
}

// Snapshot последний снимок сессии
func (m *Manager) Snapshot(ctx context.Context, sessionID string) (*pipeline.Snapshot, error) {
	if runner := m.runner(sessionID); runner != nil {
		if snap := runner.Snapshot(); snap != nil {
			return snap, nil
		}
	}
	return m.cache.GetSnapshot(ctx, sessionID)
}

// Notifications уведомления сессии начиная с секунды sinceSec
func (m *Manager) Notifications(ctx context.Context, sessionID string, sinceSec int) ([]pipeline.Notification, error) {
	if runner := m.runner(sessionID); runner != nil {
		snap := runner.Snapshot()
		if snap == nil {
			return []pipeline.Notification{}, nil
		}
		return flattenNotifications(snap.Notifications, sinceSec), nil
	}
	if _, err := m.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return m.cache.GetNotifications(ctx, sessionID, sinceSec)
}

// Summary итоги завершенной сессии
func (m *Manager) Summary(ctx context.Context, sessionID string) (*pipeline.Summary, error) {
	if runner := m.runner(sessionID); runner != nil {
		if sum := runner.Summary(); sum != nil {
			return sum, nil
		}
		return nil, fmt.Errorf("%w: summary of %s is not ready", ErrSessionNotFound, sessionID)
	}
	return m.repository.GetSummary(ctx, sessionID)
}

// Events закрытые события сессии: живые для активной, архивные для завершенной
func (m *Manager) Events(ctx context.Context, sessionID string) ([]SessionEvent, error) {
	if runner := m.runner(sessionID); runner != nil {
		snap := runner.Snapshot()
		if snap == nil {
			return []SessionEvent{}, nil
		}
		return ConvertEvents(sessionID, snap.Events), nil
	}
	return m.repository.GetEvents(ctx, sessionID)
}

// IsSessionActive проверяет, идет ли поток сессии
func (m *Manager) IsSessionActive(sessionID string) bool {
	return m.runner(sessionID) != nil
}

// ActiveCount число активных сессий
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runners)
}

func (m *Manager) runner(sessionID string) *Runner {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runners[sessionID]
}

// getOrCreateRunner используется для автоматического создания сессий
// при получении данных от устройств
func (m *Manager) getOrCreateRunner(ctx context.Context, sessionID string) (*Runner, error) {
	if runner := m.runner(sessionID); runner != nil {
		return runner, nil
	}

	if existing, err := m.GetSession(ctx, sessionID); err == nil && existing.Status != SessionStatusActive {
		return nil, fmt.Errorf("%w: %s (status: %s)", ErrSessionNotActive, sessionID, existing.Status)
	}

	m.logger.Info("auto-creating session from incoming data", zap.String("session_id", sessionID))
	session := Session{
		ID:        sessionID,
		Status:    SessionStatusActive,
		StartedAt: time.Now(),
		Metadata: Metadata{
			CreatedFrom: "auto-created",
			Notes:       "Automatically created from device/emulator data",
		},
	}
	if err := m.register(ctx, session); err != nil {
		return nil, err
	}
	if runner := m.runner(sessionID); runner != nil {
		return runner, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrSessionNotActive, sessionID)
}

// register сохраняет сессию и запускает исполнителя. Повторная регистрация
// уже активной сессии ничего не делает.
func (m *Manager) register(ctx context.Context, session Session) error {
	m.mu.Lock()
	if _, exists := m.runners[session.ID]; exists {
		m.mu.Unlock()
		return nil
	}
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		return fmt.Errorf("session manager is shut down")
	}

	logger := m.logger.With(zap.String("session_id", session.ID))
	pipe := pipeline.New(session.ID, m.cfg.Pipeline, m.loadBundle(logger), logger)
	publishers := append([]Publisher{PublisherFunc(m.cacheSnapshot)}, m.publishers...)
	runner := NewRunner(pipe, m.cfg.TickInterval, publishers, m.archive, logger)

	m.runners[session.ID] = runner
	m.sessions[session.ID] = session
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		runner.Run(m.ctx)
	}()

	if err := m.cache.SetSession(ctx, &session); err != nil {
		m.logger.Warn("failed to save session to cache", zap.String("session_id", session.ID), zap.Error(err))
	}
	if err := m.repository.CreateSession(ctx, &session); err != nil {
		m.logger.Warn("failed to save session to archive", zap.String("session_id", session.ID), zap.Error(err))
	}
	return nil
}

// loadBundle загружает модели для новой сессии; без манифеста стадия моделей не работает
func (m *Manager) loadBundle(logger *zap.Logger) *model.Bundle {
	if m.cfg.ModelManifest == "" {
		return nil
	}
	bundle, err := model.LoadBundle(m.cfg.ModelManifest)
	if err != nil {
		logger.Warn("model bundle unavailable", zap.String("manifest", m.cfg.ModelManifest), zap.Error(err))
		return nil
	}
	return bundle
}

// cacheSnapshot публикует снимок и новые уведомления в кэш
func (m *Manager) cacheSnapshot(snap pipeline.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	if err := m.cache.SetSnapshot(ctx, &snap); err != nil {
		m.logger.Warn("failed to cache snapshot", zap.String("session_id", snap.SessionID), zap.Error(err))
	}
	if len(snap.NewNotifications) > 0 {
		if err := m.cache.AppendNotifications(ctx, snap.SessionID, snap.NewNotifications); err != nil {
			m.logger.Warn("failed to cache notifications", zap.String("session_id", snap.SessionID), zap.Error(err))
		}
	}
}

// archive сохраняет итоги и закрытые события финализированной сессии
func (m *Manager) archive(sum pipeline.Summary, events pipeline.Events) {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	id := sum.SessionID
	logger := m.logger.With(zap.String("session_id", id))

	m.mu.Lock()
	runner := m.runners[id]
	session := m.sessions[id]
	delete(m.runners, id)
	delete(m.sessions, id)
	m.mu.Unlock()

	now := time.Now()
	session.ID = id
	session.Status = SessionStatusStopped
	session.StoppedAt = &now
	session.DurationSec = sum.DurationSec
	if runner != nil {
		session.TotalSamples = runner.TotalSamples()
	}

	if err := m.cache.SetSession(ctx, &session); err != nil {
		logger.Warn("failed to update session in cache", zap.Error(err))
	}
	if m.cfg.SessionDataTTLSeconds > 0 {
		if err := m.cache.SetSessionTTL(ctx, id, m.cfg.SessionDataTTLSeconds); err != nil {
			logger.Warn("failed to set session ttl", zap.Error(err))
		}
	}

	if err := m.repository.UpdateSession(ctx, &session); err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			logger.Warn("failed to update session in archive", zap.Error(err))
		} else if err := m.repository.CreateSession(ctx, &session); err != nil {
			logger.Warn("failed to create session in archive", zap.Error(err))
		}
	}
	if err := m.repository.SaveSummary(ctx, &sum); err != nil {
		logger.Error("failed to archive summary", zap.Error(err))
	}
	if err := m.repository.SaveEvents(ctx, ConvertEvents(id, events)); err != nil {
		logger.Error("failed to archive events", zap.Error(err))
	}

	logger.Info("session archived", zap.Int("duration_sec", sum.DurationSec), zap.Int64("samples", session.TotalSamples))
}

// stopIdle останавливает сессии без данных дольше SessionIdleTimeout
func (m *Manager) stopIdle(now time.Time) {
	m.mu.RLock()
	var idle []*Runner
	for _, r := range m.runners {
		if now.Sub(r.IdleSince()) >= m.cfg.SessionIdleTimeout {
			idle = append(idle, r)
		}
	}
	m.mu.RUnlock()

	for _, r := range idle {
		m.logger.Info("stopping idle session", zap.String("session_id", r.ID()))
		r.Stop()
	}
}

func flattenNotifications(bySecond map[int][]pipeline.Notification, sinceSec int) []pipeline.Notification {
	secs := make([]int, 0, len(bySecond))
	for sec := range bySecond {
		if sec >= sinceSec {
			secs = append(secs, sec)
		}
	}
	sort.Ints(secs)

	out := make([]pipeline.Notification, 0)
	for _, sec := range secs {
		out = append(out, bySecond[sec]...)
	}
	return out
}
