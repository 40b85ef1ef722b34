package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Krimson/ctg-stream/monitor/internal/pipeline"
)

// MemoryStore хранит сессии в памяти процесса. Реализует CacheStore и Repository,
// используется без Redis/архива (ARCHIVE_DRIVER=none) и в тестах.
type MemoryStore struct {
	mu            sync.RWMutex
	sessions      map[string]Session
	snapshots     map[string]pipeline.Snapshot
	notifications map[string][]pipeline.Notification
	summaries     map[string]pipeline.Summary
	events        map[string][]SessionEvent
	nextEventID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:      make(map[string]Session),
		snapshots:     make(map[string]pipeline.Snapshot),
		notifications: make(map[string][]pipeline.Notification),
		summaries:     make(map[string]pipeline.Summary),
		events:        make(map[string][]SessionEvent),
	}
}

func (s *MemoryStore) CreateSession(ctx context.Context, session *Session) error {
	return s.SetSession(ctx, session)
}

func (s *MemoryStore) UpdateSession(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, session.ID)
	}
	s.sessions[session.ID] = *session
	return nil
}

func (s *MemoryStore) SetSession(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = *session
	return nil
}

func (s *MemoryStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return &session, nil
}

// ListSessions возвращает сессии от новых к старым
func (s *MemoryStore) ListSessions(ctx context.Context, limit, offset int) ([]*Session, error) {
	s.mu.RLock()
	list := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		session := session
		list = append(list, &session)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].StartedAt.After(list[j].StartedAt) })

	if offset >= len(list) {
		return []*Session{}, nil
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list, nil
}

func (s *MemoryStore) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	delete(s.snapshots, sessionID)
	delete(s.notifications, sessionID)
	delete(s.summaries, sessionID)
	delete(s.events, sessionID)
	return nil
}

func (s *MemoryStore) SetSnapshot(ctx context.Context, snap *pipeline.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.SessionID] = *snap
	return nil
}

func (s *MemoryStore) GetSnapshot(ctx context.Context, sessionID string) (*pipeline.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: no snapshot for %s", ErrSessionNotFound, sessionID)
	}
	return &snap, nil
}

func (s *MemoryStore) AppendNotifications(ctx context.Context, sessionID string, list []pipeline.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[sessionID] = append(s.notifications[sessionID], list...)
	return nil
}

func (s *MemoryStore) GetNotifications(ctx context.Context, sessionID string, sinceSec int) ([]pipeline.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]pipeline.Notification, 0)
	for _, n := range s.notifications[sessionID] {
		if n.Second >= sinceSec {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *MemoryStore) SetSessionTTL(ctx context.Context, sessionID string, ttl int) error {
	return nil
}

func (s *MemoryStore) SaveSummary(ctx context.Context, summary *pipeline.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[summary.SessionID] = *summary
	return nil
}

func (s *MemoryStore) GetSummary(ctx context.Context, sessionID string) (*pipeline.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.summaries[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: no summary for %s", ErrSessionNotFound, sessionID)
	}
	return &sum, nil
}

func (s *MemoryStore) SaveEvents(ctx context.Context, events []SessionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		s.nextEventID++
		e.ID = s.nextEventID
		s.events[e.SessionID] = append(s.events[e.SessionID], e)
	}
	return nil
}

func (s *MemoryStore) GetEvents(ctx context.Context, sessionID string) ([]SessionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]SessionEvent(nil), s.events[sessionID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartSec < out[j].StartSec })
	return out, nil
}
