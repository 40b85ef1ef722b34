package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Krimson/ctg-stream/monitor/internal/pipeline"
	"github.com/redis/go-redis/v9"
)

// RedisStore реализует CacheStore для Redis (Infrastructure Layer)
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore создает новый экземпляр RedisStore
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
	}
}

// ===== Ключи Redis =====

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s:metadata", sessionID)
}

func snapshotKey(sessionID string) string {
	return fmt.Sprintf("session:%s:snapshot:current", sessionID)
}

func notificationsKey(sessionID string) string {
	return fmt.Sprintf("session:%s:notifications", sessionID)
}

func notificationSeqKey(sessionID string) string {
	return fmt.Sprintf("session:%s:notifications:seq", sessionID)
}

// ===== Управление сессиями =====

func (r *RedisStore) SetSession(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	return r.client.Set(ctx, sessionKey(session.ID), data, 0).Err()
}

func (r *RedisStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	data, err := r.client.Get(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

func (r *RedisStore) DeleteSession(ctx context.Context, sessionID string) error {
	// Удаляем все ключи, связанные с сессией
	pattern := fmt.Sprintf("session:%s:*", sessionID)

	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	pipe := r.client.Pipeline()

	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan keys: %w", err)
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) SetSessionTTL(ctx context.Context, sessionID string, ttl int) error {
	duration := time.Duration(ttl) * time.Second
	keys := []string{sessionKey(sessionID), snapshotKey(sessionID), notificationsKey(sessionID), notificationSeqKey(sessionID)}

	pipe := r.client.Pipeline()
	for _, key := range keys {
		pipe.Expire(ctx, key, duration)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// ===== Снимки =====

// SetSnapshot перезаписывает последний снимок. Полный журнал уведомлений
// хранится отдельным списком и в снимок не попадает.
func (r *RedisStore) SetSnapshot(ctx context.Context, snap *pipeline.Snapshot) error {
	stored := *snap
	stored.Notifications = nil

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	return r.client.Set(ctx, snapshotKey(snap.SessionID), data, 0).Err()
}

func (r *RedisStore) GetSnapshot(ctx context.Context, sessionID string) (*pipeline.Snapshot, error) {
	data, err := r.client.Get(ctx, snapshotKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: no snapshot for %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var snap pipeline.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return &snap, nil
}

// ===== Уведомления =====

// AppendNotifications добавляет уведомления в Sorted Set со счетом = секунда сессии.
// Член множества "<seq>|<json>": порядковый номер из счетчика сессии сохраняет
// одинаковые уведомления одной секунды и порядок их добавления.
func (r *RedisStore) AppendNotifications(ctx context.Context, sessionID string, list []pipeline.Notification) error {
	if len(list) == 0 {
		return nil
	}

	last, err := r.client.IncrBy(ctx, notificationSeqKey(sessionID), int64(len(list))).Result()
	if err != nil {
		return fmt.Errorf("failed to reserve notification sequence: %w", err)
	}
	seq := last - int64(len(list))

	key := notificationsKey(sessionID)
	pipe := r.client.Pipeline()

	for _, n := range list {
		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("failed to marshal notification: %w", err)
		}
		seq++
		member := fmt.Sprintf("%020d|%s", seq, data)
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(n.Second), Member: member})
	}

	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) GetNotifications(ctx context.Context, sessionID string, sinceSec int) ([]pipeline.Notification, error) {
	data, err := r.client.ZRangeByScore(ctx, notificationsKey(sessionID), &redis.ZRangeBy{
		Min: strconv.Itoa(sinceSec),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}

	list := make([]pipeline.Notification, 0, len(data))
	for _, item := range data {
		if _, payload, ok := strings.Cut(item, "|"); ok {
			item = payload
		}
		var n pipeline.Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			continue // Пропускаем поврежденные записи
		}
		list = append(list, n)
	}

	return list, nil
}
