// Package redisstore keeps sessions in Redis. It is selected when REDIS_URL
// is configured; otherwise sessions live in the SQLite sessions table.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"blog/internal/models"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every failure talking to Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

type record struct {
	UserID    string `json:"uid"`
	ExpiresAt int64  `json:"exp"`
	CreatedAt int64  `json:"iat"`
}

// SessionStore keeps each session under <prefix>:<id> with a TTL equal to its
// remaining lifetime, and indexes session ids per user in <prefix>:user:<uid>.
type SessionStore struct {
	redis   redis.UniversalClient
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

func NewSessionStore(rdb redis.UniversalClient, prefix string, timeout time.Duration) *SessionStore {
	if prefix == "" {
		prefix = "sess"
	}
	return &SessionStore{redis: rdb, prefix: prefix, timeout: timeout, now: time.Now}
}

// Dial parses a redis:// URL and pings the server.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	return rdb, nil
}

func (s *SessionStore) key(id string) string { return s.prefix + ":" + id }

func (s *SessionStore) userKey(userID string) string { return s.prefix + ":user:" + userID }

func (s *SessionStore) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, s.timeout)
}

func (s *SessionStore) Create(ctx context.Context, sess *models.Session) error {
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(record{
		UserID:    sess.UserID,
		ExpiresAt: sess.ExpiresAt.UnixNano(),
		CreatedAt: sess.CreatedAt.UnixNano(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := s.ctx(ctx)
	defer cancel()

	userKey := s.userKey(sess.UserID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.ID), data, ttl)
		pipe.SAdd(ctx, userKey, sess.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	return nil
}

// Get returns (nil, nil) for unknown and expired sessions alike.
func (s *SessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	sess := &models.Session{
		ID:        id,
		UserID:    rec.UserID,
		ExpiresAt: time.Unix(0, rec.ExpiresAt).UTC(),
		CreatedAt: time.Unix(0, rec.CreatedAt).UTC(),
	}
	if sess.Expired(s.now()) {
		return nil, nil
	}
	return sess, nil
}

// Delete reports whether an active session with id existed.
func (s *SessionStore) Delete(ctx context.Context, id string) (bool, error) {
	sess, err := s.Get(ctx, id)
	if err != nil || sess == nil {
		return false, err
	}

	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var del *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.key(id))
		pipe.SRem(ctx, s.userKey(sess.UserID), id)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	return del.Val() > 0, nil
}

// DeleteExpired trims per-user index entries whose session keys Redis has
// already expired. The sessions themselves expire on their own.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var removed int64
	iter := s.redis.Scan(ctx, 0, s.prefix+":user:*", 100).Iterator()
	for iter.Next(ctx) {
		userKey := iter.Val()
		ids, err := s.redis.SMembers(ctx, userKey).Result()
		if err != nil {
			return removed, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
		}
		for _, id := range ids {
			n, err := s.redis.Exists(ctx, s.key(id)).Result()
			if err != nil {
				return removed, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
			}
			if n > 0 {
				continue
			}
			if err := s.redis.SRem(ctx, userKey, id).Err(); err != nil {
				return removed, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
			}
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	return removed, nil
}

// activeSessionIDs lists the session ids indexed for a user, including ones
// not yet trimmed by DeleteExpired.
func (s *SessionStore) activeSessionIDs(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	return ids, nil
}
