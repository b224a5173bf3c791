package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"blog/internal/models"
)

// SessionStore keeps sessions in the sessions table.
type SessionStore struct {
	conn
	now func() time.Time
}

func NewSessionStore(db *sql.DB, timeout time.Duration) *SessionStore {
	return &SessionStore{conn: conn{db: db, timeout: timeout}, now: time.Now}
}

func (s *SessionStore) Create(ctx context.Context, sess *models.Session) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(id, user_id, expires_at, created_at) VALUES(?,?,?,?)`,
		sess.ID, sess.UserID, sess.ExpiresAt.UnixNano(), sess.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// Get returns (nil, nil) for unknown and expired sessions alike.
func (s *SessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var sess models.Session
	var expires, created int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, expires_at, created_at
		FROM sessions
		WHERE id = ? AND expires_at > ?`, id, s.now().UnixNano()).
		Scan(&sess.ID, &sess.UserID, &expires, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	sess.ExpiresAt = fromUnixNano(expires)
	sess.CreatedAt = fromUnixNano(created)
	return &sess, nil
}

// Delete reports whether an unexpired session with id existed.
func (s *SessionStore) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = ? AND expires_at > ?`, id, s.now().UnixNano())
	if err != nil {
		return false, fmt.Errorf("deleting session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting session: %w", err)
	}
	return n > 0, nil
}

func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, s.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("cleaning up expired sessions: %w", err)
	}
	return res.RowsAffected()
}
