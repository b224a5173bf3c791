package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"blog/internal/apperr"
	"blog/internal/models"
)

// UserStore persists user records. It is the only writer of the users table.
type UserStore struct {
	conn
}

func NewUserStore(db *sql.DB, timeout time.Duration) *UserStore {
	return &UserStore{conn{db: db, timeout: timeout}}
}

const userColumns = `id, email, username, password_hash, name, avatar, created_at, updated_at`

// Create inserts u. A uniqueness violation on email or username is returned
// as a conflict so a lost race with a concurrent registration still reads
// as one.
func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `INSERT INTO users(`+userColumns+`) VALUES(?,?,?,?,?,?,?,?)`,
		u.ID, strings.ToLower(u.Email), u.Username, u.PasswordHash, u.Name, u.Avatar,
		u.CreatedAt.UnixNano(), u.UpdatedAt.UnixNano())
	if isUniqueViolation(err) {
		return apperr.Conflict("email or username already in use")
	}
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (s *UserStore) ExistsEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE email = ? COLLATE NOCASE OR username = ?`,
		email, username).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking user uniqueness: %w", err)
	}
	return n > 0, nil
}

// ByEmail returns (nil, nil) when no user has that email.
func (s *UserStore) ByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.one(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, strings.ToLower(email))
}

// ByID returns (nil, nil) when no user has that id.
func (s *UserStore) ByID(ctx context.Context, id string) (*models.User, error) {
	return s.one(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (s *UserStore) Count(ctx context.Context) (int, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

func (s *UserStore) one(ctx context.Context, query string, args ...any) (*models.User, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var u models.User
	var created, updated int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Name, &u.Avatar, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	u.CreatedAt = fromUnixNano(created)
	u.UpdatedAt = fromUnixNano(updated)
	return &u, nil
}
