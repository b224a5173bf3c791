// Package auth registers users, checks credentials and manages the session
// lifecycle. It knows nothing about HTTP except the cookie codec, which
// defines how a session token is carried.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"blog/internal/apperr"
	"blog/internal/models"
	"blog/internal/validate"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// errInvalidCredentials is shared by every login failure so callers cannot
// tell a missing account from a wrong password.
const errInvalidCredentials = "invalid email or password"

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	ExistsEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByID(ctx context.Context, id string) (*models.User, error)
}

// SessionStore is implemented by db.SessionStore and redisstore.SessionStore.
// Get must return (nil, nil) for missing and expired sessions.
type SessionStore interface {
	Create(ctx context.Context, sess *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type Config struct {
	SessionTTL time.Duration
	BcryptCost int
}

type Service struct {
	users     UserStore
	sessions  SessionStore
	ttl       time.Duration
	cost      int
	dummyHash string
	now       func() time.Time
}

func NewService(users UserStore, sessions SessionStore, cfg Config) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		users:     users,
		sessions:  sessions,
		ttl:       cfg.SessionTTL,
		cost:      cfg.BcryptCost,
		dummyHash: mustHashPassword("not-a-real-password", cfg.BcryptCost),
		now:       time.Now,
	}
}

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required,min=6,maxbytes=72"`
	Name     string `json:"name,omitempty" validate:"max=100"`
}

// Register creates an account and returns its public projection. The name
// defaults to the username.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.PublicUser, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	taken, err := s.users.ExistsEmailOrUsername(ctx, in.Email, in.Username)
	if err != nil {
		return nil, fmt.Errorf("registering user: %w", err)
	}
	if taken {
		return nil, apperr.Conflict("email or username already in use")
	}

	hash, err := hashPassword(ctx, in.Password, s.cost)
	if err != nil {
		return nil, apperr.Internal("internal server error", fmt.Errorf("hashing password: %w", err))
	}

	name := in.Name
	if name == "" {
		name = in.Username
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating user id: %w", err)
	}
	now := s.now().UTC()
	u := &models.User{
		ID:           id.String(),
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		Name:         name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("registering user: %w", err)
	}
	return u.Public(), nil
}

// Login checks the credentials and opens a new session. Concurrent logins
// each get their own session.
func (s *Service) Login(ctx context.Context, email, password string) (*models.Session, *models.PublicUser, error) {
	u, err := s.users.ByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, nil, fmt.Errorf("looking up user: %w", err)
	}

	hash := s.dummyHash
	if u != nil {
		hash = u.PasswordHash
	}
	ok, err := checkPassword(ctx, hash, password)
	if err != nil {
		return nil, nil, apperr.Internal("internal server error", fmt.Errorf("checking password: %w", err))
	}
	if u == nil || !ok {
		return nil, nil, apperr.Unauthorized(errInvalidCredentials)
	}

	token, err := generateToken()
	if err != nil {
		return nil, nil, fmt.Errorf("generating session token: %w", err)
	}
	now := s.now().UTC()
	sess := &models.Session{
		ID:        token,
		UserID:    u.ID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, nil, fmt.Errorf("creating session: %w", err)
	}
	return sess, u.Public(), nil
}

// ResolveSession maps a token to its session and user. An empty, unknown or
// expired token yields (nil, nil, nil); only store failures are errors.
func (s *Service) ResolveSession(ctx context.Context, token string) (*models.Session, *models.PublicUser, error) {
	if token == "" {
		return nil, nil, nil
	}
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving session: %w", err)
	}
	if sess == nil || sess.Expired(s.now()) {
		return nil, nil, nil
	}

	u, err := s.users.ByID(ctx, sess.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving session user: %w", err)
	}
	if u == nil {
		return nil, nil, nil
	}
	return sess, u.Public(), nil
}

// Logout destroys the session named by token.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return apperr.Unauthorized("not signed in")
	}
	existed, err := s.sessions.Delete(ctx, token)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if !existed {
		return apperr.Unauthorized("not signed in")
	}
	return nil
}

// PruneExpired removes expired sessions from the store.
func (s *Service) PruneExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx)
}

// RunPruner prunes expired sessions every interval until ctx is done.
func (s *Service) RunPruner(ctx context.Context, interval time.Duration, onError func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.PruneExpired(ctx); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}
