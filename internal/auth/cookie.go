package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"blog/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const SessionCookie = "blog_session"

// CookieCodec carries session tokens in a host-only, HttpOnly cookie. The
// token is wrapped in an HS256 JWT so a forged or truncated cookie is
// rejected before any store lookup.
type CookieCodec struct {
	secret []byte
	secure bool
}

func NewCookieCodec(secret string, secure bool) *CookieCodec {
	return &CookieCodec{secret: []byte(secret), secure: secure}
}

// Set writes the cookie for sess.
func (c *CookieCodec) Set(w http.ResponseWriter, sess *models.Session) error {
	value, err := c.Encode(sess)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})
	return nil
}

// Clear overwrites the cookie with an empty, already expired one.
func (c *CookieCodec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}

// Token extracts the session token from r. present reports whether a
// non-empty cookie was sent at all, so callers can clear one that failed to
// decode.
func (c *CookieCodec) Token(r *http.Request) (token string, present bool) {
	ck, err := r.Cookie(SessionCookie)
	if err != nil || ck.Value == "" {
		return "", false
	}
	token, err = c.Decode(ck.Value)
	if err != nil {
		return "", true
	}
	return token, true
}

func (c *CookieCodec) Encode(sess *models.Session) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        sess.ID,
		IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing session cookie: %w", err)
	}
	return signed, nil
}

func (c *CookieCodec) Decode(value string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(value, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.ID == "" {
		return "", errors.New("invalid session cookie")
	}
	return claims.ID, nil
}
