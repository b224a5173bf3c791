package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt is slow on purpose. Both helpers run it on their own goroutine so a
// cancelled request stops waiting for it.

func hashPassword(ctx context.Context, password string, cost int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	type result struct {
		hash []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
		ch <- result{h, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return string(r.hash), r.err
	}
}

// checkPassword reports whether password matches hash. A mismatch is not an
// error.
func checkPassword(ctx context.Context, hash, password string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ch := make(chan error, 1)
	go func() {
		ch <- bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case err := <-ch:
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return err == nil, err
	}
}

func mustHashPassword(password string, cost int) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}

func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
