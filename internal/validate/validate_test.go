package validate

import (
	"errors"
	"strings"
	"testing"

	"blog/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3"`
	Limit    *int   `json:"limit,omitempty" validate:"omitempty,min=1,max=100"`
}

func TestStruct_Valid(t *testing.T) {
	limit := 10
	assert.NoError(t, Struct(signup{Email: "a@x.com", Username: "alice", Limit: &limit}))
	assert.NoError(t, Struct(signup{Email: "a@x.com", Username: "alice"}))
}

func TestStruct_FieldErrors(t *testing.T) {
	limit := 101
	err := Struct(signup{Email: "not-an-email", Username: "al", Limit: &limit})
	require.Error(t, err)

	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, apperr.KindValidation, ae.Kind)

	got := map[string]string{}
	for _, fe := range ae.FieldErrors {
		got[fe.Field] = fe.Message
	}
	assert.Equal(t, map[string]string{
		"email":    "must be a valid email address",
		"username": "must be at least 3 characters",
		"limit":    "must be at most 100",
	}, got)
}

type secret struct {
	Password string `json:"password" validate:"required,maxbytes=8"`
}

func TestStruct_MaxBytesCountsBytes(t *testing.T) {
	assert.NoError(t, Struct(secret{Password: strings.Repeat("é", 4)}))

	err := Struct(secret{Password: strings.Repeat("é", 5)})
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae), "got %v", err)
	require.Len(t, ae.FieldErrors, 1)
	assert.Equal(t, apperr.FieldError{Field: "password", Message: "must be at most 8 bytes"}, ae.FieldErrors[0])
}
