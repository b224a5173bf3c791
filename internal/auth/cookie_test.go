package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"blog/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testSession(ttl time.Duration) *models.Session {
	now := time.Now()
	return &models.Session{ID: "tok-123", UserID: "u-1", CreatedAt: now, ExpiresAt: now.Add(ttl)}
}

func TestCookieCodec_SetAndToken(t *testing.T) {
	c := NewCookieCodec(testSecret, true)
	w := httptest.NewRecorder()
	require.NoError(t, c.Set(w, testSession(time.Hour)))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	ck := cookies[0]
	assert.Equal(t, SessionCookie, ck.Name)
	assert.True(t, ck.HttpOnly)
	assert.True(t, ck.Secure)
	assert.Empty(t, ck.Domain, "cookie is host-only")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(ck)
	token, present := c.Token(req)
	assert.True(t, present)
	assert.Equal(t, "tok-123", token)
}

func TestCookieCodec_Rejects(t *testing.T) {
	c := NewCookieCodec(testSecret, false)
	valid, err := c.Encode(testSession(time.Hour))
	require.NoError(t, err)
	expired, err := c.Encode(testSession(-time.Minute))
	require.NoError(t, err)
	otherKey, err := NewCookieCodec(strings.Repeat("z", 32), false).Encode(testSession(time.Hour))
	require.NoError(t, err)

	other := testSession(time.Hour)
	other.ID = "tok-456"
	forged, err := c.Encode(other)
	require.NoError(t, err)
	vp := strings.Split(valid, ".")
	fp := strings.Split(forged, ".")
	swapped := vp[0] + "." + fp[1] + "." + vp[2]

	tests := []struct {
		name  string
		value string
	}{
		{"payload swapped", swapped},
		{"expired", expired},
		{"wrong key", otherKey},
		{"garbage", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tt.value})
			token, present := c.Token(req)
			assert.True(t, present)
			assert.Empty(t, token)
		})
	}
}

func TestCookieCodec_NoCookie(t *testing.T) {
	c := NewCookieCodec(testSecret, false)
	token, present := c.Token(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, present)
	assert.Empty(t, token)
}

func TestCookieCodec_Clear(t *testing.T) {
	c := NewCookieCodec(testSecret, false)
	w := httptest.NewRecorder()
	c.Clear(w)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)
}
