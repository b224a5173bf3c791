package handlers

import (
	"context"
	"net/http"

	"blog/internal/apperr"
	"blog/internal/auth"
	"blog/internal/models"
)

// Event is the request boundary: the incoming request and the means to set
// or clear the session cookie on the response.
type Event struct {
	Request *http.Request
	w       http.ResponseWriter
	cookies *auth.CookieCodec
}

func (e *Event) SetSession(sess *models.Session) error {
	return e.cookies.Set(e.w, sess)
}

func (e *Event) ClearSession() {
	e.cookies.Clear(e.w)
}

// RequestContext is built once per request and never mutated. User and
// Session are nil for anonymous callers.
type RequestContext struct {
	Event   *Event
	User    *models.PublicUser
	Session *models.Session
}

// AuthedContext is a RequestContext whose user is known to be present.
type AuthedContext struct {
	Event   *Event
	User    models.PublicUser
	Session models.Session
}

// newRequestContext resolves the session cookie. A cookie that does not map
// to an active session is cleared and the caller proceeds anonymously.
func (h *Handler) newRequestContext(ctx context.Context, w http.ResponseWriter, r *http.Request) (*RequestContext, error) {
	ev := &Event{Request: r, w: w, cookies: h.cookies}
	rc := &RequestContext{Event: ev}

	token, present := h.cookies.Token(r)
	if !present {
		return rc, nil
	}
	sess, user, err := h.auth.ResolveSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if user == nil {
		ev.ClearSession()
		return rc, nil
	}
	rc.User = user
	rc.Session = sess
	return rc, nil
}

// RequireUser lets a request through only when it carries a valid session.
func RequireUser(rc *RequestContext) (*AuthedContext, error) {
	if rc == nil || rc.User == nil || rc.Session == nil {
		return nil, apperr.Unauthorized("authentication required")
	}
	return &AuthedContext{Event: rc.Event, User: *rc.User, Session: *rc.Session}, nil
}
