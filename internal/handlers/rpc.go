// Package handlers exposes the auth and posts services as batched RPC
// procedures over HTTP.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"blog/internal/apperr"
	"blog/internal/auth"
	"blog/internal/posts"
	"blog/internal/validate"
)

const (
	maxBodyBytes    = 1 << 20
	internalMessage = "internal server error"
)

// Counter is satisfied by the user and post stores.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Status describes the deployment for the health and db status endpoints.
type Status struct {
	Environment    string
	SessionBackend string
	DatabaseURL    string
	Users          Counter
	Posts          Counter
}

type Handler struct {
	auth    *auth.Service
	posts   *posts.Service
	cookies *auth.CookieCodec
	logger  *slog.Logger
	status  Status
	procs   map[string]procedure
	now     func() time.Time
}

func New(authSvc *auth.Service, postSvc *posts.Service, cookies *auth.CookieCodec, logger *slog.Logger, status Status) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		auth:    authSvc,
		posts:   postSvc,
		cookies: cookies,
		logger:  logger,
		status:  status,
		now:     time.Now,
	}
	h.procs = h.procedures()
	return h
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/rpc", h.handleRPC)
	mux.HandleFunc("GET /api/rpc/{method}", h.handleQuery)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /api/db/status", h.handleDBStatus)
}

type rpcCall struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method"`
	Input  json.RawMessage `json:"input,omitempty"`
}

type rpcError struct {
	Code        string              `json:"code"`
	Message     string              `json:"message"`
	FieldErrors []apperr.FieldError `json:"fieldErrors,omitempty"`
}

type rpcResponse struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Result any             `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

// handleRPC accepts a single call object or an array of calls. A batch runs
// its calls in order against one request context and always answers 200; a
// single call answers with the status of its error.
func (h *Handler) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, r, apperr.Parse("request body too large or unreadable"))
		return
	}

	trimmed := bytes.TrimSpace(body)
	batch := len(trimmed) > 0 && trimmed[0] == '['

	var calls []rpcCall
	if batch {
		err = json.Unmarshal(trimmed, &calls)
	} else {
		var c rpcCall
		err = json.Unmarshal(trimmed, &c)
		calls = []rpcCall{c}
	}
	if err != nil {
		h.writeError(w, r, apperr.Parse("malformed request body"))
		return
	}
	if len(calls) == 0 {
		h.writeError(w, r, apperr.Parse("empty batch"))
		return
	}

	rc, err := h.newRequestContext(r.Context(), w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	responses := make([]rpcResponse, len(calls))
	status := http.StatusOK
	for i, c := range calls {
		result, err := h.dispatch(r.Context(), rc, c.Method, c.Input, false)
		if err != nil {
			status = apperr.KindOf(err).HTTPStatus()
		}
		responses[i] = h.response(r, c, result, err)
	}

	if batch {
		writeJSON(w, http.StatusOK, responses)
		return
	}
	writeJSON(w, status, responses[0])
}

// handleQuery serves query procedures over GET with the input JSON encoded in
// the "input" query parameter.
func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	method := r.PathValue("method")
	var input json.RawMessage
	if raw := r.URL.Query().Get("input"); raw != "" {
		input = json.RawMessage(raw)
	}

	rc, err := h.newRequestContext(r.Context(), w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.dispatch(r.Context(), rc, method, input, true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rpcResponse{Result: result})
}

func (h *Handler) dispatch(ctx context.Context, rc *RequestContext, method string, input json.RawMessage, viaGET bool) (any, error) {
	p, ok := h.procs[method]
	if !ok {
		return nil, apperr.NotFound("no procedure named " + method)
	}
	if viaGET && !p.query {
		return nil, apperr.MethodNotAllowed(method + " must be called with POST")
	}
	return p.call(ctx, rc, input)
}

func (h *Handler) response(r *http.Request, c rpcCall, result any, err error) rpcResponse {
	if err != nil {
		h.logIfInternal(r, c.Method, err)
		return rpcResponse{ID: c.ID, Error: errorBody(err)}
	}
	return rpcResponse{ID: c.ID, Result: result}
}

func (h *Handler) logIfInternal(r *http.Request, method string, err error) {
	if apperr.KindOf(err) != apperr.KindInternal {
		return
	}
	h.logger.Error("procedure failed",
		"method", method,
		"path", r.URL.Path,
		"err", err)
}

// errorBody maps err onto the wire shape. Internal errors keep their cause
// out of the message.
func errorBody(err error) *rpcError {
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind == apperr.KindInternal {
		return &rpcError{Code: apperr.KindInternal.Code(), Message: internalMessage}
	}
	return &rpcError{Code: ae.Kind.Code(), Message: ae.Message, FieldErrors: ae.FieldErrors}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	h.logIfInternal(r, r.PathValue("method"), err)
	writeJSON(w, apperr.KindOf(err).HTTPStatus(), rpcResponse{Error: errorBody(err)})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "err", err)
	}
}

// decodeInput decodes raw into T, rejecting unknown fields, then validates it.
// A missing input decodes as the zero value.
func decodeInput[T any](raw json.RawMessage) (T, error) {
	var in T
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&in); err != nil {
			return in, inputError(err)
		}
	}
	if err := validate.Struct(in); err != nil {
		return in, err
	}
	return in, nil
}

func inputError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "input"
		}
		return apperr.Validation("invalid input", apperr.FieldError{Field: field, Message: "must be of type " + typeErr.Type.String()})
	}
	if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return apperr.Validation("invalid input", apperr.FieldError{Field: strings.Trim(name, `"`), Message: "is not allowed"})
	}
	return apperr.Parse("malformed input")
}
