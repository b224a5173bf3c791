package handlers

import (
	"fmt"
	"net/http"
	"time"
)

type healthReport struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment"`
}

func (h *Handler) healthStatus() healthReport {
	return healthReport{Status: "ok", Timestamp: h.now().UTC(), Environment: h.status.Environment}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.healthStatus())
}

type dbStatus struct {
	Connected      bool   `json:"connected"`
	Users          int    `json:"users"`
	Posts          int    `json:"posts"`
	SessionBackend string `json:"sessionBackend"`
	DatabaseURL    string `json:"databaseUrl"`
}

// handleDBStatus reports row counts. A failed count answers 503 with
// connected=false rather than an error envelope.
func (h *Handler) handleDBStatus(w http.ResponseWriter, r *http.Request) {
	st := dbStatus{SessionBackend: h.status.SessionBackend, DatabaseURL: h.status.DatabaseURL}

	users, err := h.status.Users.Count(r.Context())
	if err == nil {
		st.Users = users
		st.Posts, err = h.status.Posts.Count(r.Context())
	}
	if err != nil {
		h.logger.Error("database status", "err", fmt.Errorf("counting rows: %w", err))
		writeJSON(w, http.StatusServiceUnavailable, st)
		return
	}
	st.Connected = true
	writeJSON(w, http.StatusOK, st)
}
