package api

import (
	"net/http"
	"time"

	"github.com/nodeforge/cove/pkg/store"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type readyResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Message string            `json:"message,omitempty"`
}

// handleHealth is a liveness probe: 200 if the process can answer at all.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Timestamp: time.Now()})
}

// handleReady is a readiness probe: checks the store is reachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	ready := true
	var message string

	if _, err := store.ListNodes(s.kv); err != nil {
		checks["store"] = "error: " + err.Error()
		ready = false
		message = "store not accessible"
	} else {
		checks["store"] = "ok"
	}

	status := http.StatusOK
	resp := readyResponse{Status: "ready", Checks: checks}
	if !ready {
		status = http.StatusServiceUnavailable
		resp.Status = "not ready"
		resp.Message = message
	}
	writeJSON(w, status, resp)
}
