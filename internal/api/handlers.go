package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/urlic/licenced/internal/audit"
)

const maxAuditLimit = 500

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	stats := s.stats.Stats()
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		LiveWorkers:   stats.LiveWorkers,
	})
}

// handleStatus handles GET /status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.stats.Stats()
	respondJSON(w, http.StatusOK, StatusResponse{
		LiveWorkers:  stats.LiveWorkers,
		TrackedIDs:   stats.TrackedIDs,
		Processed:    stats.Processed,
		ShuttingDown: stats.ShuttingDown,
	})
}

// handleAuditRecent handles GET /audit/recent?limit=N.
func (s *Server) handleAuditRecent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxAuditLimit {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer up to 500")
			return
		}
		limit = n
	}

	entries, err := s.trail.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to read audit trail", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read audit trail")
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

// handleRecentResponses handles GET /events/responses?since=<id>, replaying
// buffered response traffic. Intended for debugging, not as a delivery
// channel; the hub's ring buffer overwrites old entries.
func (s *Server) handleRecentResponses(w http.ResponseWriter, r *http.Request) {
	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
		since = n
	}
	respondJSON(w, http.StatusOK, s.events.SnapshotSince(s.responseTopic, since))
}

// respondJSON is a helper to write JSON responses
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, msg string) {
	respondJSON(w, statusCode, ErrorResponse{Error: msg})
}
