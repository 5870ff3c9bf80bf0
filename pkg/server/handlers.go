package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/syllabot/syllabot/pkg/orchestrator"
)

// QueryRequest is the POST /api/query body.
type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// QueryResponse is the POST /api/query reply.
type QueryResponse struct {
	Answer    string      `json:"answer"`
	Sources   interface{} `json:"sources"`
	SessionID string      `json:"session_id"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown() {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	if !s.allowRequest(w, r) {
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		id, err := s.rag.CreateSession()
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to create session")
			s.writeError(w, http.StatusInternalServerError, "failed to create session")
			return
		}
		sessionID = id
		if s.metrics != nil {
			s.metrics.SessionsCreated.Inc()
		}
	}

	start := time.Now()
	answer, err := s.rag.Query(r.Context(), req.Query, sessionID)
	if s.metrics != nil {
		s.metrics.RecordQuery(err == nil, time.Since(start))
	}
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("Query failed")
		s.writeError(w, http.StatusInternalServerError, "failed to answer query")
		return
	}
	if s.metrics != nil && answer.Text == orchestrator.FallbackAnswer {
		s.metrics.FallbackAnswers.Inc()
	}

	s.logger.Info().
		Str("session_id", sessionID).
		Dur("elapsed", time.Since(start)).
		Int("sources", len(answer.Sources)).
		Msg("Query answered")

	s.writeJSON(w, http.StatusOK, QueryResponse{
		Answer:    answer.Text,
		Sources:   answer.Sources,
		SessionID: sessionID,
	})
}

func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	analytics, err := s.rag.Analytics()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load course analytics")
		s.writeError(w, http.StatusInternalServerError, "failed to load course analytics")
		return
	}

	if s.metrics != nil {
		s.metrics.CoursesIndexed.Set(float64(analytics.TotalCourses))
	}

	s.writeJSON(w, http.StatusOK, analytics)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, err := s.rag.CreateSession()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create session")
		s.writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	if s.metrics != nil {
		s.metrics.SessionsCreated.Inc()
	}

	s.writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	if err := s.rag.ClearSession(sessionID); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to clear session")
		s.writeError(w, http.StatusBadRequest, "failed to clear session")
		return
	}

	if s.metrics != nil {
		s.metrics.SessionsCleared.Inc()
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).Seconds(),
		"timestamp": time.Now().UnixMilli(),
	})
}

// allowRequest enforces the per-IP rate limit, answering 429 itself when
// the limit is hit.
func (s *Server) allowRequest(w http.ResponseWriter, r *http.Request) bool {
	if s.rateLimiter == nil {
		return true
	}

	ip := clientIP(r)
	if s.rateLimiter.Allow(ip) {
		return true
	}

	retryAfter := s.rateLimiter.RetryAfter(ip)
	s.logger.Warn().
		Str("ip", ip).
		Str("path", r.URL.Path).
		Int("retry_after", retryAfter).
		Msg("Rate limit exceeded")

	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
	return false
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
