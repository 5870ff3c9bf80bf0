package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/syllabot/syllabot/pkg/orchestrator"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsMaxMessage   = 16 * 1024
)

// streamRequest is one inbound websocket query.
type streamRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// streamResponse is the reply to one websocket query.
type streamResponse struct {
	Answer    string      `json:"answer,omitempty"`
	Sources   interface{} `json:"sources,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// handleStream serves an interactive query stream: each JSON message with a
// query gets one JSON reply on the same connection.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.originAllowed(origin)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsMaxMessage)
	ip := clientIP(r)
	s.logger.Info().Str("ip", ip).Msg("Stream connected")

	for {
		var req streamRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Str("ip", ip).Msg("Stream read failed")
			}
			return
		}

		if req.Query == "" {
			s.writeStream(conn, streamResponse{Error: "query is required"})
			continue
		}
		if s.rateLimiter != nil && !s.rateLimiter.Allow(ip) {
			s.writeStream(conn, streamResponse{Error: "rate limit exceeded"})
			continue
		}

		sessionID := req.SessionID
		if sessionID == "" {
			id, err := s.rag.CreateSession()
			if err != nil {
				s.writeStream(conn, streamResponse{Error: "failed to create session"})
				continue
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
			s.logger.Error().Err(err).Str("session_id", sessionID).Msg("Stream query failed")
			s.writeStream(conn, streamResponse{SessionID: sessionID, Error: "failed to answer query"})
			continue
		}
		if s.metrics != nil && answer.Text == orchestrator.FallbackAnswer {
			s.metrics.FallbackAnswers.Inc()
		}

		s.writeStream(conn, streamResponse{
			Answer:    answer.Text,
			Sources:   answer.Sources,
			SessionID: sessionID,
		})
	}
}

func (s *Server) writeStream(conn *websocket.Conn, resp streamResponse) {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(resp); err != nil {
		s.logger.Warn().Err(err).Msg("Stream write failed")
	}
}
