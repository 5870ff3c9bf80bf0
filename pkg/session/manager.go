// Package session persists per-conversation exchange history as JSONL
// files, one file per session, with a bounded window served back to the
// orchestrator.
package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// DefaultMaxHistory is the number of past exchanges kept visible per
// session.
const DefaultMaxHistory = 2

// Exchange is one completed user query and its answer.
type Exchange struct {
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// Manager manages conversation persistence using JSONL format.
type Manager struct {
	dir        string
	maxHistory int
	writeLocks map[string]*sync.Mutex
	locksMu    sync.Mutex
	logger     zerolog.Logger
}

// New creates a session manager storing sessions under dir.
func New(dir string, maxHistory int, logger zerolog.Logger) (*Manager, error) {
	if dir == "" {
		return nil, fmt.Errorf("sessions directory is required")
	}
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	m := &Manager{
		dir:        dir,
		maxHistory: maxHistory,
		writeLocks: make(map[string]*sync.Mutex),
		logger:     logger,
	}

	logger.Info().Str("dir", dir).Int("max_history", maxHistory).Msg("Session manager initialized")

	return m, nil
}

// CreateSession creates a new empty session and returns its ID.
func (m *Manager) CreateSession() (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}

	file, err := os.OpenFile(m.sessionPath(id), os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to create session file: %w", err)
	}
	file.Close()

	m.logger.Info().Str("session_id", id).Msg("Session created")
	return id, nil
}

// AddExchange appends one completed exchange to a session, creating the
// session if it does not exist yet.
func (m *Manager) AddExchange(sessionID, query, answer string) error {
	if err := m.validateSessionID(sessionID); err != nil {
		return err
	}
	if query == "" {
		return fmt.Errorf("query cannot be empty")
	}

	lock := m.writeLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	file, err := os.OpenFile(m.sessionPath(sessionID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open session file: %w", err)
	}
	defer file.Close()

	data, err := json.Marshal(Exchange{Query: query, Answer: answer, Timestamp: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal exchange: %w", err)
	}

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write exchange: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync session file: %w", err)
	}

	m.logger.Debug().Str("session_id", sessionID).Msg("Exchange appended")
	return nil
}

// History returns the most recent exchanges of a session, capped at the
// configured window. Missing sessions yield an empty history.
func (m *Manager) History(sessionID string) ([]Exchange, error) {
	if err := m.validateSessionID(sessionID); err != nil {
		return nil, err
	}

	file, err := os.Open(m.sessionPath(sessionID))
	if os.IsNotExist(err) {
		return []Exchange{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open session file: %w", err)
	}
	defer file.Close()

	var exchanges []Exchange
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" {
			continue
		}

		var exchange Exchange
		if err := json.Unmarshal([]byte(line), &exchange); err != nil {
			m.logger.Warn().
				Str("session_id", sessionID).
				Int("line", lineNum).
				Err(err).
				Msg("Failed to parse exchange, skipping")
			continue
		}
		exchanges = append(exchanges, exchange)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	if len(exchanges) > m.maxHistory {
		exchanges = exchanges[len(exchanges)-m.maxHistory:]
	}

	return exchanges, nil
}

// ClearSession deletes a session's history. Missing sessions are not an
// error.
func (m *Manager) ClearSession(sessionID string) error {
	if err := m.validateSessionID(sessionID); err != nil {
		return err
	}

	lock := m.writeLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(m.sessionPath(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}

	m.locksMu.Lock()
	delete(m.writeLocks, sessionID)
	m.locksMu.Unlock()

	m.logger.Info().Str("session_id", sessionID).Msg("Session cleared")
	return nil
}

// ListSessions lists the IDs of all stored sessions.
func (m *Manager) ListSessions() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var sessions []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		sessions = append(sessions, strings.TrimSuffix(entry.Name(), ".jsonl"))
	}

	return sessions, nil
}

// validateSessionID rejects IDs that could escape the sessions directory.
func (m *Manager) validateSessionID(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if strings.Contains(sessionID, "..") {
		return fmt.Errorf("session id cannot contain '..'")
	}
	if strings.ContainsAny(sessionID, "/\\") {
		return fmt.Errorf("session id cannot contain path separators")
	}
	if strings.Contains(sessionID, "\x00") {
		return fmt.Errorf("session id cannot contain null bytes")
	}
	return nil
}

func (m *Manager) sessionPath(sessionID string) string {
	return filepath.Join(m.dir, sessionID+".jsonl")
}

func (m *Manager) writeLock(sessionID string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	if lock, ok := m.writeLocks[sessionID]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	m.writeLocks[sessionID] = lock
	return lock
}
