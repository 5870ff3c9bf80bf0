package session

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestManager(t *testing.T, maxHistory int) *Manager {
	t.Helper()
	m, err := New(t.TempDir(), maxHistory, zerolog.Nop())
	require.NoError(t, err)
	return m
}

func TestManager_CreateSession(t *testing.T) {
	m := setupTestManager(t, 2)

	id, err := m.CreateSession()
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	other, err := m.CreateSession()
	require.NoError(t, err)
	assert.NotEqual(t, id, other)

	sessions, err := m.ListSessions()
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestManager_AddExchangeAndHistory(t *testing.T) {
	m := setupTestManager(t, 2)

	id, err := m.CreateSession()
	require.NoError(t, err)

	require.NoError(t, m.AddExchange(id, "what is rag?", "Retrieval augmented generation."))
	require.NoError(t, m.AddExchange(id, "who teaches it?", "Ada Lovelace."))

	history, err := m.History(id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "what is rag?", history[0].Query)
	assert.Equal(t, "Ada Lovelace.", history[1].Answer)
	assert.False(t, history[0].Timestamp.IsZero())
}

func TestManager_HistoryWindowIsBounded(t *testing.T) {
	m := setupTestManager(t, 2)

	id, err := m.CreateSession()
	require.NoError(t, err)

	require.NoError(t, m.AddExchange(id, "first", "1"))
	require.NoError(t, m.AddExchange(id, "second", "2"))
	require.NoError(t, m.AddExchange(id, "third", "3"))

	history, err := m.History(id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "second", history[0].Query)
	assert.Equal(t, "third", history[1].Query)
}

func TestManager_HistoryOfUnknownSessionIsEmpty(t *testing.T) {
	m := setupTestManager(t, 2)

	history, err := m.History("never-created")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestManager_AddExchangeCreatesSession(t *testing.T) {
	m := setupTestManager(t, 2)

	require.NoError(t, m.AddExchange("implicit", "hello", "hi"))

	history, err := m.History("implicit")
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestManager_ClearSession(t *testing.T) {
	m := setupTestManager(t, 2)

	id, err := m.CreateSession()
	require.NoError(t, err)
	require.NoError(t, m.AddExchange(id, "q", "a"))

	require.NoError(t, m.ClearSession(id))

	_, err = os.Stat(m.sessionPath(id))
	assert.True(t, os.IsNotExist(err))

	history, err := m.History(id)
	require.NoError(t, err)
	assert.Empty(t, history)

	// Clearing again is not an error.
	assert.NoError(t, m.ClearSession(id))
}

func TestManager_ValidateSessionID(t *testing.T) {
	m := setupTestManager(t, 2)

	tests := []struct {
		name      string
		id        string
		shouldErr bool
	}{
		{"valid id", "abc123XYZ_-", false},
		{"empty id", "", true},
		{"path traversal", "../etc/passwd", true},
		{"forward slash", "a/b", true},
		{"backslash", "a\\b", true},
		{"null byte", "a\x00b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.validateSessionID(tt.id)
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestManager_CorruptLineIsSkipped(t *testing.T) {
	m := setupTestManager(t, 5)

	id := "corrupt"
	require.NoError(t, m.AddExchange(id, "good", "answer"))

	f, err := os.OpenFile(m.sessionPath(id), os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, m.AddExchange(id, "later", "answer"))

	history, err := m.History(id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "good", history[0].Query)
	assert.Equal(t, "later", history[1].Query)
}
