package rag

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syllabot/syllabot/pkg/chat"
	"github.com/syllabot/syllabot/pkg/session"
	"github.com/syllabot/syllabot/pkg/tool"
)

type scriptedClient struct {
	responses []chat.Response
	requests  []chat.Request
}

func (s *scriptedClient) Send(ctx context.Context, req chat.Request) (chat.Response, error) {
	s.requests = append(s.requests, req)
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return resp, nil
}

type staticTool struct {
	result tool.Result
}

func (s *staticTool) Schema() tool.Schema {
	return tool.Schema{
		Name:        "search_course_content",
		Description: "search",
		Params: map[string]tool.Param{
			"query": {Type: "string", Description: "query", Required: true},
		},
	}
}

func (s *staticTool) Execute(ctx context.Context, params map[string]interface{}) (tool.Result, error) {
	return s.result, nil
}

type staticCatalog struct {
	titles []string
}

func (c *staticCatalog) CourseCount() (int, error) { return len(c.titles), nil }

func (c *staticCatalog) CourseTitles() ([]string, error) { return c.titles, nil }

func newTestSystem(t *testing.T, client *scriptedClient, tools ...tool.Tool) *System {
	t.Helper()

	sessions, err := session.New(t.TempDir(), 2, zerolog.Nop())
	require.NoError(t, err)

	sys, err := New(Config{
		Client:   client,
		Sessions: sessions,
		Catalog:  &staticCatalog{titles: []string{"RAG Basics", "MCP in Practice"}},
		Tools:    tools,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	return sys
}

func TestSystem_QueryDirectAnswer(t *testing.T) {
	client := &scriptedClient{responses: []chat.Response{{Stop: chat.StopEnd, Text: "General answer."}}}
	sys := newTestSystem(t, client)

	answer, err := sys.Query(context.Background(), "what is 2+2?", "")
	require.NoError(t, err)
	assert.Equal(t, "General answer.", answer.Text)
	assert.Empty(t, answer.Sources)
	assert.NotNil(t, answer.Sources)
}

func TestSystem_QueryCollectsSources(t *testing.T) {
	client := &scriptedClient{responses: []chat.Response{
		{Stop: chat.StopToolUse, Invocations: []chat.ToolUse{
			{ID: "tu_1", Name: "search_course_content", Params: map[string]interface{}{"query": "rag"}},
		}},
		{Stop: chat.StopEnd, Text: "RAG retrieves then generates."},
	}}
	sources := []tool.Provenance{{Text: "RAG Basics - Lesson 1", Link: "https://example.com/1"}}
	sys := newTestSystem(t, client, &staticTool{result: tool.Result{Text: "chunk", Sources: sources}})

	answer, err := sys.Query(context.Background(), "what is rag?", "")
	require.NoError(t, err)
	assert.Equal(t, "RAG retrieves then generates.", answer.Text)
	assert.Equal(t, sources, answer.Sources)
}

func TestSystem_SourcesDoNotLeakAcrossQueries(t *testing.T) {
	client := &scriptedClient{responses: []chat.Response{
		{Stop: chat.StopToolUse, Invocations: []chat.ToolUse{
			{ID: "tu_1", Name: "search_course_content", Params: map[string]interface{}{"query": "rag"}},
		}},
		{Stop: chat.StopEnd, Text: "first answer"},
	}}
	sys := newTestSystem(t, client, &staticTool{result: tool.Result{
		Text:    "chunk",
		Sources: []tool.Provenance{{Text: "RAG Basics - Lesson 1"}},
	}})

	first, err := sys.Query(context.Background(), "q1", "")
	require.NoError(t, err)
	require.Len(t, first.Sources, 1)

	// The second query gets no tool round, so it must carry no sources.
	second, err := sys.Query(context.Background(), "q2", "")
	require.NoError(t, err)
	assert.Empty(t, second.Sources)
}

func TestSystem_SessionHistoryFlowsIntoConversation(t *testing.T) {
	client := &scriptedClient{responses: []chat.Response{{Stop: chat.StopEnd, Text: "answer"}}}
	sys := newTestSystem(t, client)

	id, err := sys.CreateSession()
	require.NoError(t, err)

	_, err = sys.Query(context.Background(), "first question", id)
	require.NoError(t, err)

	_, err = sys.Query(context.Background(), "second question", id)
	require.NoError(t, err)

	// The second call carries the first exchange as real messages.
	require.Len(t, client.requests, 2)
	messages := client.requests[1].Messages
	require.Len(t, messages, 3)
	assert.Equal(t, chat.RoleUser, messages[0].Role)
	assert.Equal(t, chat.RoleAssistant, messages[1].Role)

	firstQuery, ok := messages[0].Blocks[0].(chat.Text)
	require.True(t, ok)
	assert.Equal(t, "first question", firstQuery.Text)
}

func TestSystem_ClearSessionForgetsHistory(t *testing.T) {
	client := &scriptedClient{responses: []chat.Response{{Stop: chat.StopEnd, Text: "answer"}}}
	sys := newTestSystem(t, client)

	id, err := sys.CreateSession()
	require.NoError(t, err)

	_, err = sys.Query(context.Background(), "remember me", id)
	require.NoError(t, err)
	require.NoError(t, sys.ClearSession(id))

	_, err = sys.Query(context.Background(), "fresh start", id)
	require.NoError(t, err)

	last := client.requests[len(client.requests)-1]
	require.Len(t, last.Messages, 1)
}

func TestSystem_Analytics(t *testing.T) {
	client := &scriptedClient{responses: []chat.Response{{Stop: chat.StopEnd, Text: "x"}}}
	sys := newTestSystem(t, client)

	analytics, err := sys.Analytics()
	require.NoError(t, err)
	assert.Equal(t, 2, analytics.TotalCourses)
	assert.Equal(t, []string{"RAG Basics", "MCP in Practice"}, analytics.CourseTitles)
}

func TestSystem_LoadCourseFolderWithoutLoader(t *testing.T) {
	client := &scriptedClient{responses: []chat.Response{{Stop: chat.StopEnd, Text: "x"}}}
	sys := newTestSystem(t, client)

	_, _, err := sys.LoadCourseFolder(context.Background(), "docs", false)
	assert.Error(t, err)
}
