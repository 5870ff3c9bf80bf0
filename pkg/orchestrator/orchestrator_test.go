package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syllabot/syllabot/pkg/chat"
	"github.com/syllabot/syllabot/pkg/tool"
)

// fakeClient replays scripted responses and records every request.
type fakeClient struct {
	responses []chat.Response
	err       error
	requests  []chat.Request
}

func (f *fakeClient) Send(ctx context.Context, req chat.Request) (chat.Response, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return chat.Response{}, f.err
	}
	if len(f.responses) == 0 {
		panic("fakeClient: no scripted response left")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

// fakeTool executes a canned function under a fixed schema.
type fakeTool struct {
	name string
	fn   func(params map[string]interface{}) (tool.Result, error)
}

func (f *fakeTool) Schema() tool.Schema {
	return tool.Schema{
		Name:        f.name,
		Description: "test tool",
		Params: map[string]tool.Param{
			"query": {Type: "string", Description: "query", Required: true},
		},
	}
}

func (f *fakeTool) Execute(ctx context.Context, params map[string]interface{}) (tool.Result, error) {
	return f.fn(params)
}

func newTestOrchestrator(t *testing.T, client ModelClient) *Orchestrator {
	t.Helper()
	o, err := New(Config{
		Client: client,
		System: "test system prompt",
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	return o
}

func newTestRegistry(t *testing.T, tools ...tool.Tool) *tool.Registry {
	t.Helper()
	reg := tool.NewRegistry(zerolog.Nop())
	for _, tl := range tools {
		require.NoError(t, reg.Register(tl))
	}
	return reg
}

func textResponse(text string) chat.Response {
	return chat.Response{Stop: chat.StopEnd, Text: text}
}

func toolResponse(invocations ...chat.ToolUse) chat.Response {
	return chat.Response{Stop: chat.StopToolUse, Invocations: invocations}
}

func TestOrchestrator_New_RequiresClient(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestOrchestrator_DirectAnswer(t *testing.T) {
	client := &fakeClient{responses: []chat.Response{textResponse("Paris.")}}
	o := newTestOrchestrator(t, client)
	reg := newTestRegistry(t, &fakeTool{name: "search", fn: func(map[string]interface{}) (tool.Result, error) {
		t.Fatal("tool must not run")
		return tool.Result{}, nil
	}})

	answer, err := o.Respond(context.Background(), "capital of France?", nil, reg)
	require.NoError(t, err)
	assert.Equal(t, "Paris.", answer)
	require.Len(t, client.requests, 1)

	// The first call offers the registered schemas.
	req := client.requests[0]
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "search", req.Tools[0].Name)
	assert.Equal(t, chat.ToolChoiceAuto, req.ToolChoice)
	assert.Equal(t, "test system prompt", req.System)
}

func TestOrchestrator_SingleToolRound(t *testing.T) {
	client := &fakeClient{responses: []chat.Response{
		toolResponse(chat.ToolUse{ID: "tu_1", Name: "search", Params: map[string]interface{}{"query": "lesson 4"}}),
		textResponse("Lesson 4 covers retrieval."),
	}}
	o := newTestOrchestrator(t, client)

	var gotParams map[string]interface{}
	reg := newTestRegistry(t, &fakeTool{name: "search", fn: func(params map[string]interface{}) (tool.Result, error) {
		gotParams = params
		return tool.Result{Text: "retrieval chunk"}, nil
	}})

	answer, err := o.Respond(context.Background(), "what does lesson 4 cover?", nil, reg)
	require.NoError(t, err)
	assert.Equal(t, "Lesson 4 covers retrieval.", answer)
	assert.Equal(t, map[string]interface{}{"query": "lesson 4"}, gotParams)
	require.Len(t, client.requests, 2)

	// Round two sees the assistant's tool request and its id-paired result,
	// with the schemas still offered.
	second := client.requests[1]
	require.Len(t, second.Messages, 3)

	assistant := second.Messages[1]
	assert.Equal(t, chat.RoleAssistant, assistant.Role)
	require.Len(t, assistant.Blocks, 1)
	use, ok := assistant.Blocks[0].(chat.ToolUse)
	require.True(t, ok)
	assert.Equal(t, "tu_1", use.ID)

	results := second.Messages[2]
	assert.Equal(t, chat.RoleUser, results.Role)
	require.Len(t, results.Blocks, 1)
	result, ok := results.Blocks[0].(chat.ToolResult)
	require.True(t, ok)
	assert.Equal(t, "tu_1", result.ToolUseID)
	assert.Equal(t, "retrieval chunk", result.Text)
	assert.False(t, result.IsError)

	require.Len(t, second.Tools, 1)
	assert.Equal(t, chat.ToolChoiceAuto, second.ToolChoice)
}

func TestOrchestrator_RoundCapForcesFinalCall(t *testing.T) {
	client := &fakeClient{responses: []chat.Response{
		toolResponse(chat.ToolUse{ID: "tu_1", Name: "search", Params: map[string]interface{}{"query": "a"}}),
		toolResponse(chat.ToolUse{ID: "tu_2", Name: "search", Params: map[string]interface{}{"query": "b"}}),
		textResponse("Synthesized from both searches."),
	}}
	o := newTestOrchestrator(t, client)

	calls := 0
	reg := newTestRegistry(t, &fakeTool{name: "search", fn: func(map[string]interface{}) (tool.Result, error) {
		calls++
		return tool.Result{Text: fmt.Sprintf("result %d", calls)}, nil
	}})

	answer, err := o.Respond(context.Background(), "compare a and b", nil, reg)
	require.NoError(t, err)
	assert.Equal(t, "Synthesized from both searches.", answer)
	assert.Equal(t, 2, calls)

	// Two tool rounds plus the forced final call.
	require.Len(t, client.requests, 3)

	final := client.requests[2]
	assert.Empty(t, final.Tools)
	assert.Equal(t, chat.ToolChoiceNone, final.ToolChoice)
	// The final call still sees both rounds' results.
	require.Len(t, final.Messages, 5)
}

func TestOrchestrator_NeverExceedsCallCap(t *testing.T) {
	// The model asks for tools on every turn it can.
	client := &fakeClient{responses: []chat.Response{
		toolResponse(chat.ToolUse{ID: "tu_1", Name: "search", Params: map[string]interface{}{"query": "x"}}),
		toolResponse(chat.ToolUse{ID: "tu_2", Name: "search", Params: map[string]interface{}{"query": "y"}}),
		textResponse("done"),
	}}
	o := newTestOrchestrator(t, client)
	reg := newTestRegistry(t, &fakeTool{name: "search", fn: func(map[string]interface{}) (tool.Result, error) {
		return tool.Result{Text: "ok"}, nil
	}})

	_, err := o.Respond(context.Background(), "q", nil, reg)
	require.NoError(t, err)
	assert.Len(t, client.requests, DefaultMaxRounds+1)
}

func TestOrchestrator_ToolErrorBecomesErrorBlock(t *testing.T) {
	client := &fakeClient{responses: []chat.Response{
		toolResponse(chat.ToolUse{ID: "tu_1", Name: "search", Params: map[string]interface{}{"query": "x"}}),
		textResponse("I could not find that."),
	}}
	o := newTestOrchestrator(t, client)
	reg := newTestRegistry(t, &fakeTool{name: "search", fn: func(map[string]interface{}) (tool.Result, error) {
		return tool.Result{}, errors.New("index unavailable")
	}})

	answer, err := o.Respond(context.Background(), "q", nil, reg)
	require.NoError(t, err)
	assert.Equal(t, "I could not find that.", answer)

	second := client.requests[1]
	result, ok := second.Messages[2].Blocks[0].(chat.ToolResult)
	require.True(t, ok)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text, "index unavailable")
}

func TestOrchestrator_UnknownToolIsNotFatal(t *testing.T) {
	client := &fakeClient{responses: []chat.Response{
		toolResponse(chat.ToolUse{ID: "tu_1", Name: "no_such_tool", Params: map[string]interface{}{}}),
		textResponse("answered anyway"),
	}}
	o := newTestOrchestrator(t, client)
	reg := newTestRegistry(t)

	answer, err := o.Respond(context.Background(), "q", nil, reg)
	require.NoError(t, err)
	assert.Equal(t, "answered anyway", answer)

	result, ok := client.requests[1].Messages[2].Blocks[0].(chat.ToolResult)
	require.True(t, ok)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text, "no_such_tool")
}

func TestOrchestrator_MultipleInvocationsOneRound(t *testing.T) {
	client := &fakeClient{responses: []chat.Response{
		toolResponse(
			chat.ToolUse{ID: "tu_1", Name: "search", Params: map[string]interface{}{"query": "first"}},
			chat.ToolUse{ID: "tu_2", Name: "search", Params: map[string]interface{}{"query": "second"}},
		),
		textResponse("combined answer"),
	}}
	o := newTestOrchestrator(t, client)

	var order []string
	reg := newTestRegistry(t, &fakeTool{name: "search", fn: func(params map[string]interface{}) (tool.Result, error) {
		q := params["query"].(string)
		order = append(order, q)
		return tool.Result{Text: "result for " + q}, nil
	}})

	_, err := o.Respond(context.Background(), "q", nil, reg)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)

	// Both results land in one user message, id-paired in request order.
	results := client.requests[1].Messages[2]
	require.Len(t, results.Blocks, 2)
	first := results.Blocks[0].(chat.ToolResult)
	second := results.Blocks[1].(chat.ToolResult)
	assert.Equal(t, "tu_1", first.ToolUseID)
	assert.Equal(t, "result for first", first.Text)
	assert.Equal(t, "tu_2", second.ToolUseID)
	assert.Equal(t, "result for second", second.Text)
}

func TestOrchestrator_TransportErrorIsFatal(t *testing.T) {
	transportErr := errors.New("connection refused")
	client := &fakeClient{err: transportErr}
	o := newTestOrchestrator(t, client)
	reg := newTestRegistry(t)

	_, err := o.Respond(context.Background(), "q", nil, reg)
	require.Error(t, err)
	assert.ErrorIs(t, err, transportErr)
	// No retry.
	assert.Len(t, client.requests, 1)
}

func TestOrchestrator_EmptyTextYieldsFallback(t *testing.T) {
	client := &fakeClient{responses: []chat.Response{textResponse("")}}
	o := newTestOrchestrator(t, client)
	reg := newTestRegistry(t)

	answer, err := o.Respond(context.Background(), "q", nil, reg)
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer, answer)
}

func TestOrchestrator_HistoryPrecedesQuery(t *testing.T) {
	client := &fakeClient{responses: []chat.Response{textResponse("ok")}}
	o := newTestOrchestrator(t, client)
	reg := newTestRegistry(t)

	history := []chat.Message{
		chat.UserText("earlier question"),
		chat.AssistantText("earlier answer"),
	}

	_, err := o.Respond(context.Background(), "follow-up", history, reg)
	require.NoError(t, err)

	messages := client.requests[0].Messages
	require.Len(t, messages, 3)
	assert.Equal(t, chat.RoleUser, messages[0].Role)
	assert.Equal(t, chat.RoleAssistant, messages[1].Role)
	last, ok := messages[2].Blocks[0].(chat.Text)
	require.True(t, ok)
	assert.Equal(t, "follow-up", last.Text)
}

func TestOrchestrator_ProvenanceAccumulatesAndDrains(t *testing.T) {
	client := &fakeClient{responses: []chat.Response{
		toolResponse(chat.ToolUse{ID: "tu_1", Name: "search", Params: map[string]interface{}{"query": "x"}}),
		textResponse("answer"),
	}}
	o := newTestOrchestrator(t, client)

	sources := []tool.Provenance{
		{Text: "Course A - Lesson 1", Link: "https://example.com/1"},
		{Text: "Course A - Lesson 2"},
	}
	reg := newTestRegistry(t, &fakeTool{name: "search", fn: func(map[string]interface{}) (tool.Result, error) {
		return tool.Result{Text: "found", Sources: sources}, nil
	}})

	_, err := o.Respond(context.Background(), "q", nil, reg)
	require.NoError(t, err)

	drained := reg.DrainProvenance()
	assert.Equal(t, sources, drained)
	// A second drain is empty.
	assert.Empty(t, reg.DrainProvenance())
}
