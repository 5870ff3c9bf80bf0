package chat

import "github.com/syllabot/syllabot/pkg/tool"

// StopReason tags the two shapes a model response can take.
type StopReason string

const (
	// StopEnd means the model finished its turn with a text answer.
	StopEnd StopReason = "end"
	// StopToolUse means the model requested one or more tool invocations.
	StopToolUse StopReason = "tool_use"
)

// ToolChoice instructs the model whether it may select a tool.
type ToolChoice string

const (
	// ToolChoiceAuto lets the model decide whether to call a tool.
	ToolChoiceAuto ToolChoice = "auto"
	// ToolChoiceNone withholds tools entirely, forcing a text answer.
	ToolChoiceNone ToolChoice = "none"
)

// Request is one model call: an ordered conversation plus the tool schemas
// the model may use. A nil Tools slice (or ToolChoiceNone) withholds tools.
type Request struct {
	System     string
	Messages   []Message
	Tools      []tool.Schema
	ToolChoice ToolChoice
}

// Response is the tagged result of a model call: either an end-of-turn text
// or an ordered sequence of tool invocations. Handlers must address both
// cases; Stop says which one applies.
type Response struct {
	Stop        StopReason
	Text        string
	Invocations []ToolUse
	Usage       Usage
}

// Usage tracks token consumption for one model call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}
