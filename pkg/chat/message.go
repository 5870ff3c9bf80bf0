package chat

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a model conversation. Messages are appended to a
// conversation, never mutated in place.
type Message struct {
	Role   Role
	Blocks []Block
}

// Block is a single content block within a message. The set of
// implementations is closed: Text, ToolUse and ToolResult.
type Block interface {
	blockKind() string
}

// Text is a plain text block.
type Text struct {
	Text string
}

// ToolUse is a model-issued request to invoke a named tool, tagged with a
// correlation id.
type ToolUse struct {
	ID     string
	Name   string
	Params map[string]interface{}
}

// ToolResult carries the outcome of a tool invocation back to the model.
// ToolUseID must reference the id of a prior ToolUse block in the same
// conversation.
type ToolResult struct {
	ToolUseID string
	Text      string
	IsError   bool
}

func (Text) blockKind() string       { return "text" }
func (ToolUse) blockKind() string    { return "tool_use" }
func (ToolResult) blockKind() string { return "tool_result" }

// UserText builds a single text-block user message.
func UserText(text string) Message {
	return Message{Role: RoleUser, Blocks: []Block{Text{Text: text}}}
}

// AssistantText builds a single text-block assistant message.
func AssistantText(text string) Message {
	return Message{Role: RoleAssistant, Blocks: []Block{Text{Text: text}}}
}
