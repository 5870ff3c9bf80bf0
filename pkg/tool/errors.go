package tool

import (
	"errors"
	"fmt"
)

// ErrUnknownTool reports an invocation naming a tool that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// ErrDuplicateTool reports a Register call reusing an existing tool name.
// This is a configuration error, not a runtime error.
var ErrDuplicateTool = errors.New("duplicate tool name")

// ExecutionError wraps a tool's own failure. It is recoverable within a
// query: the orchestrator converts it into an error result block for the
// model instead of aborting the round.
type ExecutionError struct {
	Tool string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
