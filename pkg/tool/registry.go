package tool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// InvokeRecorder observes tool invocations for metrics collection.
type InvokeRecorder interface {
	RecordToolInvocation(name string, success bool, elapsed time.Duration)
}

// Registry holds the tools available to a single query, dispatches
// invocations by name and accumulates provenance from their executions.
// Give each query its own Registry so provenance never leaks across
// concurrent requests.
type Registry struct {
	mu         sync.Mutex
	order      []string
	tools      map[string]Tool
	provenance []Provenance
	recorder   InvokeRecorder
	logger     zerolog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger,
	}
}

// SetRecorder attaches an invocation recorder. Optional.
func (r *Registry) SetRecorder(rec InvokeRecorder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorder = rec
}

// Register adds a tool under its schema name. Registering a duplicate name
// fails with ErrDuplicateTool.
func (r *Registry) Register(t Tool) error {
	name := t.Schema().Name
	if name == "" {
		return fmt.Errorf("tool schema must declare a name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, name)
	}

	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Schemas returns the declared shape of every registered tool, in
// registration order.
func (r *Registry) Schemas() []Schema {
	r.mu.Lock()
	defer r.mu.Unlock()

	schemas := make([]Schema, 0, len(r.order))
	for _, name := range r.order {
		schemas = append(schemas, r.tools[name].Schema())
	}
	return schemas
}

// Invoke dispatches an invocation by name. Unknown names fail with
// ErrUnknownTool; a failing tool is reported as an *ExecutionError carrying
// the tool's own message. Successful executions append their sources to the
// registry's provenance list.
func (r *Registry) Invoke(ctx context.Context, name string, params map[string]interface{}) (string, error) {
	r.mu.Lock()
	t, ok := r.tools[name]
	rec := r.recorder
	r.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	start := time.Now()
	result, err := t.Execute(ctx, params)
	if rec != nil {
		rec.RecordToolInvocation(name, err == nil, time.Since(start))
	}
	if err != nil {
		r.logger.Warn().Str("tool", name).Err(err).Msg("Tool execution failed")
		return "", &ExecutionError{Tool: name, Err: err}
	}

	r.mu.Lock()
	r.provenance = append(r.provenance, result.Sources...)
	r.mu.Unlock()

	r.logger.Debug().
		Str("tool", name).
		Int("sources", len(result.Sources)).
		Dur("elapsed", time.Since(start)).
		Msg("Tool executed")

	return result.Text, nil
}

// DrainProvenance returns and clears the provenance accumulated since the
// last drain, in invocation order. Call it once per completed query;
// draining mid-query yields a partial list.
func (r *Registry) DrainProvenance() []Provenance {
	r.mu.Lock()
	defer r.mu.Unlock()

	drained := r.provenance
	r.provenance = nil
	return drained
}
