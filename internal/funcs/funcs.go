// Package funcs holds the function surface exposed to the voice agent.
//
// The agent can only invoke what is registered here: each [Func] pairs the
// JSON-schema definition served to the agent in the session Settings with
// the in-process [Handler] that runs when the agent calls it. Dispatch
// isolates handler panics so a malformed utterance can never take down the
// session loop.
package funcs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrWong99/voxcal/internal/observe"
	"github.com/MrWong99/voxcal/pkg/provider/voice"
)

// Handler executes one function call. args is the raw JSON object string from
// the agent ("{}" when the function takes no arguments). The returned string
// is relayed verbatim to the agent; a non-nil error marks the call as failed.
type Handler func(ctx context.Context, args string) (string, error)

// Func pairs a definition with its handler.
type Func struct {
	Definition voice.FunctionDefinition
	Handler    Handler
}

// Registry holds the agent-callable functions.
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	funcs   map[string]Func
	order   []string
	metrics *observe.Metrics
}

// Option configures a [Registry].
type Option func(*Registry)

// WithMetrics overrides the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry creates an empty function registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r
}

// Register adds f to the registry. Registering a duplicate name, an empty
// name, or a nil handler is an error.
func (r *Registry) Register(f Func) error {
	if f.Definition.Name == "" {
		return fmt.Errorf("funcs: function must have a non-empty name")
	}
	if f.Handler == nil {
		return fmt.Errorf("funcs: function %q must have a non-nil handler", f.Definition.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[f.Definition.Name]; exists {
		return fmt.Errorf("funcs: function %q already registered", f.Definition.Name)
	}
	r.funcs[f.Definition.Name] = f
	r.order = append(r.order, f.Definition.Name)
	return nil
}

// Definitions returns all registered definitions in registration order, ready
// for inclusion in the session Settings.
func (r *Registry) Definitions() []voice.FunctionDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]voice.FunctionDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.funcs[name].Definition)
	}
	return defs
}

// Dispatch runs the named function with the given JSON arguments and returns
// its result. An unknown name is an error. A panicking handler is recovered
// and reported as a handler error, never propagated.
func (r *Registry) Dispatch(ctx context.Context, name, args string) (result string, err error) {
	r.mu.RLock()
	f, ok := r.funcs[name]
	r.mu.RUnlock()

	if !ok {
		r.metrics.RecordFunctionCall(ctx, name, "unknown", 0)
		return "", fmt.Errorf("funcs: function %q not found", name)
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("funcs: function %q panicked: %v", name, rec)
		}
		status := "ok"
		if err != nil {
			status = "error"
		}
		r.metrics.RecordFunctionCall(ctx, name, status, time.Since(start))
	}()

	result, err = f.Handler(ctx, args)
	return result, err
}
