package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hostadvisord/hostadvisord/internal/evidence"
)

// Handler runs one tool invocation and returns structured evidence
// payload fields plus a human summary. It must never panic; any failure
// is returned as an error.
type Handler func(ctx context.Context, args map[string]interface{}) (payload map[string]interface{}, summary string, err error)

// Registered combines an immutable Definition with its Handler.
type Registered struct {
	Definition Definition
	Handler    Handler
}

// Registry maps tool names to their Registered entry. Like the Catalog it
// wraps, a Registry is built once at startup; RegisterDefaults is the only
// population path used by the daemon's main().
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Registered
	catalog *Catalog
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Registered)}
}

// Register adds one tool. Last registration for a given name wins, as in
// the teacher's ToolRegistry.Register.
func (r *Registry) Register(reg Registered) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[reg.Definition.Name] = reg
}

// Catalog returns the immutable Catalog view of everything registered so
// far. Building it lazily (rather than incrementally) keeps Catalog
// genuinely immutable once handed out.
func (r *Registry) Catalog() *Catalog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.entries))
	for _, e := range r.entries {
		defs = append(defs, e.Definition)
	}
	return NewCatalog(defs...)
}

func (r *Registry) lookup(name string) (Registered, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[name]
	return reg, ok
}

// latencyTimeout maps a Latency hint to a wall-clock budget for the
// executor's timeout (spec §5).
func latencyTimeout(l Latency) time.Duration {
	switch l {
	case Fast:
		return 2 * time.Second
	case Medium:
		return 10 * time.Second
	case Slow:
		return 60 * time.Second
	default:
		return 10 * time.Second
	}
}

// Executor runs tool invocations against a Registry, producing
// evidence.ToolResult values. It never panics out — every failure mode
// (unknown tool, missing required parameter, handler error, timeout) is
// turned into a ToolResult with Success=false.
type Executor struct {
	registry *Registry
}

// NewExecutor wraps registry for execution.
func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry}
}

// Execute runs name(args), enforcing required-parameter presence and a
// latency-class timeout, and returns a ToolResult (never an error —
// failures are values, per spec §4.1).
func (e *Executor) Execute(ctx context.Context, name string, args map[string]interface{}) evidence.ToolResult {
	reg, ok := e.registry.lookup(name)
	if !ok {
		return evidence.ToolResult{
			ToolName:     name,
			Success:      false,
			Error:        "Tool not in allowlist",
			HumanSummary: fmt.Sprintf("Unknown tool '%s' - not in the allowed tool catalog.", name),
		}
	}

	if reg.Handler == nil {
		return evidence.ToolResult{
			ToolName:     name,
			Success:      false,
			Error:        "Tool unavailable",
			HumanSummary: fmt.Sprintf("Tool '%s' is in the catalog but not yet implemented.", name),
		}
	}

	if reg.Definition.Security == Mutating {
		return evidence.ToolResult{
			ToolName:     name,
			Success:      false,
			Error:        "Mutating tools require the mutation engine",
			HumanSummary: fmt.Sprintf("Tool '%s' is mutating and cannot be run directly by the executor; use preview/apply.", name),
		}
	}

	for _, p := range reg.Definition.RequiredParams() {
		if _, present := args[p.Name]; !present {
			return evidence.ToolResult{
				ToolName:     name,
				Success:      false,
				Error:        fmt.Sprintf("missing required parameter %q", p.Name),
				HumanSummary: fmt.Sprintf("Tool '%s' requires parameter '%s'.", name, p.Name),
			}
		}
	}

	timeout := latencyTimeout(reg.Definition.LatencyHint)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		payload map[string]interface{}
		summary string
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool handler panicked: %v", r)}
			}
		}()
		payload, summary, err := reg.Handler(runCtx, args)
		done <- outcome{payload: payload, summary: summary, err: err}
	}()

	select {
	case <-runCtx.Done():
		return evidence.ToolResult{
			ToolName:     name,
			Success:      false,
			Error:        "timeout",
			HumanSummary: fmt.Sprintf("Tool '%s' timed out after %s.", name, timeout),
		}
	case out := <-done:
		if out.err != nil {
			return evidence.ToolResult{
				ToolName:     name,
				Success:      false,
				Error:        out.err.Error(),
				HumanSummary: fmt.Sprintf("Tool '%s' failed: %v", name, out.err),
			}
		}
		return evidence.ToolResult{
			ToolName:     name,
			Payload:      out.payload,
			Success:      true,
			HumanSummary: out.summary,
		}
	}
}
