// Package tool defines the capability contract every toolmesh tool satisfies:
// self-describing metadata, validated parameters, and a uniform result envelope
// produced through the safe-invocation protocol.
package tool

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Parameter type tags, mirroring JSON Schema primitive types.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// Parameter describes a single argument a tool accepts.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
}

// Metadata is the immutable description of a tool. It is constructed once per
// tool instance and only ever read afterwards.
type Metadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Category    string      `json:"category"`
	Version     string      `json:"version"`
	Author      string      `json:"author,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
}

// Result is the uniform outcome of any tool invocation.
type Result struct {
	Success       bool           `json:"success"`
	Result        any            `json:"result,omitempty"`
	Error         string         `json:"error,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	ExecutionTime float64        `json:"execution_time"` // seconds, stamped by Invoke
	Timestamp     time.Time      `json:"timestamp"`
}

// Ok builds a success envelope carrying the given payload.
func Ok(v any) *Result {
	return &Result{Success: true, Result: v, Timestamp: time.Now()}
}

// Fail builds a failure envelope with a formatted error message.
func Fail(format string, args ...any) *Result {
	return &Result{Success: false, Error: fmt.Sprintf(format, args...), Timestamp: time.Now()}
}

// Tool is a self-describing, independently invocable capability unit.
//
// Metadata must be pure and callable before initialization. Initialize performs
// one-time setup and must be idempotent; embedding InitGuard gives that for
// free. Execute receives already-validated, already-defaulted arguments and must
// not populate the envelope's ExecutionTime. Callers never run Execute directly;
// they go through Invoke (or Registry.Invoke), which owns validation, timing,
// and error capture.
type Tool interface {
	Metadata() Metadata
	Initialize(ctx context.Context) error
	Execute(ctx context.Context, args map[string]any) (*Result, error)
}

// InitGuard provides at-most-once initialization with retry after failure.
// The first setup run that returns nil wins; a failing run leaves the guard
// open so a later invocation retries. The zero value is ready to use.
type InitGuard struct {
	mu   sync.Mutex
	done bool
}

// Do runs setup unless a previous run already succeeded. The guard's lock is
// held only for the duration of setup itself, never across tool execution.
func (g *InitGuard) Do(setup func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return nil
	}
	if setup != nil {
		if err := setup(); err != nil {
			return err
		}
	}
	g.done = true
	return nil
}

// Initialized reports whether a setup run has succeeded.
func (g *InitGuard) Initialized() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.done
}

// Invoke is the safe-invocation protocol: initialize, validate, execute, stamp
// elapsed wall-clock time. Every failure, whether from initialization,
// validation, or an error or panic out of Execute, is normalized into a failure
// envelope; no fault escapes to the caller.
func Invoke(ctx context.Context, t Tool, args map[string]any) (res *Result) {
	start := time.Now()

	stamp := func(r *Result) *Result {
		r.ExecutionTime = time.Since(start).Seconds()
		if r.Timestamp.IsZero() {
			r.Timestamp = time.Now()
		}
		return r
	}

	defer func() {
		if r := recover(); r != nil {
			res = stamp(Fail("tool panicked: %v", r))
		}
	}()

	if err := t.Initialize(ctx); err != nil {
		return stamp(Fail("tool initialization failed: %s", err))
	}

	validated, err := ValidateParameters(t.Metadata(), args)
	if err != nil {
		return stamp(Fail("%s", err))
	}

	out, err := t.Execute(ctx, validated)
	if err != nil {
		return stamp(Fail("%s", err))
	}
	if out == nil {
		return stamp(Fail("tool returned no result"))
	}
	return stamp(out)
}
