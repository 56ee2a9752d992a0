// Package toolreg implements the declarative tool catalogue the agent loop
// dispatches through: engine-neutral schemas, argument validation, and
// bounded, non-fatal tool execution.
package toolreg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/ansuz/internal/apperr"
)

// ParamType is the JSON type of a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
)

// Param declares one tool argument. Params are ordered so generated schemas
// and prompts are reproducible across runs.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

// Schema declares a callable tool.
type Schema struct {
	Name        string
	Description string
	Params      []Param
}

// Parameters renders the schema's argument declaration as a JSON-schema
// object, the shape both OpenAI tool calling and MCP expect.
func (s Schema) Parameters() map[string]any {
	props := make(map[string]any, len(s.Params))
	required := []string{}
	for _, p := range s.Params {
		props[p.Name] = map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// Source identifies where a tool result came from, for answer attribution.
type Source struct {
	Title   string `json:"title"`
	Kind    string `json:"kind"` // "note" or "document"
	Locator string `json:"locator"`
}

// ToolError is a structured, non-fatal tool failure the LLM can react to.
type ToolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes carried by ToolError.
const (
	CodeUnknownTool = "unknown_tool"
	CodeValidation  = "validation_error"
	CodeTimeout     = "timeout"
	CodeNotFound    = "not_found"
	CodeToolFailed  = "tool_failed"
)

// ToolResult is the outcome of one dispatch: a JSON-serializable payload
// with source refs, or a structured error. Never both.
type ToolResult struct {
	Payload any
	Sources []Source
	Err     *ToolError
}

// Handler executes a tool against validated arguments.
type Handler func(ctx context.Context, args Args) (*ToolResult, error)

type entry struct {
	schema  Schema
	handler Handler
}

// Registry is the closed tool catalogue, populated at process start. It is
// not safe for concurrent registration, but dispatch and schema reads are
// safe once registration is done.
type Registry struct {
	order   []string
	entries map[string]entry
	timeout time.Duration
}

// New creates a registry whose dispatches are bounded by timeout.
func New(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Registry{
		entries: make(map[string]entry),
		timeout: timeout,
	}
}

// Register adds a tool. Re-registering a name replaces the handler and
// schema but keeps the original registration position, so prompt order
// stays stable.
func (r *Registry) Register(schema Schema, handler Handler) {
	if _, exists := r.entries[schema.Name]; !exists {
		r.order = append(r.order, schema.Name)
	}
	r.entries[schema.Name] = entry{schema: schema, handler: handler}
}

// Schemas returns all tool schemas in registration order.
func (r *Registry) Schemas() []Schema {
	out := make([]Schema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].schema)
	}
	return out
}

// Dispatch validates arguments and runs the named tool. Every failure mode
// (unknown tool, bad arguments, timeout, handler error) comes back as a
// structured ToolResult, never as a raised error, so the LLM can observe it
// and self-correct on the next round.
func (r *Registry) Dispatch(ctx context.Context, name string, rawArgs json.RawMessage) ToolResult {
	e, ok := r.entries[name]
	if !ok {
		return ToolResult{Err: &ToolError{
			Code:    CodeUnknownTool,
			Message: fmt.Sprintf("no tool named %q", name),
		}}
	}

	args, verr := validateArgs(e.schema, rawArgs)
	if verr != nil {
		return ToolResult{Err: &ToolError{Code: CodeValidation, Message: verr.Error()}}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		res *ToolResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := e.handler(ctx, args)
		done <- outcome{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		return ToolResult{Err: &ToolError{
			Code:    CodeTimeout,
			Message: fmt.Sprintf("tool %s exceeded %s", name, r.timeout),
		}}
	case o := <-done:
		switch {
		case errors.Is(o.err, apperr.ErrNotFound):
			return ToolResult{Err: &ToolError{Code: CodeNotFound, Message: o.err.Error()}}
		case o.err != nil:
			return ToolResult{Err: &ToolError{Code: CodeToolFailed, Message: o.err.Error()}}
		case o.res == nil:
			return ToolResult{Err: &ToolError{Code: CodeToolFailed, Message: "tool returned no result"}}
		default:
			return *o.res
		}
	}
}
