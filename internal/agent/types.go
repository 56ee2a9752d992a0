// Package agent runs the multi-turn tool-calling loop: it feeds the
// conversation to an LLM, executes the tool calls the model requests
// through the registry, and folds results back in until the model answers
// in plain text or the iteration cap is reached.
package agent

import (
	"context"
	"encoding/json"

	"github.com/starford/ansuz/internal/toolreg"
)

// Role names a transcript turn's author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one tool invocation requested by the model. Args is the raw
// JSON argument object exactly as the model produced it.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// Turn is a single transcript entry. Assistant turns may carry ToolCalls;
// tool turns carry the ID and name of the call they answer.
type Turn struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

// Completion is one model response: either a plain-text answer or a batch
// of tool calls to execute.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// Completer produces model completions for a transcript. A nil tools slice
// asks for a plain-text answer with tool calling disabled.
type Completer interface {
	Complete(ctx context.Context, turns []Turn, tools []toolreg.Schema) (*Completion, error)
}

// Termination reasons recorded on Result.
const (
	TerminatedCompleted     = "completed"
	TerminatedMaxIterations = "max_iterations"
	TerminatedError         = "error"
	TerminatedCancelled     = "cancelled"
)

// Result is the outcome of one agent run. Transcript is always populated,
// whatever the termination reason.
type Result struct {
	RunID       string           `json:"run_id"`
	Answer      string           `json:"answer"`
	Sources     []toolreg.Source `json:"sources"`
	Transcript  []Turn           `json:"transcript"`
	Iterations  int              `json:"iterations"`
	Termination string           `json:"termination"`
}

// EventType discriminates run events emitted through Config.OnEvent.
type EventType string

const (
	EventIteration  EventType = "iteration"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventAnswer     EventType = "answer"
)

// Event is a progress notification for one run, suitable for streaming to
// a client while the loop executes.
type Event struct {
	Type      EventType       `json:"type"`
	RunID     string          `json:"run_id"`
	Iteration int             `json:"iteration"`
	Tool      string          `json:"tool,omitempty"`
	Args      json.RawMessage `json:"args,omitempty"`
	ErrCode   string          `json:"err_code,omitempty"`
	Answer    string          `json:"answer,omitempty"`
}
