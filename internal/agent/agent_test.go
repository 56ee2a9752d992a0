package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/toolreg"
)

// scripted replays canned completions in order, recording each call.
type scripted struct {
	steps []func(turns []Turn, tools []toolreg.Schema) (*Completion, error)
	calls int
	seen  [][]Turn
	tools [][]toolreg.Schema
}

func (s *scripted) Complete(_ context.Context, turns []Turn, tools []toolreg.Schema) (*Completion, error) {
	s.seen = append(s.seen, turns)
	s.tools = append(s.tools, tools)
	if s.calls >= len(s.steps) {
		return nil, fmt.Errorf("unexpected completion call %d", s.calls)
	}
	step := s.steps[s.calls]
	s.calls++
	return step(turns, tools)
}

func answers(text string) func([]Turn, []toolreg.Schema) (*Completion, error) {
	return func([]Turn, []toolreg.Schema) (*Completion, error) {
		return &Completion{Content: text}, nil
	}
}

func callsTools(calls ...ToolCall) func([]Turn, []toolreg.Schema) (*Completion, error) {
	return func([]Turn, []toolreg.Schema) (*Completion, error) {
		return &Completion{ToolCalls: calls}, nil
	}
}

func fails(err error) func([]Turn, []toolreg.Schema) (*Completion, error) {
	return func([]Turn, []toolreg.Schema) (*Completion, error) { return nil, err }
}

func call(id, name, args string) ToolCall {
	return ToolCall{ID: id, Name: name, Args: json.RawMessage(args)}
}

// testRegistry registers an "echo" tool that returns its input, tagging it
// with a source, plus a "slow" tool for ordering tests.
func testRegistry(t *testing.T) *toolreg.Registry {
	t.Helper()
	reg := toolreg.New(2 * time.Second)
	reg.Register(toolreg.Schema{
		Name:        "echo",
		Description: "Echo the input back.",
		Params: []toolreg.Param{
			{Name: "text", Type: toolreg.TypeString, Description: "Text to echo", Required: true},
		},
	}, func(_ context.Context, args toolreg.Args) (*toolreg.ToolResult, error) {
		text := args.String("text")
		return &toolreg.ToolResult{
			Payload: map[string]any{"echo": text},
			Sources: []toolreg.Source{{Title: text, Kind: "note", Locator: text}},
		}, nil
	})
	reg.Register(toolreg.Schema{
		Name:        "slow",
		Description: "Echo after a delay.",
		Params: []toolreg.Param{
			{Name: "text", Type: toolreg.TypeString, Description: "Text to echo", Required: true},
		},
	}, func(ctx context.Context, args toolreg.Args) (*toolreg.ToolResult, error) {
		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &toolreg.ToolResult{Payload: map[string]any{"echo": args.String("text")}}, nil
	})
	return reg
}

func TestRun_DirectAnswer(t *testing.T) {
	llm := &scripted{steps: []func([]Turn, []toolreg.Schema) (*Completion, error){
		answers("paris"),
	}}
	ex := New(llm, testRegistry(t), Config{})

	res, err := ex.Run(context.Background(), "capital of france?")
	require.NoError(t, err)
	assert.Equal(t, "paris", res.Answer)
	// Callers switch on the literal value, so pin it rather than the constant.
	assert.Equal(t, "completed", res.Termination)
	assert.Equal(t, 1, res.Iterations)
	assert.NotEmpty(t, res.RunID)

	// system + user + assistant
	require.Len(t, res.Transcript, 3)
	assert.Equal(t, RoleSystem, res.Transcript[0].Role)
	assert.Contains(t, res.Transcript[0].Content, "echo:")
	assert.Equal(t, "capital of france?", res.Transcript[1].Content)
}

func TestRun_ToolRoundThenAnswer(t *testing.T) {
	llm := &scripted{steps: []func([]Turn, []toolreg.Schema) (*Completion, error){
		callsTools(call("c1", "echo", `{"text":"alpha"}`)),
		answers("done"),
	}}
	ex := New(llm, testRegistry(t), Config{})

	res, err := ex.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "done", res.Answer)
	assert.Equal(t, 2, res.Iterations)

	// system, user, assistant(tool call), tool, assistant(answer)
	require.Len(t, res.Transcript, 5)
	toolTurn := res.Transcript[3]
	assert.Equal(t, RoleTool, toolTurn.Role)
	assert.Equal(t, "c1", toolTurn.ToolCallID)
	assert.Equal(t, "echo", toolTurn.ToolName)
	assert.JSONEq(t, `{"echo":"alpha"}`, toolTurn.Content)

	require.Len(t, res.Sources, 1)
	assert.Equal(t, "alpha", res.Sources[0].Locator)

	// The second completion saw the tool result.
	require.Len(t, llm.seen, 2)
	assert.Equal(t, RoleTool, llm.seen[1][3].Role)
}

func TestRun_ParallelCallsKeepIssuedOrder(t *testing.T) {
	llm := &scripted{steps: []func([]Turn, []toolreg.Schema) (*Completion, error){
		callsTools(
			call("c1", "slow", `{"text":"first"}`),
			call("c2", "echo", `{"text":"second"}`),
		),
		answers("done"),
	}}
	ex := New(llm, testRegistry(t), Config{})

	res, err := ex.Run(context.Background(), "q")
	require.NoError(t, err)

	// The fast call finishes before the slow one, but results follow the
	// order the model issued them.
	require.Len(t, res.Transcript, 6)
	assert.Equal(t, "c1", res.Transcript[3].ToolCallID)
	assert.JSONEq(t, `{"echo":"first"}`, res.Transcript[3].Content)
	assert.Equal(t, "c2", res.Transcript[4].ToolCallID)
	assert.JSONEq(t, `{"echo":"second"}`, res.Transcript[4].Content)
}

func TestRun_DuplicateSourcesCollapsed(t *testing.T) {
	llm := &scripted{steps: []func([]Turn, []toolreg.Schema) (*Completion, error){
		callsTools(
			call("c1", "echo", `{"text":"same"}`),
			call("c2", "echo", `{"text":"same"}`),
		),
		answers("done"),
	}}
	ex := New(llm, testRegistry(t), Config{})

	res, err := ex.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, res.Sources, 1)
}

func TestRun_ToolErrorFedBackToModel(t *testing.T) {
	llm := &scripted{steps: []func([]Turn, []toolreg.Schema) (*Completion, error){
		callsTools(call("c1", "echo", `{"wrong":"arg"}`)),
		answers("recovered"),
	}}
	ex := New(llm, testRegistry(t), Config{})

	res, err := ex.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "recovered", res.Answer)
	assert.Contains(t, res.Transcript[3].Content, "validation_error")
	assert.Empty(t, res.Sources)
}

func TestRun_ProtocolErrorRetriedOnce(t *testing.T) {
	llm := &scripted{steps: []func([]Turn, []toolreg.Schema) (*Completion, error){
		fails(fmt.Errorf("bad payload: %w", apperr.ErrProtocol)),
		answers("ok"),
	}}
	ex := New(llm, testRegistry(t), Config{})

	res, err := ex.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Answer)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 2, llm.calls)
}

func TestRun_ProtocolErrorTwiceFailsRun(t *testing.T) {
	perr := fmt.Errorf("bad payload: %w", apperr.ErrProtocol)
	llm := &scripted{steps: []func([]Turn, []toolreg.Schema) (*Completion, error){
		fails(perr), fails(perr),
	}}
	ex := New(llm, testRegistry(t), Config{})

	res, err := ex.Run(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrProtocol))
	assert.Equal(t, TerminatedError, res.Termination)
	assert.Len(t, res.Transcript, 2)
}

func TestRun_UnavailableNotRetried(t *testing.T) {
	uerr := fmt.Errorf("llm: %w", apperr.ErrUnavailable)
	llm := &scripted{steps: []func([]Turn, []toolreg.Schema) (*Completion, error){
		fails(uerr),
	}}
	ex := New(llm, testRegistry(t), Config{})

	res, err := ex.Run(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrUnavailable))
	assert.Equal(t, TerminatedError, res.Termination)
	assert.Equal(t, 1, llm.calls)
}

func TestRun_CancelledMidCompletion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	llm := &scripted{steps: []func([]Turn, []toolreg.Schema) (*Completion, error){
		func([]Turn, []toolreg.Schema) (*Completion, error) {
			cancel()
			return nil, context.Canceled
		},
	}}
	ex := New(llm, testRegistry(t), Config{})

	res, err := ex.Run(ctx, "q")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, TerminatedCancelled, res.Termination)
	// A cancelled call must not burn the retry.
	assert.Equal(t, 1, llm.calls)
}

func TestRun_TimeoutTwiceReturnsPartialAnswer(t *testing.T) {
	terr := fmt.Errorf("llm: %w", apperr.ErrTimeout)
	llm := &scripted{steps: []func([]Turn, []toolreg.Schema) (*Completion, error){
		callsTools(call("c1", "echo", `{"text":"clue"}`)),
		fails(terr), fails(terr),
	}}
	ex := New(llm, testRegistry(t), Config{})

	res, err := ex.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, TerminatedError, res.Termination)
	assert.Contains(t, res.Answer, "clue")
	assert.Contains(t, res.Answer, "incomplete")
}

func TestRun_MaxIterationsSynthesizesAnswer(t *testing.T) {
	llm := &scripted{steps: []func([]Turn, []toolreg.Schema) (*Completion, error){
		callsTools(call("c1", "echo", `{"text":"a"}`)),
		answers("best effort"),
	}}
	ex := New(llm, testRegistry(t), Config{MaxIterations: 1})

	res, err := ex.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, TerminatedMaxIterations, res.Termination)
	assert.Equal(t, 1, res.Iterations)
	assert.True(t, strings.HasPrefix(res.Answer, "best effort"))
	assert.Contains(t, res.Answer, "incomplete")

	// The wrap-up call must disable tool calling.
	require.Len(t, llm.tools, 2)
	assert.Nil(t, llm.tools[1])
}

func TestRun_CancelledBetweenIterations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	llm := &scripted{steps: []func([]Turn, []toolreg.Schema) (*Completion, error){
		func([]Turn, []toolreg.Schema) (*Completion, error) {
			cancel()
			return &Completion{ToolCalls: []ToolCall{call("c1", "echo", `{"text":"a"}`)}}, nil
		},
	}}
	ex := New(llm, testRegistry(t), Config{})

	res, err := ex.Run(ctx, "q")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, TerminatedCancelled, res.Termination)
	assert.Equal(t, 1, llm.calls)
}

func TestRun_EventsEmitted(t *testing.T) {
	var events []Event
	llm := &scripted{steps: []func([]Turn, []toolreg.Schema) (*Completion, error){
		callsTools(call("c1", "echo", `{"text":"a"}`)),
		answers("done"),
	}}
	ex := New(llm, testRegistry(t), Config{OnEvent: func(ev Event) { events = append(events, ev) }})

	_, err := ex.Run(context.Background(), "q")
	require.NoError(t, err)

	var types []EventType
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []EventType{
		EventIteration, EventToolCall, EventToolResult, EventIteration, EventAnswer,
	}, types)
}
