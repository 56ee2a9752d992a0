package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/toolreg"
)

// Config tunes one executor. Zero values fall back to defaults.
type Config struct {
	// MaxIterations caps the number of LLM round trips per run.
	MaxIterations int
	// LLMTimeout bounds each individual completion call.
	LLMTimeout time.Duration
	// OnEvent, when set, receives progress events as the run executes.
	// It is called from the run's goroutine and must not block.
	OnEvent func(Event)
	Logger  *slog.Logger
}

const (
	defaultMaxIterations = 10
	defaultLLMTimeout    = 60 * time.Second
)

// Executor drives agent runs against a fixed completer and tool registry.
// It is safe for concurrent runs.
type Executor struct {
	completer Completer
	registry  *toolreg.Registry
	cfg       Config
	log       *slog.Logger
}

// New creates an executor.
func New(completer Completer, registry *toolreg.Registry, cfg Config) *Executor {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = defaultLLMTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Executor{completer: completer, registry: registry, cfg: cfg, log: log}
}

// Run answers one question. The returned Result always carries the full
// transcript and accumulated sources; err is non-nil only when the run
// could not produce any answer at all.
func (e *Executor) Run(ctx context.Context, question string) (*Result, error) {
	tools := e.registry.Schemas()
	res := &Result{
		RunID: uuid.NewString(),
		Transcript: []Turn{
			{Role: RoleSystem, Content: systemPrompt(tools)},
			{Role: RoleUser, Content: question},
		},
	}
	log := e.log.With("run_id", res.RunID)
	log.Info("agent run started", "question_len", len(question))

	seen := map[string]struct{}{}

	for res.Iterations < e.cfg.MaxIterations {
		if err := ctx.Err(); err != nil {
			res.Termination = TerminatedCancelled
			return res, fmt.Errorf("agent: run cancelled: %w", err)
		}
		res.Iterations++
		e.emit(Event{Type: EventIteration, RunID: res.RunID, Iteration: res.Iterations})

		comp, err := e.complete(ctx, res.Transcript, tools)
		if err != nil && retryable(err) {
			log.Warn("completion failed, retrying once", "error", err)
			comp, err = e.complete(ctx, res.Transcript, tools)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				res.Termination = TerminatedCancelled
				return res, fmt.Errorf("agent: run cancelled: %w", err)
			}
			res.Termination = TerminatedError
			if errors.Is(err, apperr.ErrTimeout) {
				// The model is unreachable but tool results may already
				// hold the answer. Return what we have instead of nothing.
				res.Answer = partialAnswer(res.Sources)
				log.Error("completion timed out twice, returning partial answer")
				return res, nil
			}
			log.Error("completion failed", "error", err)
			return res, fmt.Errorf("agent: completion: %w", err)
		}

		if len(comp.ToolCalls) == 0 {
			res.Transcript = append(res.Transcript, Turn{Role: RoleAssistant, Content: comp.Content})
			res.Answer = comp.Content
			res.Termination = TerminatedCompleted
			e.emit(Event{Type: EventAnswer, RunID: res.RunID, Iteration: res.Iterations, Answer: comp.Content})
			log.Info("agent run answered", "iterations", res.Iterations)
			return res, nil
		}

		res.Transcript = append(res.Transcript, Turn{
			Role:      RoleAssistant,
			Content:   comp.Content,
			ToolCalls: comp.ToolCalls,
		})
		res.Transcript = append(res.Transcript, e.dispatchAll(ctx, res, comp.ToolCalls, seen)...)
	}

	// Iteration cap hit: ask for a closing answer with tools disabled.
	res.Termination = TerminatedMaxIterations
	wrap := append(append([]Turn{}, res.Transcript...), Turn{Role: RoleUser, Content: wrapUpPrompt})
	comp, err := e.complete(ctx, wrap, nil)
	if err != nil {
		log.Warn("wrap-up completion failed", "error", err)
		res.Answer = partialAnswer(res.Sources)
		return res, nil
	}
	res.Answer = comp.Content + "\n\n" + truncationNotice
	res.Transcript = append(res.Transcript, Turn{Role: RoleAssistant, Content: res.Answer})
	e.emit(Event{Type: EventAnswer, RunID: res.RunID, Iteration: res.Iterations, Answer: res.Answer})
	log.Info("agent run hit iteration cap", "iterations", res.Iterations)
	return res, nil
}

// retryable reports whether a completion failure is worth one more call.
// Timeouts and malformed responses are transient; a cancelled context or an
// unreachable endpoint will not improve on the second attempt.
func retryable(err error) bool {
	return errors.Is(err, apperr.ErrTimeout) || errors.Is(err, apperr.ErrProtocol)
}

func (e *Executor) complete(ctx context.Context, turns []Turn, tools []toolreg.Schema) (*Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.LLMTimeout)
	defer cancel()
	return e.completer.Complete(ctx, turns, tools)
}

// dispatchAll runs a batch of tool calls concurrently and returns their
// result turns in the order the model issued the calls, so the transcript
// is deterministic regardless of completion timing.
func (e *Executor) dispatchAll(ctx context.Context, res *Result, calls []ToolCall, seen map[string]struct{}) []Turn {
	results := make([]toolreg.ToolResult, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		e.emit(Event{Type: EventToolCall, RunID: res.RunID, Iteration: res.Iterations, Tool: call.Name, Args: call.Args})
		g.Go(func() error {
			results[i] = e.registry.Dispatch(gctx, call.Name, call.Args)
			return nil
		})
	}
	_ = g.Wait() // dispatch reports failures in-band, never as errors

	turns := make([]Turn, len(calls))
	for i, call := range calls {
		r := results[i]
		turns[i] = Turn{
			Role:       RoleTool,
			Content:    renderResult(r),
			ToolCallID: call.ID,
			ToolName:   call.Name,
		}
		code := ""
		if r.Err != nil {
			code = r.Err.Code
		} else {
			for _, s := range r.Sources {
				key := s.Kind + "\x00" + s.Locator
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				res.Sources = append(res.Sources, s)
			}
		}
		e.emit(Event{Type: EventToolResult, RunID: res.RunID, Iteration: res.Iterations, Tool: call.Name, ErrCode: code})
	}
	return turns
}

// renderResult serializes a tool outcome for the model. Errors are encoded
// under an "error" key so the model can distinguish them from payloads.
func renderResult(r toolreg.ToolResult) string {
	var body any = r.Payload
	if r.Err != nil {
		body = map[string]any{"error": r.Err}
	}
	out, err := json.Marshal(body)
	if err != nil {
		return fmt.Sprintf(`{"error":{"code":"tool_failed","message":%q}}`, err.Error())
	}
	return string(out)
}

func partialAnswer(sources []toolreg.Source) string {
	if len(sources) == 0 {
		return truncationNotice
	}
	var titles string
	for i, s := range sources {
		if i > 0 {
			titles += ", "
		}
		titles += s.Title
	}
	return fmt.Sprintf("The following notes appear relevant: %s.\n\n%s", titles, truncationNotice)
}

func (e *Executor) emit(ev Event) {
	if e.cfg.OnEvent != nil {
		e.cfg.OnEvent(ev)
	}
}
