// Package llm adapts the OpenAI chat completions API to the agent's
// Completer interface, translating transcripts and tool schemas both ways.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/starford/ansuz/internal/agent"
	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/toolreg"
)

// Client is an OpenAI-backed agent.Completer. It works against any
// OpenAI-compatible endpoint via base URL override.
type Client struct {
	api   openai.Client
	model string
}

var _ agent.Completer = (*Client)(nil)

// New creates a client. baseURL may be empty for the public API.
func New(apiKey, baseURL, model string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{api: openai.NewClient(opts...), model: model}
}

// Complete sends the transcript and returns the model's next move. A
// response carrying neither text nor tool calls is a protocol violation.
func (c *Client) Complete(ctx context.Context, turns []agent.Turn, tools []toolreg.Schema) (*agent.Completion, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: convertTurns(turns),
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm: response has no choices: %w", apperr.ErrProtocol)
	}

	msg := resp.Choices[0].Message
	comp := &agent.Completion{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		comp.ToolCalls = append(comp.ToolCalls, agent.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: []byte(tc.Function.Arguments),
		})
	}
	if comp.Content == "" && len(comp.ToolCalls) == 0 {
		return nil, fmt.Errorf("llm: response has neither content nor tool calls: %w", apperr.ErrProtocol)
	}
	return comp, nil
}

func convertTurns(turns []agent.Turn) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case agent.RoleSystem:
			out = append(out, openai.SystemMessage(t.Content))
		case agent.RoleUser:
			out = append(out, openai.UserMessage(t.Content))
		case agent.RoleAssistant:
			if len(t.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(t.Content))
				continue
			}
			msg := openai.ChatCompletionAssistantMessageParam{}
			if t.Content != "" {
				msg.Content.OfString = openai.String(t.Content)
			}
			for _, call := range t.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: call.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Name,
						Arguments: string(call.Args),
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &msg})
		case agent.RoleTool:
			out = append(out, openai.ToolMessage(t.Content, t.ToolCallID))
		}
	}
	return out
}

func convertTools(tools []toolreg.Schema) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  openai.FunctionParameters(t.Parameters()),
			},
		})
	}
	return out
}

// classify folds SDK and transport errors into the app error taxonomy so
// the agent loop can decide between retry, partial answer, and failure.
func classify(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("llm: completion timed out: %w", apperr.ErrTimeout)
	case errors.Is(err, context.Canceled):
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("llm: api status %d: %w", apiErr.StatusCode, apperr.ErrUnavailable)
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return fmt.Errorf("llm: completion timed out: %w", apperr.ErrTimeout)
	}
	return fmt.Errorf("llm: %w: %v", apperr.ErrUnavailable, err)
}
