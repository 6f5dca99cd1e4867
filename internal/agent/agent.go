// Package agent runs the conversation loop: it adapts turns to wire
// messages, calls the chat-completions API through the retry policy,
// executes the tool calls the model issues, and loops until the model
// answers in plain text or the iteration ceiling is hit.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ferrule/courier/internal/conversation"
	"github.com/ferrule/courier/internal/events"
	"github.com/ferrule/courier/internal/openrouter"
	"github.com/ferrule/courier/internal/retry"
	"github.com/ferrule/courier/internal/schema"
)

// Transport performs one chat-completions call. *openrouter.Client
// satisfies it; tests substitute scripted fakes.
type Transport interface {
	CreateChatCompletion(ctx context.Context, req openrouter.Request) (*openrouter.Response, error)
}

// ToolExecutor declares callable tools and runs them. Execute must
// not fail the conversation: tool errors come back as the result
// payload so the model can react to them.
type ToolExecutor interface {
	Declarations() []openrouter.Tool
	Execute(ctx context.Context, call conversation.ToolCall) conversation.Turn
}

// Options configures an Agent. Transport and Model are required.
type Options struct {
	Transport     Transport
	Tools         ToolExecutor
	Model         string
	SystemPrompt  string
	MaxIterations int
	Retry         retry.Policy
	Bus           *events.Bus
	// OnUsage is invoked once per API response that reports token
	// usage.
	OnUsage func(conversationID, model, provider string, inputTokens, outputTokens int)
	Logger  *slog.Logger
}

// Structure requests strict structured output for one run.
type Structure struct {
	Name   string
	Schema *schema.Schema
}

// Request is one conversation run: the accumulated turns plus an
// optional structured-output contract.
type Request struct {
	ConversationID string
	Turns          []conversation.Turn
	Structure      *Structure
}

// Result is the outcome of a run. When structured output was
// requested, Data holds the decoded JSON, or the raw reply text when
// the model produced something that does not parse.
type Result struct {
	ConversationID string
	Text           string
	Data           any
	Turns          []conversation.Turn
}

type Agent struct {
	transport     Transport
	tools         ToolExecutor
	model         string
	systemPrompt  string
	maxIterations int
	policy        retry.Policy
	bus           *events.Bus
	onUsage       func(conversationID, model, provider string, inputTokens, outputTokens int)
	logger        *slog.Logger
}

func New(opts Options) *Agent {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 10
	}
	policy := opts.Retry
	if policy.Model == "" {
		policy.Model = opts.Model
	}
	if policy.Logger == nil {
		policy.Logger = logger
	}
	return &Agent{
		transport:     opts.Transport,
		tools:         opts.Tools,
		model:         opts.Model,
		systemPrompt:  opts.SystemPrompt,
		maxIterations: maxIterations,
		policy:        policy,
		bus:           opts.Bus,
		onUsage:       opts.OnUsage,
		logger:        logger,
	}
}

// Generate runs the conversation loop to completion.
func (a *Agent) Generate(ctx context.Context, req Request) (*Result, error) {
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = newID()
	}
	logger := a.logger.With("conversation_id", conversationID)

	turns := make([]conversation.Turn, 0, len(req.Turns)+1)
	if a.systemPrompt != "" && !startsWithSystem(req.Turns) {
		turns = append(turns, conversation.System(a.systemPrompt))
	}
	turns = append(turns, req.Turns...)

	messages, err := a.adaptTurns(turns, logger)
	if err != nil {
		return nil, err
	}

	var tools []openrouter.Tool
	if a.tools != nil {
		tools = a.tools.Declarations()
	}

	var responseFormat *openrouter.ResponseFormat
	if req.Structure != nil {
		responseFormat, err = openrouter.FormatResponseFormat(req.Structure.Name, req.Structure.Schema)
		if err != nil {
			return nil, err
		}
	}

	a.bus.Publish(events.Event{
		Kind:           events.KindRequestStart,
		ConversationID: conversationID,
		Data:           map[string]any{"turns": len(turns), "model": a.model},
	})

	settled := false
	for iteration := 1; iteration <= a.maxIterations; iteration++ {
		a.bus.Publish(events.Event{
			Kind:           events.KindLLMCall,
			ConversationID: conversationID,
			Data:           map[string]any{"iteration": iteration, "messages": len(messages)},
		})

		start := time.Now()
		resp, err := a.policy.Do(ctx, func(ctx context.Context) (*openrouter.Response, error) {
			return a.transport.CreateChatCompletion(ctx, openrouter.Request{
				Model:          a.model,
				Messages:       messages,
				Tools:          tools,
				ResponseFormat: responseFormat,
			})
		})
		if err != nil {
			return nil, err
		}

		a.bus.Publish(events.Event{
			Kind:           events.KindLLMResponse,
			ConversationID: conversationID,
			Data: map[string]any{
				"iteration":   iteration,
				"duration_ms": time.Since(start).Milliseconds(),
				"tool_calls":  len(resp.Choices[0].Message.ToolCalls),
			},
		})
		if a.onUsage != nil && resp.Usage != nil {
			a.onUsage(conversationID, resp.Model, resp.Provider, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		}

		assistantMsg := resp.Choices[0].Message
		assistantTurn, err := a.adaptAssistant(assistantMsg, resp.Text())
		if err != nil {
			return nil, err
		}
		turns = append(turns, assistantTurn)
		messages = append(messages, openrouter.Message{
			Role:       "assistant",
			Content:    assistantMsg.Content,
			ToolCalls:  assistantMsg.ToolCalls,
			ToolCallID: assistantMsg.ToolCallID,
		})

		if len(assistantTurn.ToolCalls) == 0 {
			settled = true
			break
		}
		if a.tools == nil {
			return nil, fmt.Errorf("model requested tool %s but no tools are configured", assistantTurn.ToolCalls[0].Name)
		}

		for _, call := range assistantTurn.ToolCalls {
			a.bus.Publish(events.Event{
				Kind:           events.KindToolCall,
				ConversationID: conversationID,
				Data:           map[string]any{"tool": call.Name, "call_id": call.ID},
			})
			toolStart := time.Now()
			resultTurn := a.tools.Execute(ctx, call)
			a.bus.Publish(events.Event{
				Kind:           events.KindToolDone,
				ConversationID: conversationID,
				Data: map[string]any{
					"tool":        call.Name,
					"call_id":     call.ID,
					"duration_ms": time.Since(toolStart).Milliseconds(),
				},
			})

			turns = append(turns, resultTurn)
			msg, ok, err := openrouter.ToMessage(resultTurn, logger)
			if err != nil {
				return nil, err
			}
			if !ok {
				logger.Warn("tool result not representable", "tool", call.Name)
				continue
			}
			messages = append(messages, msg)
		}
	}

	if !settled {
		return nil, fmt.Errorf("model was still requesting tools after %d iterations, giving up", a.maxIterations)
	}
	last := turns[len(turns)-1]
	if last.Role != conversation.RoleAssistant {
		return nil, fmt.Errorf("conversation ended on a %s turn instead of an assistant reply", last.Role)
	}

	result := &Result{
		ConversationID: conversationID,
		Text:           last.Text,
		Turns:          turns,
	}
	if req.Structure != nil {
		var data any
		if err := json.Unmarshal([]byte(last.Text), &data); err != nil {
			// The raw text is still the answer; hand it over as-is.
			logger.Debug("structured output was not valid JSON, passing raw text through", "error", err)
			result.Data = last.Text
		} else {
			result.Data = data
		}
	}

	a.bus.Publish(events.Event{
		Kind:           events.KindRequestComplete,
		ConversationID: conversationID,
		Data:           map[string]any{"turns": len(turns)},
	})
	return result, nil
}

// adaptTurns converts accumulated turns to wire messages, skipping
// turns the protocol cannot express.
func (a *Agent) adaptTurns(turns []conversation.Turn, logger *slog.Logger) ([]openrouter.Message, error) {
	messages := make([]openrouter.Message, 0, len(turns))
	for _, turn := range turns {
		msg, ok, err := openrouter.ToMessage(turn, logger)
		if err != nil {
			return nil, err
		}
		if !ok {
			logger.Warn("skipping unrepresentable turn", "role", turn.Role)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// adaptAssistant parses the model reply into a turn. Tool call
// arguments that are not valid JSON objects are a protocol violation
// and fail the run.
func (a *Agent) adaptAssistant(msg openrouter.Message, text string) (conversation.Turn, error) {
	calls := make([]conversation.ToolCall, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return conversation.Turn{}, fmt.Errorf("tool call %s has malformed arguments: %w", tc.Function.Name, err)
			}
		}
		calls = append(calls, conversation.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return conversation.Assistant(text, calls...), nil
}

func startsWithSystem(turns []conversation.Turn) bool {
	return len(turns) > 0 && turns[0].Role == conversation.RoleSystem
}

// newID returns a time-ordered conversation ID, falling back to a
// random UUID if v7 generation fails.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
