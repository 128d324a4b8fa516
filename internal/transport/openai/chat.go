package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sort"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talkdb/internal/domain"
)

// Chat is a chat-completion client for generation and function calling.
type Chat struct {
	client      *openai.Client
	model       string
	temperature float32
	user        string
	logger      *zap.Logger
}

// NewChat creates an OpenAI-compatible chat client.
func NewChat(cfg *Config) *Chat {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Chat{
		client:      newClient(cfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		user:        cfg.User,
		logger:      log,
	}
}

// Generate implements domain.Generator.
func (c *Chat) Generate(ctx context.Context, p domain.Prompt) (string, error) {
	comp, err := c.complete(ctx, promptMessages(p), nil)
	if err != nil {
		return "", err
	}
	return comp.Content, nil
}

// GenerateStream implements domain.Generator. Breaking out of the loop
// closes the HTTP stream.
func (c *Chat) GenerateStream(ctx context.Context, p domain.Prompt) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for delta, err := range c.stream(ctx, promptMessages(p), nil) {
			if err != nil {
				yield("", err)
				return
			}
			if delta.Content == "" {
				continue
			}
			if !yield(delta.Content, nil) {
				return
			}
		}
	}
}

// Complete implements domain.ToolCaller.
func (c *Chat) Complete(ctx context.Context, messages []domain.Message, tools []domain.Tool) (domain.Completion, error) {
	return c.complete(ctx, toOpenAIMessages(messages), tools)
}

// CompleteStream implements domain.ToolCaller. Tool-call fragments are
// assembled by index and delivered on the last delta.
func (c *Chat) CompleteStream(
	ctx context.Context, messages []domain.Message, tools []domain.Tool,
) iter.Seq2[domain.CompletionDelta, error] {
	return c.stream(ctx, toOpenAIMessages(messages), tools)
}

func (c *Chat) request(messages []openai.ChatCompletionMessage, tools []domain.Tool) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		User:        c.user,
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return req
}

func (c *Chat) complete(
	ctx context.Context, messages []openai.ChatCompletionMessage, tools []domain.Tool,
) (domain.Completion, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.request(messages, tools))
	if err != nil {
		return domain.Completion{}, parseAPIError("chat", err, domain.ErrGenerationFailure)
	}
	if len(resp.Choices) == 0 {
		return domain.Completion{}, fmt.Errorf("empty chat response: %w", domain.ErrGenerationFailure)
	}
	domain.UsageFromContext(ctx).AddCompletion(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	msg := resp.Choices[0].Message
	out := domain.Completion{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, domain.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

func (c *Chat) stream(
	ctx context.Context, messages []openai.ChatCompletionMessage, tools []domain.Tool,
) iter.Seq2[domain.CompletionDelta, error] {
	return func(yield func(domain.CompletionDelta, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		req := c.request(messages, tools)
		req.Stream = true
		s, err := c.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			yield(domain.CompletionDelta{}, parseAPIError("chat stream", err, domain.ErrGenerationFailure))
			return
		}
		defer s.Close()

		calls := map[int]*domain.ToolCall{}
		for {
			resp, err := s.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				yield(domain.CompletionDelta{}, parseAPIError("chat stream", err, domain.ErrGenerationFailure))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}

			delta := resp.Choices[0].Delta
			for i, tc := range delta.ToolCalls {
				idx := i
				if tc.Index != nil {
					idx = *tc.Index
				}
				call, ok := calls[idx]
				if !ok {
					call = &domain.ToolCall{}
					calls[idx] = call
				}
				if tc.ID != "" {
					call.ID = tc.ID
				}
				if tc.Function.Name != "" {
					call.Name = tc.Function.Name
				}
				call.Arguments += tc.Function.Arguments
			}

			if delta.Content != "" {
				if !yield(domain.CompletionDelta{Content: delta.Content}, nil) {
					return
				}
			}
		}

		if len(calls) > 0 {
			yield(domain.CompletionDelta{ToolCalls: assemble(calls)}, nil)
		}
	}
}

func assemble(calls map[int]*domain.ToolCall) []domain.ToolCall {
	idx := make([]int, 0, len(calls))
	for i := range calls {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]domain.ToolCall, len(idx))
	for i, k := range idx {
		out[i] = *calls[k]
	}
	return out
}

func promptMessages(p domain.Prompt) []openai.ChatCompletionMessage {
	msgs := make([]domain.Message, 0, len(p.Messages)+1)
	if p.System != "" {
		msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: p.System})
	}
	msgs = append(msgs, p.Messages...)
	return toOpenAIMessages(msgs)
}

func toOpenAIMessages(msgs []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		om := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, openai.ToolCall{
				ID:       tc.ID,
				Type:     openai.ToolTypeFunction,
				Function: openai.FunctionCall{Name: tc.Name, Arguments: tc.Arguments},
			})
		}
		out[i] = om
	}
	return out
}
