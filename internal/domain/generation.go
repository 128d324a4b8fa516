package domain

import (
	"context"
	"iter"
)

// Message roles understood by generation backends.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of a chat prompt.
type Message struct {
	Role       string
	Content    string
	Name       string
	ToolCallID string
	ToolCalls  []ToolCall
}

// Prompt is the input of a single generation call.
type Prompt struct {
	System   string
	Messages []Message
}

// UserPrompt builds a prompt with a system instruction and one user message.
func UserPrompt(system, user string) Prompt {
	return Prompt{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: user}},
	}
}

// Generator produces natural-language completions.
//
// GenerateStream yields text fragments strictly in generation order. The
// sequence is finite and single-use; breaking out of the range loop or
// cancelling ctx stops the backend call. A non-nil error is always the last
// element.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
	GenerateStream(ctx context.Context, p Prompt) iter.Seq2[string, error]
}

// Tool describes a function the model may call.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema object
}

// ToolCall is a model request to invoke a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON
}

// Completion is a model reply that may request tool calls instead of answering.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// ToolCaller is a chat model that supports function calling.
type ToolCaller interface {
	Complete(ctx context.Context, messages []Message, tools []Tool) (Completion, error)
	CompleteStream(ctx context.Context, messages []Message, tools []Tool) iter.Seq2[CompletionDelta, error]
}

// CompletionDelta is one streamed piece of a Completion. Content fragments
// arrive in order; ToolCalls is set only on the final delta, fully assembled.
type CompletionDelta struct {
	Content   string
	ToolCalls []ToolCall
}
