package synth

import (
	"context"

	"github.com/kailas-cloud/talkdb/internal/domain"
)

// Generator produces the answer text from a prompt.
type Generator interface {
	Generate(ctx context.Context, p domain.Prompt) (string, error)
}

// TokenCounter measures prompt context size.
type TokenCounter interface {
	Count(text string) int
}
