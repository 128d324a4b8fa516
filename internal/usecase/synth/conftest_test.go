package synth

import (
	"context"
	"strings"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/chunk"
	"github.com/kailas-cloud/talkdb/internal/domain/retrieval"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
)

type fakeGenerator struct {
	reply   string
	err     error
	prompts []domain.Prompt
}

func (f *fakeGenerator) Generate(_ context.Context, p domain.Prompt) (string, error) {
	f.prompts = append(f.prompts, p)
	return f.reply, f.err
}

func (f *fakeGenerator) lastUser() string {
	if len(f.prompts) == 0 {
		return ""
	}
	msgs := f.prompts[len(f.prompts)-1].Messages
	return msgs[len(msgs)-1].Content
}

// wordCounter counts whitespace-separated words.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func result(id, text string, score float64) retrieval.Result {
	return retrieval.Result{
		Chunk: chunk.Reconstruct(id, text, source.Confluence, "space/"+id, nil),
		Score: score,
	}
}
