// Package synth turns retrieved evidence into an answer with citations.
package synth

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/answer"
	"github.com/kailas-cloud/talkdb/internal/domain/retrieval"
	"github.com/kailas-cloud/talkdb/internal/logger"
)

// DefaultBudget is the default context size in tokens.
const DefaultBudget = 3000

// Synthesizer builds prompts from evidence and asks the generator for an answer.
type Synthesizer struct {
	gen     Generator
	counter TokenCounter
	budget  int
	logger  *zap.Logger
}

// New creates a Synthesizer with a context budget in tokens.
func New(gen Generator, counter TokenCounter, budget int, log *zap.Logger) *Synthesizer {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Synthesizer{gen: gen, counter: counter, budget: budget, logger: log}
}

// FromResults answers query from ranked chunks. Citations mirror results in
// order and identity; the prompt lists chunks highest score first. Empty
// results yield the no-information answer without a generator call.
func (s *Synthesizer) FromResults(ctx context.Context, query string, results []retrieval.Result) (answer.Answer, error) {
	if len(results) == 0 {
		return answer.Empty(), nil
	}

	ordered := slices.Clone(results)
	slices.SortStableFunc(ordered, func(a, b retrieval.Result) int { return cmp.Compare(b.Score, a.Score) })

	block, included := contextBlock(ordered, s.counter, s.budget)
	if included < len(ordered) {
		logger.FromContext(ctx, s.logger).Debug("Context budget reached",
			zap.Int("included", included), zap.Int("retrieved", len(ordered)), zap.Int("budget", s.budget))
	}

	text, err := s.generate(ctx, domain.UserPrompt(systemPrompt,
		"Context:\n"+block+"\n\nQuestion: "+query))
	if err != nil {
		return answer.Answer{}, err
	}

	return answer.Answer{
		Text:      text,
		Citations: answer.CitationsFrom(results),
		Origin:    answer.OriginVector,
	}, nil
}

// FromTable answers query from a SQL result. The SQL artifact replaces citations.
func (s *Synthesizer) FromTable(ctx context.Context, query string, artifact answer.SQLArtifact) (answer.Answer, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "SQL (%s):\n%s\n\nResult:\n", artifact.Database, artifact.SQL)
	if artifact.Table.Empty() {
		b.WriteString("(no rows)")
	} else {
		b.WriteString(tableBlock(artifact.Table, s.counter, s.budget))
	}

	text, err := s.generate(ctx, domain.UserPrompt(sqlSystemPrompt, b.String()+"\n\nQuestion: "+query))
	if err != nil {
		return answer.Answer{}, err
	}

	a := artifact
	return answer.Answer{
		Text:      text,
		Citations: []answer.Citation{},
		SQL:       &a,
		Origin:    answer.OriginSQL,
	}, nil
}

// Join answers from a SQL result anchored first in the prompt, with retrieved
// chunks as supporting context. Half the budget goes to the table.
func (s *Synthesizer) Join(
	ctx context.Context, query string, artifact answer.SQLArtifact, results []retrieval.Result,
) (answer.Answer, error) {
	tableBudget := s.budget / 2
	table := tableBlock(artifact.Table, s.counter, tableBudget)

	var b strings.Builder
	fmt.Fprintf(&b, "SQL (%s):\n%s\n\nResult:\n%s", artifact.Database, artifact.SQL, table)
	if len(results) > 0 {
		remaining := max(s.budget-s.counter.Count(table), 0)
		block, included := contextBlock(results, s.counter, remaining)
		if block != "" {
			b.WriteString("\n\nSupporting documents:\n" + block)
		}
		if included < len(results) {
			logger.FromContext(ctx, s.logger).Debug("Supporting documents cut by table budget",
				zap.Int("included", included), zap.Int("retrieved", len(results)), zap.Int("remaining", remaining))
		}
	}

	text, err := s.generate(ctx, domain.UserPrompt(sqlSystemPrompt, b.String()+"\n\nQuestion: "+query))
	if err != nil {
		return answer.Answer{}, err
	}

	a := artifact
	return answer.Answer{
		Text:      text,
		Citations: answer.CitationsFrom(results),
		SQL:       &a,
		Origin:    answer.OriginSQLJoin,
	}, nil
}

func (s *Synthesizer) generate(ctx context.Context, p domain.Prompt) (string, error) {
	text, err := s.gen.Generate(ctx, p)
	if err != nil {
		if errors.Is(err, domain.ErrGenerationFailure) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationFailure, err)
	}
	return strings.TrimSpace(text), nil
}
