package synth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/answer"
	"github.com/kailas-cloud/talkdb/internal/domain/retrieval"
)

func TestFromResults_EmptyContext(t *testing.T) {
	gen := &fakeGenerator{reply: "should not be called"}
	s := New(gen, wordCounter{}, 100, nil)

	a, err := s.FromResults(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Equal(t, answer.NoInformation, a.Text)
	assert.NotNil(t, a.Citations)
	assert.Empty(t, a.Citations)
	assert.Empty(t, gen.prompts)
}

func TestFromResults_CitationsMirrorResults(t *testing.T) {
	gen := &fakeGenerator{reply: "  Restart via the deploy job [1].  "}
	s := New(gen, wordCounter{}, 100, nil)
	results := []retrieval.Result{
		result("b", "second", 0.02),
		result("a", "first", 0.03),
	}

	a, err := s.FromResults(context.Background(), "how to restart?", results)
	require.NoError(t, err)

	assert.Equal(t, "Restart via the deploy job [1].", a.Text)
	assert.Equal(t, answer.OriginVector, a.Origin)
	require.Len(t, a.Citations, 2)
	assert.Equal(t, "b", a.Citations[0].DocID)
	assert.Equal(t, "a", a.Citations[1].DocID)
	assert.Equal(t, "space/a", a.Citations[1].Path)
	assert.Equal(t, "confluence", a.Citations[1].Source)
}

func TestFromResults_PromptOrderedByScore(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	s := New(gen, wordCounter{}, 100, nil)

	_, err := s.FromResults(context.Background(), "q", []retrieval.Result{
		result("low", "LOWTEXT", 0.1),
		result("high", "HIGHTEXT", 0.9),
	})
	require.NoError(t, err)

	prompt := gen.lastUser()
	assert.Less(t, strings.Index(prompt, "HIGHTEXT"), strings.Index(prompt, "LOWTEXT"))
	assert.True(t, strings.HasSuffix(prompt, "Question: q"))
}

func TestFromResults_BudgetTruncates(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	s := New(gen, wordCounter{}, 12, nil)

	long := strings.Repeat("word ", 50)
	_, err := s.FromResults(context.Background(), "q", []retrieval.Result{
		result("a", "alpha beta gamma", 0.9),
		result("b", long, 0.5),
		result("c", "never included", 0.1),
	})
	require.NoError(t, err)

	prompt := gen.lastUser()
	assert.Contains(t, prompt, "alpha beta gamma")
	assert.NotContains(t, prompt, "never included")
	assert.Less(t, strings.Count(prompt, "word"), 50)
}

func TestFromResults_GenerationFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("upstream 500")}
	s := New(gen, wordCounter{}, 100, nil)

	_, err := s.FromResults(context.Background(), "q", []retrieval.Result{result("a", "x", 1)})
	require.ErrorIs(t, err, domain.ErrGenerationFailure)
}

func TestFromTable(t *testing.T) {
	gen := &fakeGenerator{reply: "Revenue was 42."}
	s := New(gen, wordCounter{}, 100, nil)
	artifact := answer.SQLArtifact{
		Database: "sales",
		SQL:      "SELECT region, revenue FROM q3",
		Table:    answer.Table{Columns: []string{"region", "revenue"}, Rows: [][]any{{"emea", 42}, {"apac", nil}}},
	}

	a, err := s.FromTable(context.Background(), "q3 revenue?", artifact)
	require.NoError(t, err)

	assert.Equal(t, answer.OriginSQL, a.Origin)
	assert.Empty(t, a.Citations)
	require.NotNil(t, a.SQL)
	assert.Equal(t, artifact.SQL, a.SQL.SQL)
	assert.Contains(t, gen.lastUser(), "emea | 42")
	assert.Contains(t, gen.lastUser(), "apac | NULL")
}

func TestFromTable_NoRows(t *testing.T) {
	gen := &fakeGenerator{reply: "Nothing matched."}
	s := New(gen, wordCounter{}, 100, nil)

	a, err := s.FromTable(context.Background(), "q", answer.SQLArtifact{SQL: "SELECT 1 WHERE false", Table: answer.Table{Columns: []string{"x"}}})
	require.NoError(t, err)
	assert.Contains(t, gen.lastUser(), "(no rows)")
	assert.NotNil(t, a.SQL)
}

func TestJoin_AnchorsOnSQL(t *testing.T) {
	gen := &fakeGenerator{reply: "EMEA leads."}
	s := New(gen, wordCounter{}, 200, nil)
	artifact := answer.SQLArtifact{
		Database: "sales",
		SQL:      "SELECT region FROM q3",
		Table:    answer.Table{Columns: []string{"region"}, Rows: [][]any{{"emea"}}},
	}

	a, err := s.Join(context.Background(), "who leads?", artifact, []retrieval.Result{result("doc", "EMEA growth memo", 0.9)})
	require.NoError(t, err)

	assert.Equal(t, answer.OriginSQLJoin, a.Origin)
	require.NotNil(t, a.SQL)
	require.Len(t, a.Citations, 1)

	prompt := gen.lastUser()
	assert.Less(t, strings.Index(prompt, "SELECT region"), strings.Index(prompt, "EMEA growth memo"))
}

func TestFormatTable_MaxRows(t *testing.T) {
	table := answer.Table{Columns: []string{"n"}, Rows: [][]any{{1}, {2}, {3}}}

	assert.Equal(t, "n\n1\n2\n... 1 more rows", FormatTable(table, 2))
	assert.Equal(t, "n\n1\n2\n3", FormatTable(table, 0))
	assert.Equal(t, "b\nbytes", FormatTable(answer.Table{Columns: []string{"b"}, Rows: [][]any{{[]byte("bytes")}}}, 0))
}

func TestCut(t *testing.T) {
	assert.Equal(t, "one two", cut("one two three four", wordCounter{}, 2))
	assert.Equal(t, "short", cut("short", wordCounter{}, 10))
	assert.Empty(t, cut("one two", wordCounter{}, 0))
}

func TestTableBlock_RowWiderThanBudget(t *testing.T) {
	wide := answer.Table{
		Columns: []string{"note"},
		Rows:    [][]any{{"one two three four five six"}, {"x"}},
	}
	tests := []struct {
		name   string
		table  answer.Table
		budget int
		want   string
	}{
		{"first row cut", wide, 8, "note\none two three\n... 1 more rows"},
		{"single row", answer.Table{Columns: []string{"note"}, Rows: wide.Rows[:1]}, 3, "note\none two"},
		{"only header fits", wide, 5, "note"},
		{"nothing fits", wide, 0, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tableBlock(tc.table, wordCounter{}, tc.budget)
			assert.Equal(t, tc.want, got)
			assert.LessOrEqual(t, wordCounter{}.Count(got), tc.budget)
		})
	}
}

func TestJoin_LogsDocumentsCutByTable(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gen := &fakeGenerator{reply: "ok"}
	s := New(gen, wordCounter{}, 8, zap.New(core))
	artifact := answer.SQLArtifact{
		Database: "sales",
		SQL:      "SELECT note FROM memos",
		Table:    answer.Table{Columns: []string{"note"}, Rows: [][]any{{"a b c d e f"}}},
	}
	results := []retrieval.Result{
		result("doc", "EMEA growth memo", 0.9),
		result("other", "APAC decline memo", 0.8),
	}

	_, err := s.Join(context.Background(), "why?", artifact, results)
	require.NoError(t, err)

	prompt := gen.lastUser()
	assert.Contains(t, prompt, "note\na b c")
	assert.NotContains(t, prompt, "a b c d")
	assert.Contains(t, prompt, "EMEA")
	assert.NotContains(t, prompt, "APAC")

	entries := logs.FilterMessage("Supporting documents cut by table budget").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(1), fields["included"])
	assert.Equal(t, int64(2), fields["retrieved"])
}
