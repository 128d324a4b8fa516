package synth

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/talkdb/internal/domain/answer"
	"github.com/kailas-cloud/talkdb/internal/domain/retrieval"
)

const systemPrompt = `You answer questions for an internal knowledge assistant.
Use only the provided context. Refer to documents by their bracketed number, e.g. [2].
If the context does not contain the answer, say so plainly instead of guessing.`

const sqlSystemPrompt = `You answer questions from the result of a SQL query.
Use the table as the primary evidence and state figures exactly as they appear.
Supporting documents, when present, may add explanation but never override the table.`

// contextBlock renders chunks in order until budget tokens are used. A chunk
// that does not fit is cut to the remaining budget; later chunks are dropped.
func contextBlock(results []retrieval.Result, counter TokenCounter, budget int) (string, int) {
	var b strings.Builder
	used := 0
	included := 0
	for i, r := range results {
		header := fmt.Sprintf("[%d] %s", i+1, r.Chunk.Source())
		if p := r.Chunk.Path(); p != "" {
			header += " " + p
		}
		entry := header + "\n" + strings.TrimSpace(r.Chunk.Text()) + "\n\n"

		cost := counter.Count(entry)
		if used+cost > budget {
			remaining := budget - used - counter.Count(header)
			if remaining <= 0 {
				break
			}
			text := cut(strings.TrimSpace(r.Chunk.Text()), counter, remaining)
			if text == "" {
				break
			}
			b.WriteString(header + "\n" + text + "\n\n")
			included++
			break
		}
		b.WriteString(entry)
		used += cost
		included++
	}
	return strings.TrimSpace(b.String()), included
}

// cut shortens text to at most limit tokens on a word boundary.
func cut(text string, counter TokenCounter, limit int) string {
	if counter.Count(text) <= limit {
		return text
	}
	words := strings.Fields(text)
	lo, hi := 0, len(words)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if counter.Count(strings.Join(words[:mid], " ")) <= limit {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return strings.Join(words[:lo], " ")
}

// FormatTable renders a table as pipe-separated text, at most maxRows rows.
// maxRows <= 0 renders every row.
func FormatTable(t answer.Table, maxRows int) string {
	var b strings.Builder
	b.WriteString(strings.Join(t.Columns, " | "))
	b.WriteByte('\n')

	rows := t.Rows
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	for _, row := range rows {
		b.WriteString(formatRow(row))
		b.WriteByte('\n')
	}
	if len(rows) < len(t.Rows) {
		fmt.Fprintf(&b, "... %d more rows\n", len(t.Rows)-len(rows))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatRow(row []any) string {
	cells := make([]string, len(row))
	for i, v := range row {
		cells[i] = formatCell(v)
	}
	return strings.Join(cells, " | ")
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

// tableBlock renders as many rows as fit into budget. When not even one row
// fits, the first row is cut to what the header leaves.
func tableBlock(t answer.Table, counter TokenCounter, budget int) string {
	full := FormatTable(t, 0)
	if counter.Count(full) <= budget {
		return full
	}
	lo, hi := 0, len(t.Rows)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if counter.Count(FormatTable(t, mid)) <= budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	if lo > 0 {
		return FormatTable(t, lo)
	}

	head := strings.Join(t.Columns, " | ")
	if len(t.Rows) == 0 {
		return cut(head, counter, budget)
	}
	more := fmt.Sprintf("... %d more rows", len(t.Rows)-1)
	remaining := budget - counter.Count(head)
	if len(t.Rows) > 1 {
		remaining -= counter.Count(more)
	}
	row := ""
	if remaining > 0 {
		row = cut(formatRow(t.Rows[0]), counter, remaining)
	}
	if row == "" {
		return cut(head, counter, budget)
	}
	if len(t.Rows) > 1 {
		return head + "\n" + row + "\n" + more
	}
	return head + "\n" + row
}
