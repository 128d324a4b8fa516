package indexing

import (
	"regexp"
	"strings"
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// split packs whole paragraphs into pieces of at most maxTokens. A paragraph
// that alone exceeds the limit is cut into word windows.
func split(text string, counter TokenCounter, maxTokens int) []string {
	var (
		out     []string
		current []string
		size    int
	)
	flush := func() {
		if len(current) > 0 {
			out = append(out, strings.Join(current, "\n\n"))
			current, size = nil, 0
		}
	}

	for _, p := range paragraphBreak.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n := counter.Count(p)
		if n > maxTokens {
			flush()
			out = append(out, windows(p, counter, maxTokens)...)
			continue
		}
		if size+n > maxTokens {
			flush()
		}
		current = append(current, p)
		size += n
	}
	flush()
	return out
}

// windows cuts text into consecutive word runs of at most maxTokens.
func windows(text string, counter TokenCounter, maxTokens int) []string {
	words := strings.Fields(text)
	var out []string
	for start := 0; start < len(words); {
		end := start + 1
		for end < len(words) && counter.Count(strings.Join(words[start:end+1], " ")) <= maxTokens {
			end++
		}
		out = append(out, strings.Join(words[start:end], " "))
		start = end
	}
	return out
}
