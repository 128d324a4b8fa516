// Package tokenizer counts tokens for context and memory budgets.
package tokenizer

import (
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts model tokens in a text.
type Counter interface {
	Count(text string) int
}

// Tiktoken counts with the BPE encoding of an OpenAI model.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
	mu  sync.Mutex
}

// NewTiktoken loads the encoding for model, falling back to cl100k_base for
// unknown model names. Loading may fetch the BPE ranks on first use.
func NewTiktoken(model string) (*Tiktoken, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		if err != nil {
			return nil, fmt.Errorf("load tiktoken encoding for %s: %w", model, err)
		}
	}
	return &Tiktoken{enc: enc}, nil
}

// Count returns the exact token count.
func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.Encode(text, nil, nil))
}

// Estimator approximates token counts from character classes:
// about 4 characters per token for Latin text and 1.5 for CJK.
type Estimator struct{}

// Count returns the estimated token count, at least 1 for non-empty text.
func (Estimator) Count(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	total := utf8.RuneCountInString(text)
	var cjk int
	for _, r := range text {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			cjk++
		}
	}

	n := int(float64(cjk)/1.5 + float64(total-cjk)/4.0)
	if n == 0 {
		n = 1
	}
	return n
}

// New returns a tiktoken counter for model, or the estimator together with
// the load error when the encoding is unavailable.
func New(model string) (Counter, error) {
	t, err := NewTiktoken(model)
	if err != nil {
		return Estimator{}, err
	}
	return t, nil
}
