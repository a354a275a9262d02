// Package tokenizer provides approximate token accounting used to budget
// chunk sizes. Counts need not match the completion model's own tokenizer.
package tokenizer

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
)

// Counter returns the number of tokens in a string.
type Counter interface {
	Count(text string) int
}

// CounterFunc adapts a plain function to Counter.
type CounterFunc func(text string) int

func (f CounterFunc) Count(text string) int { return f(text) }

// Tiktoken counts tokens with a reference model's BPE vocabulary.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the vocabulary used by model (e.g. "gpt-4"). The BPE
// file is fetched on first use and cached under TIKTOKEN_CACHE_DIR.
func NewTiktoken(model string) (*Tiktoken, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer for %s: %w", model, err)
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

const charsPerToken = 4

// Approx estimates roughly four characters per token.
type Approx struct{}

func (Approx) Count(text string) int {
	if text == "" {
		return 0
	}
	n := utf8.RuneCountInString(text) / charsPerToken
	if n == 0 {
		n = 1
	}
	return n
}

// New returns the counter named by kind, falling back to Approx when the
// tiktoken vocabulary cannot be loaded.
func New(kind, model string) Counter {
	if kind == "approx" {
		return Approx{}
	}
	tk, err := NewTiktoken(model)
	if err != nil {
		log.Warn().Err(err).Str("model", model).Msg("Falling back to approximate token counts")
		return Approx{}
	}
	return tk
}
