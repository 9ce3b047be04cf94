package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates prompt/completion token counts for providers
// that don't report exact usage (or for pre-flight budget checks before
// a call is even issued). Grounded on github.com/pkoukk/tiktoken-go, a
// teacher go.mod dependency carried unchanged.
type TokenCounter struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewTokenCounter loads the cl100k_base encoding, the closest stand-in
// tiktoken ships for non-OpenAI models; it is used here purely as a
// length estimator, not for exact provider-side accounting.
func NewTokenCounter() (*TokenCounter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &TokenCounter{enc: enc}, nil
}

// Count returns the estimated token length of text.
func (t *TokenCounter) Count(text string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.Encode(text, nil, nil))
}

// CountMessages sums the estimated token length across a chat history,
// adding a small per-message overhead to approximate role/framing tokens.
func (t *TokenCounter) CountMessages(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += t.Count(m.Content) + 4
	}
	return total
}
