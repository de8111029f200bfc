package chat

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// sessionHistory keeps a bounded rolling log of turns per session, newest
// first, matching the order answers are shown in.
type sessionHistory struct {
	mu       sync.Mutex
	maxTurns int
	sessions map[string][]Turn
}

func newSessionHistory(maxTurns int) *sessionHistory {
	if maxTurns <= 0 {
		maxTurns = 20
	}
	return &sessionHistory{
		maxTurns: maxTurns,
		sessions: make(map[string][]Turn),
	}
}

func (h *sessionHistory) append(sessionID string, turn Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	turns := append([]Turn{turn}, h.sessions[sessionID]...)
	if len(turns) > h.maxTurns {
		turns = turns[:h.maxTurns]
	}
	h.sessions[sessionID] = turns
}

// recent returns up to n turns, newest first.
func (h *sessionHistory) recent(sessionID string, n int) []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	turns := h.sessions[sessionID]
	if n > 0 && len(turns) > n {
		turns = turns[:n]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

func (h *sessionHistory) size(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions[sessionID])
}

// tokenCounter counts prompt tokens with the model's tiktoken encoding,
// falling back to an upper-biased estimate when the encoding cannot be
// loaded (offline environments).
type tokenCounter struct {
	once     sync.Once
	model    string
	encoding *tiktoken.Tiktoken
}

func newTokenCounter(model string) *tokenCounter {
	return &tokenCounter{model: model}
}

func (c *tokenCounter) count(text string) int {
	c.once.Do(func() {
		enc, err := tiktoken.EncodingForModel(c.model)
		if err != nil {
			enc, err = tiktoken.GetEncoding("cl100k_base")
		}
		if err == nil {
			c.encoding = enc
		}
	})
	if c.encoding != nil {
		return len(c.encoding.Encode(text, nil, nil))
	}
	return estimateTokens(text)
}

func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	runes := utf8.RuneCountInString(text)
	words := len(strings.Fields(text))
	byRunes := (runes + 1) / 2
	if byRunes < words {
		return words
	}
	return byRunes
}

// trimToBudget drops the oldest turns until the kept ones fit the token
// budget. Input is newest first; output is oldest first, ready for the
// prompt. A budget of 0 disables trimming.
func trimToBudget(turns []Turn, budget int, count func(string) int) []Turn {
	kept := make([]Turn, 0, len(turns))
	total := 0
	for _, turn := range turns {
		cost := count(turn.Question) + count(turn.Answer)
		if budget > 0 && total+cost > budget {
			break
		}
		total += cost
		kept = append(kept, turn)
	}
	// reverse into chronological order
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}
