package chat

import (
	"context"
	"time"

	"github.com/obara/supportdesk/pkg/metrics"
)

// Request encapsulates one user turn.
type Request struct {
	SessionID string `json:"sessionId"`
	Question  string `json:"question"`
}

// Response is returned to the HTTP transport.
type Response struct {
	SessionID       string              `json:"sessionId"`
	Question        string              `json:"question"`
	Answer          string              `json:"answer"`
	MatchedQuestion string              `json:"matchedQuestion,omitempty"`
	MatchedAnswer   string              `json:"matchedAnswer,omitempty"`
	Score           float64             `json:"score,omitempty"`
	Source          string              `json:"source"`
	DurationMs      int64               `json:"durationMs"`
	TokenUsage      *metrics.TokenUsage `json:"tokenUsage,omitempty"`
}

// Answer provenance values.
const (
	SourceLLM      = "llm"
	SourceCache    = "cache"
	SourceFallback = "fallback"
)

// Turn is one completed question/answer exchange in a session.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// SummaryResponse carries a condensed view of a session.
type SummaryResponse struct {
	SessionID string `json:"sessionId"`
	Summary   string `json:"summary"`
	Turns     int    `json:"turns"`
}

// CommonFaq is a curated question/answer pair shown before the user asks.
type CommonFaq struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Tags     []string `json:"tags,omitempty"`
}

// RecomputeResult reports the outcome of an explicit embedding rebuild.
type RecomputeResult struct {
	Entries    int   `json:"entries"`
	Dimension  int   `json:"dimension"`
	DurationMs int64 `json:"durationMs"`
}

// AnswerRecord is the payload cached per matched FAQ question.
type AnswerRecord struct {
	Key       string    `json:"key"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"createdAt"`
}

// AnswerStore caches generated answers keyed by matched question. Failures
// here degrade to a fresh LLM call, never to a failed user request.
type AnswerStore interface {
	Get(ctx context.Context, key string) (AnswerRecord, bool, error)
	Save(ctx context.Context, record AnswerRecord, ttl time.Duration) error
}
