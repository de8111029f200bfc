package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/obara/supportdesk/internal/domain/kb"
	"github.com/obara/supportdesk/internal/infra/llm/chatgpt"
)

// ChatGPTEmbedder calls an OpenAI-compatible embeddings API. Inputs are
// grouped into batches under a token budget so one FAQ load costs a handful
// of provider calls instead of one per entry.
type ChatGPTEmbedder struct {
	client *chatgpt.Client
	model  string
	logger *slog.Logger
}

// NewChatGPTEmbedder constructs an embedder backed by the chatgpt client.
func NewChatGPTEmbedder(client *chatgpt.Client, model string, logger *slog.Logger) *ChatGPTEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatGPTEmbedder{
		client: client,
		model:  strings.TrimSpace(model),
		logger: logger.With("component", "embedder.chatgpt"),
	}
}

// Embed requests embeddings for the given texts, preserving input order.
func (e *ChatGPTEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var (
		out            [][]float32
		batch          []string
		batchTokens    int
		maxBatchTokens = 200_000 // stay well below the provider's 300k cap
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		resp, err := e.client.CreateEmbedding(ctx, chatgpt.EmbeddingRequest{
			Model: e.model,
			Input: batch,
		})
		if err != nil {
			return fmt.Errorf("create embedding: %w", err)
		}
		if len(resp.Data) != len(batch) {
			return fmt.Errorf("embedding result count mismatch: expected %d got %d", len(batch), len(resp.Data))
		}
		// Place by index; the provider documents order but keys results anyway.
		base := len(out)
		out = append(out, make([][]float32, len(batch))...)
		for _, item := range resp.Data {
			if item.Index < 0 || item.Index >= len(batch) {
				return fmt.Errorf("embedding result index out of range: %d", item.Index)
			}
			vec := make([]float32, len(item.Embedding))
			copy(vec, item.Embedding)
			out[base+item.Index] = vec
		}
		batch = batch[:0]
		batchTokens = 0
		return nil
	}

	for _, text := range texts {
		tokens := estimateTokens(text)
		if tokens > maxBatchTokens {
			return nil, fmt.Errorf("text too large for embedding request: estimated tokens=%d", tokens)
		}
		if batchTokens+tokens > maxBatchTokens && len(batch) > 0 {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		batch = append(batch, text)
		batchTokens += tokens
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

var _ kb.Embedder = (*ChatGPTEmbedder)(nil)

// estimateTokens provides a rough, upper-biased token count for batch
// sizing. Exact counting is not needed here.
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
