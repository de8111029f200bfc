package kb

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	apperrors "github.com/obara/supportdesk/pkg/errors"
)

// RetrieverConfig holds ranking knobs.
type RetrieverConfig struct {
	// SimilarityThreshold drops matches scoring below it. A negative value
	// disables the floor, which reproduces pure argmax selection.
	SimilarityThreshold float64
}

// Retriever ranks FAQ entries against a live query. It is stateless per
// call and reads whichever snapshot is current when the query starts.
type Retriever struct {
	cfg    RetrieverConfig
	store  *Store
	index  NearestIndex
	logger *slog.Logger
}

// NewRetriever wires the retriever. index may be nil; when set, nearest
// lookups are delegated to it and in-process ranking remains the fallback.
func NewRetriever(cfg RetrieverConfig, store *Store, index NearestIndex, logger *slog.Logger) *Retriever {
	return &Retriever{
		cfg:    cfg,
		store:  store,
		index:  index,
		logger: logger.With("component", "kb.retriever"),
	}
}

// Query returns up to k entries ranked by cosine similarity, best first.
// An empty store yields an empty result, not an error. Degraded sentinel
// entries and zero-magnitude vectors are never ranked.
func (r *Retriever) Query(ctx context.Context, text string, k int) ([]Match, error) {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < 2 {
		// Not worth an embedding call.
		return nil, nil
	}
	if k <= 0 {
		k = 1
	}

	snap, ok := r.store.Snapshot()
	if !ok {
		loaded, err := r.store.Load(ctx)
		if err != nil {
			// "no FAQ available" is an expected state the caller maps to a
			// fallback answer; unreachable providers are not.
			if apperrors.IsCode(err, apperrors.CodeDataSource) {
				r.logger.Warn("faq store unavailable, returning no match", "error", err)
				return nil, nil
			}
			return nil, err
		}
		snap = loaded
	}
	if snap.Len() == 0 {
		return nil, nil
	}

	query, err := r.store.EmbedQuery(ctx, trimmed)
	if err != nil {
		return nil, err
	}

	if r.index != nil {
		matches, err := r.index.Nearest(ctx, query, k)
		if err == nil {
			return r.applyThreshold(matches), nil
		}
		r.logger.Warn("similarity index lookup failed, ranking in process", "error", err)
	}

	return r.applyThreshold(r.rank(snap, query, k)), nil
}

// rank scores every candidate and keeps the top k. The sort is stable so
// score ties resolve in original load order.
func (r *Retriever) rank(snap *Snapshot, query []float32, k int) []Match {
	entries := snap.Entries()
	matches := make([]Match, 0, len(entries))
	for _, e := range entries {
		if e.Degraded {
			continue
		}
		score, ok := cosineSimilarity(query, e.Embedding)
		if !ok {
			continue
		}
		matches = append(matches, Match{Entry: e, Score: score})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func (r *Retriever) applyThreshold(matches []Match) []Match {
	if r.cfg.SimilarityThreshold < 0 {
		return matches
	}
	kept := matches[:0]
	for _, m := range matches {
		if m.Score >= r.cfg.SimilarityThreshold {
			kept = append(kept, m)
		}
	}
	return kept
}
