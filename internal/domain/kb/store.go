package kb

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	apperrors "github.com/obara/supportdesk/pkg/errors"
)

// StoreConfig holds runtime knobs for the embedding store.
type StoreConfig struct {
	// Dimension pins the expected vector size; 0 infers it from the first
	// embedding returned by the provider.
	Dimension int
	// DegradeOnEmbedError substitutes a zero-vector sentinel for entries the
	// provider failed on instead of aborting the whole load.
	DegradeOnEmbedError bool
}

// Store owns the embedded FAQ set for the process lifetime of one loaded
// dataset. Rebuilds are exclusive; queries read the previous snapshot until
// the new one is swapped in atomically.
type Store struct {
	cfg      StoreConfig
	source   Source
	cache    Cache
	embedder Embedder
	index    NearestIndex
	logger   *slog.Logger

	mu       sync.Mutex // serializes Load/Rebuild/Invalidate
	snapshot atomic.Pointer[Snapshot]
}

// NewStore wires up the embedding store. index may be nil when no external
// similarity index is configured.
func NewStore(cfg StoreConfig, source Source, cache Cache, embedder Embedder, index NearestIndex, logger *slog.Logger) *Store {
	return &Store{
		cfg:      cfg,
		source:   source,
		cache:    cache,
		embedder: embedder,
		index:    index,
		logger:   logger.With("component", "kb.store"),
	}
}

// Snapshot returns the current loaded set, if any.
func (s *Store) Snapshot() (*Snapshot, bool) {
	snap := s.snapshot.Load()
	return snap, snap != nil
}

// Load produces the embedded FAQ set, reusing the persisted cache when its
// fingerprint still matches the source file. A missing, malformed, or empty
// source is an explicit error; callers never receive a silently empty set.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fp, err := s.source.Fingerprint()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDataSource, "faq source unavailable", err)
	}

	if entries, ok, err := s.cache.Load(ctx, fp); err != nil {
		s.logger.Warn("embedding cache unreadable, recomputing", "error", err)
	} else if ok {
		snap, err := NewSnapshot(entries, s.cfg.Dimension)
		if err != nil {
			s.logger.Warn("embedding cache rejected, recomputing", "error", err)
		} else {
			s.install(ctx, snap)
			return snap, nil
		}
	}

	return s.rebuildLocked(ctx, fp)
}

// Rebuild discards the cache and recomputes every embedding from the raw
// source. It is the explicit recompute action behind the admin endpoint.
func (s *Store) Rebuild(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cache.Discard(ctx); err != nil {
		s.logger.Warn("embedding cache discard failed", "error", err)
	}
	fp, err := s.source.Fingerprint()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDataSource, "faq source unavailable", err)
	}
	return s.rebuildLocked(ctx, fp)
}

// Invalidate drops the cache and the in-memory snapshot. The next Load
// recomputes from the raw source.
func (s *Store) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Store(nil)
	if err := s.cache.Discard(ctx); err != nil {
		return apperrors.Wrap(apperrors.CodeDataSource, "embedding cache discard failed", err)
	}
	return nil
}

// EmbedQuery produces the vector for a live user query.
func (s *Store) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	input := normalizeEmbedText(text)
	if input == "" {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "query text cannot be empty", nil)
	}
	vectors, err := s.embedder.Embed(ctx, []string{input})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeEmbedding, "embedding provider call failed", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, apperrors.Wrap(apperrors.CodeEmbedding, "embedding provider returned no vector", nil)
	}
	return vectors[0], nil
}

func (s *Store) rebuildLocked(ctx context.Context, fp Fingerprint) (*Snapshot, error) {
	pairs, err := s.source.Read(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDataSource, "failed to read faq source", err)
	}
	if len(pairs) == 0 {
		return nil, apperrors.Wrap(apperrors.CodeDataSource, "faq source contains no entries", nil)
	}

	entries, err := s.embedPairs(ctx, pairs)
	if err != nil {
		return nil, err
	}

	snap, err := NewSnapshot(entries, s.cfg.Dimension)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Save(ctx, fp, entries); err != nil {
		s.logger.Warn("embedding cache persist failed", "error", err)
	}

	s.install(ctx, snap)
	s.logger.Info("faq embeddings loaded", "entries", snap.Len(), "dimension", snap.Dimension())
	return snap, nil
}

// install swaps the current snapshot and mirrors it into the external index.
func (s *Store) install(ctx context.Context, snap *Snapshot) {
	s.snapshot.Store(snap)
	if s.index == nil {
		return
	}
	if err := s.index.Replace(ctx, snap.Entries()); err != nil {
		// The retriever falls back to in-process ranking when the index
		// cannot answer, so a failed sync degrades rather than aborts.
		s.logger.Warn("similarity index sync failed", "error", err)
	}
}

func (s *Store) embedPairs(ctx context.Context, pairs []Pair) ([]Entry, error) {
	texts := make([]string, len(pairs))
	for i, p := range pairs {
		texts[i] = normalizeEmbedText(p.Question)
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err == nil && len(vectors) != len(pairs) {
		err = fmt.Errorf("embedding count mismatch: want %d got %d", len(pairs), len(vectors))
	}
	if err != nil {
		if !s.cfg.DegradeOnEmbedError {
			return nil, apperrors.Wrap(apperrors.CodeEmbedding, "failed to embed faq questions", err)
		}
		s.logger.Warn("batch embedding failed, retrying per entry", "error", err)
		return s.embedPairsDegraded(ctx, pairs, texts)
	}

	entries := make([]Entry, len(pairs))
	for i, p := range pairs {
		entries[i] = Entry{
			Question:  p.Question,
			Answer:    p.Answer,
			Tags:      p.Tags,
			Embedding: vectors[i],
		}
	}
	return entries, nil
}

// embedPairsDegraded retries entry by entry and substitutes zero-vector
// sentinels for entries the provider keeps failing on. Sentinels are flagged
// so ranking can exclude them.
func (s *Store) embedPairsDegraded(ctx context.Context, pairs []Pair, texts []string) ([]Entry, error) {
	dim := s.cfg.Dimension
	entries := make([]Entry, len(pairs))
	degraded := 0
	for i, p := range pairs {
		entries[i] = Entry{Question: p.Question, Answer: p.Answer, Tags: p.Tags}
		vectors, err := s.embedder.Embed(ctx, []string{texts[i]})
		if err == nil && len(vectors) == 1 && len(vectors[0]) > 0 {
			entries[i].Embedding = vectors[0]
			if dim == 0 {
				dim = len(vectors[0])
			}
			continue
		}
		if err != nil {
			s.logger.Warn("embedding failed for faq entry", "question", p.Question, "error", err)
		}
		entries[i].Degraded = true
		degraded++
	}
	if dim == 0 {
		return nil, apperrors.Wrap(apperrors.CodeEmbedding, "embedding provider failed for every faq entry", nil)
	}
	for i := range entries {
		if entries[i].Degraded {
			entries[i].Embedding = make([]float32, dim)
		}
	}
	if degraded > 0 {
		s.logger.Warn("faq entries degraded to zero-vector sentinels", "count", degraded)
	}
	return entries, nil
}

// NewSnapshot enforces uniform dimensionality; a mixed set is corrupt.
// expectedDim pins the vector size, 0 infers it from the first entry.
func NewSnapshot(entries []Entry, expectedDim int) (*Snapshot, error) {
	if len(entries) == 0 {
		return nil, apperrors.Wrap(apperrors.CodeDataSource, "faq set is empty", nil)
	}
	dim := expectedDim
	for _, e := range entries {
		if len(e.Embedding) == 0 {
			return nil, apperrors.Wrap(apperrors.CodeEmbedding, "faq entry missing embedding", nil)
		}
		if dim == 0 {
			dim = len(e.Embedding)
		}
		if len(e.Embedding) != dim {
			return nil, apperrors.Wrap(apperrors.CodeEmbedding,
				fmt.Sprintf("mixed embedding dimensionality: want %d got %d", dim, len(e.Embedding)), nil)
		}
	}
	return &Snapshot{entries: entries, dim: dim}, nil
}

// normalizeEmbedText collapses newlines and trims before a provider call.
func normalizeEmbedText(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
}
