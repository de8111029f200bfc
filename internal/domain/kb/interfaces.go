package kb

import "context"

// Source yields raw FAQ pairs from a tabular file.
type Source interface {
	Read(ctx context.Context) ([]Pair, error)
	Fingerprint() (Fingerprint, error)
}

// Cache persists embedded entries so a reload avoids recomputing vectors.
// Load reports a miss (false) when no cache exists or the fingerprint is
// stale; the cache is always rewritten in full, never patched.
type Cache interface {
	Load(ctx context.Context, fp Fingerprint) ([]Entry, bool, error)
	Save(ctx context.Context, fp Fingerprint, entries []Entry) error
	Discard(ctx context.Context) error
}

// Embedder turns texts into fixed-dimensionality vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// NearestIndex is an optional external similarity index (pgvector). Replace
// swaps the indexed set wholesale; degraded sentinel entries are never
// indexed.
type NearestIndex interface {
	Replace(ctx context.Context, entries []Entry) error
	Nearest(ctx context.Context, embedding []float32, k int) ([]Match, error)
}
