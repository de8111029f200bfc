package kb

import (
	"context"
	"testing"

	apperrors "github.com/obara/supportdesk/pkg/errors"
)

func TestStoreLoadUsesFreshCache(t *testing.T) {
	fp := Fingerprint{Path: "faq.csv", ModTime: 42, Size: 100}
	cache := &stubCache{entries: testEntries(), fp: fp}
	embed := &stubEmbedder{dim: 3}
	store := NewStore(StoreConfig{}, &stubSource{fp: fp}, cache, embed, nil, testLogger())

	snap, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.Len() != 3 || snap.Dimension() != 3 {
		t.Fatalf("unexpected snapshot: len=%d dim=%d", snap.Len(), snap.Dimension())
	}
	if embed.calls != 0 {
		t.Fatalf("fresh cache must skip the embedder, got %d calls", embed.calls)
	}
}

func TestStoreLoadRecomputesOnStaleCache(t *testing.T) {
	stale := Fingerprint{Path: "faq.csv", ModTime: 1, Size: 100}
	current := Fingerprint{Path: "faq.csv", ModTime: 2, Size: 120}
	cache := &stubCache{entries: testEntries(), fp: stale}
	embed := &stubEmbedder{dim: 3}
	src := &stubSource{
		fp:    current,
		pairs: []Pair{{Question: "q1", Answer: "a1"}, {Question: "q2", Answer: "a2"}},
	}
	store := NewStore(StoreConfig{}, src, cache, embed, nil, testLogger())

	snap, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.Len() != 2 {
		t.Fatalf("want 2 recomputed entries, got %d", snap.Len())
	}
	if embed.calls != 1 {
		t.Fatalf("stale cache must recompute in one batch, got %d calls", embed.calls)
	}
	if cache.saves != 1 || cache.fp != current {
		t.Fatalf("recomputed entries must be persisted under the new fingerprint")
	}
}

func TestStoreLoadRejectsEmptySource(t *testing.T) {
	store := NewStore(StoreConfig{}, &stubSource{fp: Fingerprint{Path: "faq.csv"}}, &stubCache{}, &stubEmbedder{dim: 3}, nil, testLogger())

	if _, err := store.Load(context.Background()); !apperrors.IsCode(err, apperrors.CodeDataSource) {
		t.Fatalf("want data_source_error for empty source, got %v", err)
	}
}

func TestStoreDegradesFailingEntriesToSentinels(t *testing.T) {
	src := &stubSource{
		fp: Fingerprint{Path: "faq.csv", ModTime: 1, Size: 1},
		pairs: []Pair{
			{Question: "good", Answer: "a"},
			{Question: "bad", Answer: "b"},
		},
	}
	embed := &stubEmbedder{dim: 3, failOn: map[string]bool{"bad": true}}
	store := NewStore(StoreConfig{DegradeOnEmbedError: true}, src, &stubCache{}, embed, nil, testLogger())

	snap, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	entries := snap.Entries()
	if len(entries) != 2 {
		t.Fatalf("degraded load must keep every entry, got %d", len(entries))
	}
	if entries[0].Degraded || !entries[1].Degraded {
		t.Fatalf("wrong degradation flags: %+v", entries)
	}
	for _, v := range entries[1].Embedding {
		if v != 0 {
			t.Fatalf("sentinel embedding must be the zero vector, got %v", entries[1].Embedding)
		}
	}
}

func TestStoreFailsWhenEveryEmbeddingFails(t *testing.T) {
	src := &stubSource{
		fp:    Fingerprint{Path: "faq.csv", ModTime: 1, Size: 1},
		pairs: []Pair{{Question: "bad", Answer: "a"}},
	}
	embed := &stubEmbedder{dim: 3, failOn: map[string]bool{"bad": true}}
	store := NewStore(StoreConfig{DegradeOnEmbedError: true}, src, &stubCache{}, embed, nil, testLogger())

	if _, err := store.Load(context.Background()); !apperrors.IsCode(err, apperrors.CodeEmbedding) {
		t.Fatalf("want embedding_error when no entry embeds, got %v", err)
	}
}

func TestStoreEmbedErrorWithoutDegradation(t *testing.T) {
	src := &stubSource{
		fp:    Fingerprint{Path: "faq.csv", ModTime: 1, Size: 1},
		pairs: []Pair{{Question: "bad", Answer: "a"}},
	}
	embed := &stubEmbedder{dim: 3, failOn: map[string]bool{"bad": true}}
	store := NewStore(StoreConfig{}, src, &stubCache{}, embed, nil, testLogger())

	if _, err := store.Load(context.Background()); !apperrors.IsCode(err, apperrors.CodeEmbedding) {
		t.Fatalf("want embedding_error, got %v", err)
	}
}

func TestStoreRejectsMixedDimensionality(t *testing.T) {
	embed := &stubEmbedder{vectors: map[string][]float32{
		"q1": {1, 0, 0},
		"q2": {1, 0},
	}}
	src := &stubSource{
		fp:    Fingerprint{Path: "faq.csv", ModTime: 1, Size: 1},
		pairs: []Pair{{Question: "q1", Answer: "a"}, {Question: "q2", Answer: "b"}},
	}
	store := NewStore(StoreConfig{}, src, &stubCache{}, embed, nil, testLogger())

	if _, err := store.Load(context.Background()); !apperrors.IsCode(err, apperrors.CodeEmbedding) {
		t.Fatalf("want embedding_error for mixed dimensionality, got %v", err)
	}
}

func TestStoreRebuildDiscardsCache(t *testing.T) {
	fp := Fingerprint{Path: "faq.csv", ModTime: 42, Size: 100}
	cache := &stubCache{entries: testEntries(), fp: fp}
	embed := &stubEmbedder{dim: 3}
	src := &stubSource{fp: fp, pairs: []Pair{{Question: "q1", Answer: "a1"}}}
	store := NewStore(StoreConfig{}, src, cache, embed, nil, testLogger())

	snap, err := store.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if embed.calls != 1 {
		t.Fatalf("rebuild must recompute even with a fresh cache, got %d embed calls", embed.calls)
	}
	if snap.Len() != 1 {
		t.Fatalf("want 1 rebuilt entry, got %d", snap.Len())
	}
}

func TestStoreInvalidateDropsSnapshot(t *testing.T) {
	embed := &stubEmbedder{dim: 3}
	store := loadedStore(t, testEntries(), embed)

	if err := store.Invalidate(context.Background()); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok := store.Snapshot(); ok {
		t.Fatal("snapshot must be dropped after invalidation")
	}
}

func TestStoreEmbedQueryNormalizesText(t *testing.T) {
	embed := &stubEmbedder{vectors: map[string][]float32{
		"line one line two": {1, 2, 3},
	}}
	store := NewStore(StoreConfig{}, &stubSource{}, &stubCache{}, embed, nil, testLogger())

	vec, err := store.EmbedQuery(context.Background(), "  line one\nline two \n")
	if err != nil {
		t.Fatalf("embed query: %v", err)
	}
	if len(vec) != 3 || vec[0] != 1 {
		t.Fatalf("unexpected vector: %v", vec)
	}

	if _, err := store.EmbedQuery(context.Background(), " \n "); !apperrors.IsCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("want invalid_input for blank query, got %v", err)
	}
	if embed.calls != 1 {
		t.Fatalf("blank query must not reach the embedder, got %d calls", embed.calls)
	}
}

func TestStoreEmbedQueryWrapsProviderError(t *testing.T) {
	embed := &stubEmbedder{failOn: map[string]bool{"boom": true}}
	store := NewStore(StoreConfig{}, &stubSource{}, &stubCache{}, embed, nil, testLogger())

	if _, err := store.EmbedQuery(context.Background(), "boom"); !apperrors.IsCode(err, apperrors.CodeEmbedding) {
		t.Fatalf("want embedding_error, got %v", err)
	}
}
