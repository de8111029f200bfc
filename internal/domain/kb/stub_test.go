package kb

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSource struct {
	pairs []Pair
	fp    Fingerprint
	err   error
}

func (s *stubSource) Read(context.Context) ([]Pair, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.pairs, nil
}

func (s *stubSource) Fingerprint() (Fingerprint, error) {
	if s.err != nil {
		return Fingerprint{}, s.err
	}
	return s.fp, nil
}

type stubCache struct {
	entries []Entry
	fp      Fingerprint
	saves   int
}

func (c *stubCache) Load(_ context.Context, fp Fingerprint) ([]Entry, bool, error) {
	if c.entries == nil || c.fp != fp {
		return nil, false, nil
	}
	return c.entries, true, nil
}

func (c *stubCache) Save(_ context.Context, fp Fingerprint, entries []Entry) error {
	c.fp = fp
	c.entries = append([]Entry(nil), entries...)
	c.saves++
	return nil
}

func (c *stubCache) Discard(context.Context) error {
	c.entries = nil
	return nil
}

// stubEmbedder returns canned vectors by exact text and counts calls.
type stubEmbedder struct {
	vectors map[string][]float32
	dim     int
	calls   int
	failOn  map[string]bool
}

func (e *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if e.failOn[text] {
			return nil, errors.New("stub embedding failure")
		}
		if vec, ok := e.vectors[text]; ok {
			out = append(out, append([]float32(nil), vec...))
			continue
		}
		vec := make([]float32, e.dim)
		for i := range vec {
			vec[i] = 0.5
		}
		out = append(out, vec)
	}
	return out, nil
}

func loadedStore(t interface{ Fatalf(string, ...any) }, entries []Entry, embed *stubEmbedder) *Store {
	fp := Fingerprint{Path: "faq.csv", ModTime: 1, Size: 1}
	store := NewStore(StoreConfig{}, &stubSource{fp: fp}, &stubCache{entries: entries, fp: fp}, embed, nil, testLogger())
	if _, err := store.Load(context.Background()); err != nil {
		t.Fatalf("load store: %v", err)
	}
	return store
}
