package kb

// Entry is one canonical FAQ pair together with the embedding of its question.
type Entry struct {
	Question  string
	Answer    string
	Tags      []string
	Embedding []float32
	// Degraded marks a zero-vector sentinel written when the embedding
	// provider failed for this entry. Sentinel entries are never ranked.
	Degraded bool
}

// Match pairs an entry with its cosine similarity against a query.
type Match struct {
	Entry
	Score float64
}

// Pair is a raw FAQ row before embedding.
type Pair struct {
	Question string
	Answer   string
	Tags     []string
}

// Fingerprint identifies one revision of a FAQ source file. A cache built
// for a different fingerprint is stale and must be rebuilt.
type Fingerprint struct {
	Path    string
	ModTime int64
	Size    int64
}

// Snapshot is an immutable view of the loaded FAQ set. The store swaps
// snapshots atomically; readers holding an old snapshot keep a consistent
// view during a rebuild.
type Snapshot struct {
	entries []Entry
	dim     int
}

// Entries exposes the loaded set in original source order.
func (s *Snapshot) Entries() []Entry {
	if s == nil {
		return nil
	}
	return s.entries
}

// Len reports the number of loaded entries.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Dimension reports the embedding dimensionality shared by all entries.
func (s *Snapshot) Dimension() int {
	if s == nil {
		return 0
	}
	return s.dim
}
