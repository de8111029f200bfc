package embedcache

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/obara/supportdesk/internal/domain/kb"
)

// FileCache persists embedded FAQ entries in a versioned binary file.
// Vectors are stored as raw little-endian float32 values, so a reload
// reproduces them bit for bit. The header carries the source fingerprint;
// a mismatch is a cache miss, never a partial reuse.
//
// Layout (all little endian):
//
//	magic "SDKB" | version u16 | modtime i64 | size i64 | path str |
//	dim u32 | count u32 | entries...
//
// entry: question str | answer str | tag count u16 | tags str... |
// flags u8 (bit0 = degraded) | dim float32 values.
type FileCache struct {
	path string
}

const (
	cacheMagic   = "SDKB"
	cacheVersion = uint16(1)

	flagDegraded = uint8(1)
)

// NewFileCache constructs a cache stored at path.
func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

// Load reads the cache if it exists and was built for the same source
// revision. Any structural problem is an error; a stale or absent cache is
// a plain miss.
func (c *FileCache) Load(_ context.Context, fp kb.Fingerprint) ([]kb.Entry, bool, error) {
	f, err := os.Open(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open embedding cache: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, false, fmt.Errorf("read cache magic: %w", err)
	}
	if string(magic[:]) != cacheMagic {
		return nil, false, fmt.Errorf("not an embedding cache file: magic %q", magic)
	}
	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, false, fmt.Errorf("read cache version: %w", err)
	}
	if version != cacheVersion {
		// Older format: treat as a miss so the store rebuilds.
		return nil, false, nil
	}

	var stored kb.Fingerprint
	if err := binary.Read(r, binary.LittleEndian, &stored.ModTime); err != nil {
		return nil, false, fmt.Errorf("read cache fingerprint: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &stored.Size); err != nil {
		return nil, false, fmt.Errorf("read cache fingerprint: %w", err)
	}
	if stored.Path, err = readString(r); err != nil {
		return nil, false, fmt.Errorf("read cache fingerprint: %w", err)
	}
	if stored != fp {
		return nil, false, nil
	}

	var dim, count uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, false, fmt.Errorf("read cache dimension: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, false, fmt.Errorf("read cache entry count: %w", err)
	}
	if dim == 0 || count == 0 {
		return nil, false, errors.New("embedding cache has no entries")
	}

	entries := make([]kb.Entry, 0, count)
	for i := uint32(0); i < count; i++ {
		entry, err := readEntry(r, int(dim))
		if err != nil {
			return nil, false, fmt.Errorf("read cache entry %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, true, nil
}

// Save rewrites the cache in full via a temp file rename, so readers never
// observe a half-written cache.
func (c *FileCache) Save(_ context.Context, fp kb.Fingerprint, entries []kb.Entry) error {
	if len(entries) == 0 {
		return errors.New("refusing to persist an empty faq set")
	}
	dim := len(entries[0].Embedding)
	for _, e := range entries {
		if len(e.Embedding) != dim {
			return fmt.Errorf("mixed embedding dimensionality: want %d got %d", dim, len(e.Embedding))
		}
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create cache temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := writeCache(w, fp, entries, dim); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush embedding cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close embedding cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replace embedding cache: %w", err)
	}
	return nil
}

// Discard removes the cache file if present.
func (c *FileCache) Discard(_ context.Context) error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove embedding cache: %w", err)
	}
	return nil
}

func writeCache(w io.Writer, fp kb.Fingerprint, entries []kb.Entry, dim int) error {
	if _, err := w.Write([]byte(cacheMagic)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, cacheVersion); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, fp.ModTime); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, fp.Size); err != nil {
		return err
	}
	if err := writeString(w, fp.Path); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(dim)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := writeEntry(w, e); err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(w io.Writer, e kb.Entry) error {
	if err := writeString(w, e.Question); err != nil {
		return err
	}
	if err := writeString(w, e.Answer); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(e.Tags))); err != nil {
		return err
	}
	for _, tag := range e.Tags {
		if err := writeString(w, tag); err != nil {
			return err
		}
	}
	flags := uint8(0)
	if e.Degraded {
		flags |= flagDegraded
	}
	if err := binary.Write(w, binary.LittleEndian, flags); err != nil {
		return err
	}
	buf := make([]byte, 4)
	for _, v := range e.Embedding {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

func readEntry(r io.Reader, dim int) (kb.Entry, error) {
	var entry kb.Entry
	var err error
	if entry.Question, err = readString(r); err != nil {
		return entry, err
	}
	if entry.Answer, err = readString(r); err != nil {
		return entry, err
	}
	var tagCount uint16
	if err := binary.Read(r, binary.LittleEndian, &tagCount); err != nil {
		return entry, err
	}
	for i := uint16(0); i < tagCount; i++ {
		tag, err := readString(r)
		if err != nil {
			return entry, err
		}
		entry.Tags = append(entry.Tags, tag)
	}
	var flags uint8
	if err := binary.Read(r, binary.LittleEndian, &flags); err != nil {
		return entry, err
	}
	entry.Degraded = flags&flagDegraded != 0

	raw := make([]byte, dim*4)
	if _, err := io.ReadFull(r, raw); err != nil {
		return entry, err
	}
	entry.Embedding = make([]float32, dim)
	for i := 0; i < dim; i++ {
		entry.Embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return entry, nil
}

func writeString(w io.Writer, s string) error {
	if len(s) > math.MaxUint32 {
		return fmt.Errorf("string too long for cache: %d bytes", len(s))
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	if length > 1<<20 {
		return "", fmt.Errorf("string length %d exceeds sanity limit", length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

var _ kb.Cache = (*FileCache)(nil)
