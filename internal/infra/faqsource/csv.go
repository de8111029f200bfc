package faqsource

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/obara/supportdesk/internal/domain/kb"
)

// header aliases accepted for each logical column. FAQ files exist in both
// English and Japanese schemas; the mapping is resolved once per load, not
// per row access.
var (
	questionHeaders = []string{"question", "質問"}
	answerHeaders   = []string{"answer", "回答"}
	tagHeaders      = []string{"category", "tags", "カテゴリ", "分類"}
)

// CSVSource reads FAQ pairs from a CSV file with a header row.
type CSVSource struct {
	path string
}

// NewCSVSource constructs a source for the given file path.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Fingerprint identifies the current revision of the file.
func (s *CSVSource) Fingerprint() (kb.Fingerprint, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return kb.Fingerprint{}, fmt.Errorf("stat faq source: %w", err)
	}
	return kb.Fingerprint{
		Path:    s.path,
		ModTime: info.ModTime().UnixNano(),
		Size:    info.Size(),
	}, nil
}

// Read parses the file into ordered FAQ pairs. A missing question or answer
// column is a schema error; blank rows are skipped.
func (s *CSVSource) Read(ctx context.Context) ([]kb.Pair, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open faq source: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read faq header: %w", err)
	}
	schema, err := mapSchema(header)
	if err != nil {
		return nil, err
	}

	var pairs []kb.Pair
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read faq row: %w", err)
		}
		if len(row) <= schema.question || len(row) <= schema.answer {
			return nil, fmt.Errorf("faq row %d has %d columns, schema needs %d", len(pairs)+2, len(row), schema.width())
		}
		question := strings.TrimSpace(row[schema.question])
		answer := strings.TrimSpace(row[schema.answer])
		if question == "" && answer == "" {
			continue
		}
		if question == "" || answer == "" {
			return nil, fmt.Errorf("faq row %d is missing a question or answer", len(pairs)+2)
		}
		pair := kb.Pair{Question: question, Answer: answer}
		if schema.tags >= 0 && len(row) > schema.tags {
			pair.Tags = splitTags(row[schema.tags])
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

type columnSchema struct {
	question int
	answer   int
	tags     int
}

func (c columnSchema) width() int {
	w := c.question
	if c.answer > w {
		w = c.answer
	}
	return w + 1
}

func mapSchema(header []string) (columnSchema, error) {
	schema := columnSchema{question: -1, answer: -1, tags: -1}
	for i, raw := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\uFEFF")))
		switch {
		case schema.question < 0 && matchesHeader(name, questionHeaders):
			schema.question = i
		case schema.answer < 0 && matchesHeader(name, answerHeaders):
			schema.answer = i
		case schema.tags < 0 && matchesHeader(name, tagHeaders):
			schema.tags = i
		}
	}
	if schema.question < 0 || schema.answer < 0 {
		return schema, fmt.Errorf("faq source is missing question/answer columns, got header %v", header)
	}
	return schema, nil
}

func matchesHeader(name string, aliases []string) bool {
	for _, alias := range aliases {
		if name == alias {
			return true
		}
	}
	return false
}

// splitTags parses a comma separated category cell.
func splitTags(cell string) []string {
	var tags []string
	for _, part := range strings.Split(cell, ",") {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

var _ kb.Source = (*CSVSource)(nil)
