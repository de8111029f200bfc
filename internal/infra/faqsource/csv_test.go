package faqsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/obara/supportdesk/internal/domain/kb"
)

func writeCSV(t *testing.T, content string) *CSVSource {
	t.Helper()
	path := filepath.Join(t.TempDir(), "faq.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return NewCSVSource(path)
}

func TestCSVSourceReadsEnglishSchema(t *testing.T) {
	src := writeCSV(t, "question,answer,category\n"+
		"How do I reset my password?,Use the reset link.,\"account, security\"\n"+
		"When does my order ship?,Within two business days.,shipping\n")

	pairs, err := src.Read(context.Background())
	require.NoError(t, err)
	require.Equal(t, []kb.Pair{
		{
			Question: "How do I reset my password?",
			Answer:   "Use the reset link.",
			Tags:     []string{"account", "security"},
		},
		{
			Question: "When does my order ship?",
			Answer:   "Within two business days.",
			Tags:     []string{"shipping"},
		},
	}, pairs)
}

func TestCSVSourceReadsJapaneseSchemaWithBOM(t *testing.T) {
	src := writeCSV(t, "\uFEFF質問,回答,カテゴリ\n"+
		"送料はいくらですか？,全国一律500円です。,配送\n")

	pairs, err := src.Read(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	require.Equal(t, "送料はいくらですか？", pairs[0].Question)
	require.Equal(t, "全国一律500円です。", pairs[0].Answer)
	require.Equal(t, []string{"配送"}, pairs[0].Tags)
}

func TestCSVSourceSkipsBlankRows(t *testing.T) {
	src := writeCSV(t, "question,answer\n"+
		"q1,a1\n"+
		" , \n"+
		"q2,a2\n")

	pairs, err := src.Read(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	require.Equal(t, "q2", pairs[1].Question)
}

func TestCSVSourceRejectsHalfEmptyRow(t *testing.T) {
	src := writeCSV(t, "question,answer\nq1,\n")

	_, err := src.Read(context.Background())
	require.ErrorContains(t, err, "missing a question or answer")
}

func TestCSVSourceRejectsUnknownSchema(t *testing.T) {
	src := writeCSV(t, "title,body\nq1,a1\n")

	_, err := src.Read(context.Background())
	require.ErrorContains(t, err, "missing question/answer columns")
}

func TestCSVSourceFingerprintTracksFile(t *testing.T) {
	src := writeCSV(t, "question,answer\nq1,a1\n")

	fp, err := src.Fingerprint()
	require.NoError(t, err)
	require.NotZero(t, fp.ModTime)
	require.NotZero(t, fp.Size)

	missing := NewCSVSource(filepath.Join(t.TempDir(), "absent.csv"))
	_, err = missing.Fingerprint()
	require.Error(t, err)
}
