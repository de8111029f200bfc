package kbrepo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/obara/supportdesk/internal/domain/kb"
)

// PostgresIndex implements kb.NearestIndex on a pgvector table. It exists
// for FAQ sets large enough that brute-force in-process ranking is not
// worth it; small sets keep the default in-process path.
//
// Expected schema:
//
//	CREATE TABLE faq_entries (
//	    position  INT PRIMARY KEY,
//	    question  TEXT NOT NULL,
//	    answer    TEXT NOT NULL,
//	    tags      TEXT[] NOT NULL DEFAULT '{}',
//	    embedding VECTOR NOT NULL
//	);
type PostgresIndex struct {
	pool *pgxpool.Pool
}

// NewPostgresIndex constructs the index.
func NewPostgresIndex(pool *pgxpool.Pool) *PostgresIndex {
	return &PostgresIndex{pool: pool}
}

// Replace swaps the indexed set wholesale inside one transaction. Degraded
// sentinel entries are skipped so they can never surface as matches.
func (r *PostgresIndex) Replace(ctx context.Context, entries []kb.Entry) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin index replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE faq_entries`); err != nil {
		return fmt.Errorf("truncate faq index: %w", err)
	}

	batch := &pgx.Batch{}
	for position, entry := range entries {
		if entry.Degraded {
			continue
		}
		batch.Queue(`
			INSERT INTO faq_entries (position, question, answer, tags, embedding)
			VALUES ($1, $2, $3, $4, $5)
		`, position, entry.Question, entry.Answer, entry.Tags, pgvector.NewVector(entry.Embedding))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert faq index rows: %w", err)
	}
	return tx.Commit(ctx)
}

// Nearest returns the k closest entries by cosine distance, best first.
// Distance ties resolve by original load order.
func (r *PostgresIndex) Nearest(ctx context.Context, embedding []float32, k int) ([]kb.Match, error) {
	if k <= 0 {
		k = 1
	}
	rows, err := r.pool.Query(ctx, `
		SELECT question, answer, tags, embedding <=> $1 AS distance
		FROM faq_entries
		ORDER BY embedding <=> $1, position
		LIMIT $2
	`, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("faq nearest lookup: %w", err)
	}
	defer rows.Close()

	var matches []kb.Match
	for rows.Next() {
		var (
			entry    kb.Entry
			distance float64
		)
		if err := rows.Scan(&entry.Question, &entry.Answer, &entry.Tags, &distance); err != nil {
			return nil, fmt.Errorf("scan faq match: %w", err)
		}
		// pgvector's <=> operator yields cosine distance.
		matches = append(matches, kb.Match{Entry: entry, Score: 1 - distance})
	}
	return matches, rows.Err()
}

var _ kb.NearestIndex = (*PostgresIndex)(nil)
