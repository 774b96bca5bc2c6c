package store

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
)

// InsertTopics indexes documentation chunks. Every embedding must match the
// store's configured dimension; topics are immutable once indexed (re-upload
// under the same ID replaces the row).
func (s *Store) InsertTopics(ctx context.Context, topics []KBTopic) error {
	for i, t := range topics {
		if t.ID == "" {
			return fmt.Errorf("insert topics: missing id at index %d", i)
		}
		if len(t.Embedding) != s.dim {
			return fmt.Errorf("insert topics: embedding dimension at index %d: got %d want %d", i, len(t.Embedding), s.dim)
		}
	}

	for _, t := range topics {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO kb_topics (id, subject, content, source, embedding)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				subject = EXCLUDED.subject,
				content = EXCLUDED.content,
				source = EXCLUDED.source,
				embedding = EXCLUDED.embedding
		`, t.ID, t.Subject, t.Content, t.Source, pgvector.NewVector(t.Embedding))
		if err != nil {
			return fmt.Errorf("insert topic %s: %w", t.ID, err)
		}
	}
	return nil
}

// NearestTopics returns up to k topics ranked by ascending cosine distance
// to the query vector. Ties break on topic ID so the order is stable. An
// empty knowledge base yields an empty slice, not an error.
func (s *Store) NearestTopics(ctx context.Context, embedding []float32, k int) ([]ScoredTopic, error) {
	if len(embedding) != s.dim {
		return nil, fmt.Errorf("nearest topics: query dimension: got %d want %d", len(embedding), s.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	vec := pgvector.NewVector(embedding)
	rows, err := s.pool.Query(ctx, `
		SELECT id, subject, content, source, embedding <=> $1 AS distance
		FROM kb_topics
		ORDER BY embedding <=> $1, id
		LIMIT $2
	`, vec, k)
	if err != nil {
		return nil, fmt.Errorf("nearest topics: %w", err)
	}
	defer rows.Close()

	var results []ScoredTopic
	for rows.Next() {
		var st ScoredTopic
		if err := rows.Scan(&st.Topic.ID, &st.Topic.Subject, &st.Topic.Content, &st.Topic.Source, &st.Distance); err != nil {
			return nil, fmt.Errorf("scan topic row: %w", err)
		}
		results = append(results, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("nearest topics rows: %w", err)
	}
	return results, nil
}
