package pgx

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/sanadlabs/sanad/pkg/common"
	"github.com/sanadlabs/sanad/pkg/store"
)

// SaveEmbeddings stores one embedding per fragment id, replacing any previous
// vector. The two slices must be parallel.
func (s *Storage) SaveEmbeddings(ctx context.Context, fragmentIDs []string, embeddings [][]float32) error {
	if len(fragmentIDs) != len(embeddings) {
		return fmt.Errorf("%w: %d fragment ids for %d embeddings", store.ErrIntegrity, len(fragmentIDs), len(embeddings))
	}
	if len(fragmentIDs) == 0 {
		return nil
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save embeddings: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, id := range fragmentIDs {
		_, err := tx.Exec(ctx, `
			INSERT INTO fragment_embeddings (fragment_id, embedding)
			VALUES ($1, $2)
			ON CONFLICT (fragment_id) DO UPDATE SET embedding = EXCLUDED.embedding`,
			id, pgvector.NewVector(embeddings[i]),
		)
		if err != nil {
			return fmt.Errorf("save embedding for fragment %s: %w", id, err)
		}
	}
	return tx.Commit(ctx)
}

// TopKByEmbedding returns the k fragments nearest to the query embedding by
// cosine distance, with the similarity written into BackendScore.
func (s *Storage) TopKByEmbedding(ctx context.Context, embedding []float32, k int) ([]*common.Fragment, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := s.conn.Query(ctx, `
		SELECT `+fragmentSelectColumns+`, 1 - (e.embedding <=> $1) AS similarity
		FROM fragment_embeddings e
		JOIN fragments f ON f.id = e.fragment_id
		ORDER BY e.embedding <=> $1, f.id
		LIMIT $2`,
		pgvector.NewVector(embedding), k,
	)
	if err != nil {
		return nil, fmt.Errorf("top-k by embedding: %w", err)
	}
	defer rows.Close()

	var out []*common.Fragment
	for rows.Next() {
		var f common.Fragment
		var entityType, kind string
		err := rows.Scan(
			&f.ID, &entityType, &f.EntityID, &kind,
			&f.Text, &f.SourceDocumentID, &f.SourceAnchor, &f.References,
			&f.BackendScore,
		)
		if err != nil {
			return nil, fmt.Errorf("scan top-k fragment: %w", err)
		}
		f.EntityType = common.EntityType(entityType)
		f.Kind = common.FragmentKind(kind)
		out = append(out, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
