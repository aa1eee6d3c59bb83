package pgx

import (
	"context"
	"errors"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/sanadlabs/sanad/internal/util"
	"github.com/sanadlabs/sanad/pkg/store"
)

// CreateDocument registers a new document in the pending stage. Re-uploading
// an existing document resets its tracking row; the ingestion pipeline then
// replaces the previous fragments.
func (s *Storage) CreateDocument(ctx context.Context, doc *store.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("%w: document with empty id", store.ErrIntegrity)
	}
	stage := doc.Stage
	if stage == "" {
		stage = util.StagePending
	}
	if !util.ValidStage(stage) {
		return fmt.Errorf("document %s: unknown stage %q", doc.ID, stage)
	}
	_, err := s.conn.Exec(ctx, `
		INSERT INTO documents (id, title, source_key, stage)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title,
		    source_key = EXCLUDED.source_key,
		    stage = EXCLUDED.stage,
		    updated_at = now()`,
		doc.ID, doc.Title, doc.SourceKey, stage,
	)
	if err != nil {
		return fmt.Errorf("create document %s: %w", doc.ID, err)
	}
	return nil
}

// DocumentByID fetches one document or store.ErrNotFound.
func (s *Storage) DocumentByID(ctx context.Context, id string) (*store.Document, error) {
	var doc store.Document
	err := s.conn.QueryRow(ctx, `
		SELECT id, title, source_key, stage, fragment_count, created_at, updated_at
		FROM documents WHERE id = $1`, id,
	).Scan(&doc.ID, &doc.Title, &doc.SourceKey, &doc.Stage, &doc.FragmentCount, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return &doc, nil
}

// ListDocuments returns all documents, newest first.
func (s *Storage) ListDocuments(ctx context.Context) ([]*store.Document, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, title, source_key, stage, fragment_count, created_at, updated_at
		FROM documents ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []*store.Document
	for rows.Next() {
		var doc store.Document
		err := rows.Scan(&doc.ID, &doc.Title, &doc.SourceKey, &doc.Stage, &doc.FragmentCount, &doc.CreatedAt, &doc.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SetDocumentStage advances a document through the pipeline. fragmentCount is
// only written when positive, so later stages do not zero it out.
func (s *Storage) SetDocumentStage(ctx context.Context, id, stage string, fragmentCount int) error {
	if !util.ValidStage(stage) {
		return fmt.Errorf("document %s: unknown stage %q", id, stage)
	}
	tag, err := s.conn.Exec(ctx, `
		UPDATE documents
		SET stage = $1,
		    fragment_count = CASE WHEN $2 > 0 THEN $2 ELSE fragment_count END,
		    updated_at = now()
		WHERE id = $3`,
		stage, fragmentCount, id,
	)
	if err != nil {
		return fmt.Errorf("set stage of document %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// DeleteDocument removes the tracking row. Fragment purging is separate and
// must happen first.
func (s *Storage) DeleteDocument(ctx context.Context, id string) error {
	tag, err := s.conn.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, store.ErrNotFound)
	}
	return nil
}
