package pgx

import (
	"context"
	"errors"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/sanadlabs/sanad/pkg/common"
	"github.com/sanadlabs/sanad/pkg/store"
)

const saveFragmentsChunkSize = 200

const fragmentSelectColumns = `
	f.id, f.entity_type, f.entity_id, f.kind, f.text, f.source_document_id, f.source_anchor,
	COALESCE(
		(SELECT array_agg(r.reference_id ORDER BY r.position)
		 FROM fragment_references r WHERE r.fragment_id = f.id),
		'{}'
	)`

// SaveFragments stores fragments in one transaction. Fragments are write-once:
// an id that already exists with different text fails the whole batch with
// store.ErrIntegrity instead of overwriting.
func (s *Storage) SaveFragments(ctx context.Context, frags []*common.Fragment) error {
	if len(frags) == 0 {
		return nil
	}
	for _, f := range frags {
		if f == nil || f.ID == "" || f.Text == "" {
			return fmt.Errorf("%w: fragment with empty id or text", store.ErrIntegrity)
		}
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save fragments: %w", err)
	}
	defer tx.Rollback(ctx)

	err = store.ChunkRange(len(frags), saveFragmentsChunkSize, func(start, end int) error {
		for _, f := range frags[start:end] {
			var storedText string
			err := tx.QueryRow(ctx, `
				INSERT INTO fragments (id, entity_type, entity_id, kind, text, source_document_id, source_anchor)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (id) DO UPDATE SET id = fragments.id
				RETURNING text`,
				f.ID, string(f.EntityType), f.EntityID, string(f.Kind),
				f.Text, f.SourceDocumentID, f.SourceAnchor,
			).Scan(&storedText)
			if err != nil {
				return fmt.Errorf("save fragment %s: %w", f.ID, err)
			}
			if storedText != f.Text {
				return fmt.Errorf("%w: fragment %s already stored with different text", store.ErrIntegrity, f.ID)
			}
			for pos, ref := range store.DedupeStrings(f.References) {
				_, err := tx.Exec(ctx, `
					INSERT INTO fragment_references (fragment_id, position, reference_id)
					VALUES ($1, $2, $3)
					ON CONFLICT (fragment_id, position) DO NOTHING`,
					f.ID, pos, ref,
				)
				if err != nil {
					return fmt.Errorf("save fragment %s reference %s: %w", f.ID, ref, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// FragmentByID fetches one fragment or store.ErrNotFound.
func (s *Storage) FragmentByID(ctx context.Context, id string) (*common.Fragment, error) {
	row := s.conn.QueryRow(ctx, `SELECT `+fragmentSelectColumns+` FROM fragments f WHERE f.id = $1`, id)
	f, err := scanFragment(row)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return nil, fmt.Errorf("fragment %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get fragment %s: %w", id, err)
	}
	return f, nil
}

// FragmentsByEntity returns the fragments owned by one entity, ordered by id
// so retrieval is deterministic.
func (s *Storage) FragmentsByEntity(ctx context.Context, ref common.NodeRef) ([]*common.Fragment, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+fragmentSelectColumns+`
		FROM fragments f
		WHERE f.entity_type = $1 AND f.entity_id = $2
		ORDER BY f.id`,
		string(ref.Type), ref.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("fragments by entity %s/%s: %w", ref.Type, ref.ID, err)
	}
	defer rows.Close()
	return scanFragments(rows)
}

// FragmentsByDocument returns every fragment ingested from one source document.
func (s *Storage) FragmentsByDocument(ctx context.Context, sourceDocumentID string) ([]*common.Fragment, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+fragmentSelectColumns+`
		FROM fragments f
		WHERE f.source_document_id = $1
		ORDER BY f.id`,
		sourceDocumentID,
	)
	if err != nil {
		return nil, fmt.Errorf("fragments by document %s: %w", sourceDocumentID, err)
	}
	defer rows.Close()
	return scanFragments(rows)
}

// PurgeDocument removes a document's fragments in one transaction. References,
// embeddings, and justification spans go with them via cascade; edges left
// without a single surviving span are deleted too, so no ungrounded edge ever
// remains queryable.
func (s *Storage) PurgeDocument(ctx context.Context, sourceDocumentID string) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin purge document: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM fragments WHERE source_document_id = $1`, sourceDocumentID); err != nil {
		return fmt.Errorf("purge fragments of %s: %w", sourceDocumentID, err)
	}
	_, err = tx.Exec(ctx, `
		DELETE FROM edges e
		WHERE NOT EXISTS (SELECT 1 FROM justification_spans s WHERE s.edge_id = e.id)`)
	if err != nil {
		return fmt.Errorf("purge ungrounded edges of %s: %w", sourceDocumentID, err)
	}
	return tx.Commit(ctx)
}

func scanFragment(row pgxv5.Row) (*common.Fragment, error) {
	var f common.Fragment
	var entityType, kind string
	err := row.Scan(
		&f.ID, &entityType, &f.EntityID, &kind,
		&f.Text, &f.SourceDocumentID, &f.SourceAnchor, &f.References,
	)
	if err != nil {
		return nil, err
	}
	f.EntityType = common.EntityType(entityType)
	f.Kind = common.FragmentKind(kind)
	return &f, nil
}

func scanFragments(rows pgxv5.Rows) ([]*common.Fragment, error) {
	var out []*common.Fragment
	for rows.Next() {
		f, err := scanFragment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fragment: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
