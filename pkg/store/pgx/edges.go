package pgx

import (
	"context"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/sanadlabs/sanad/pkg/common"
	"github.com/sanadlabs/sanad/pkg/logger"
	"github.com/sanadlabs/sanad/pkg/store"
)

const (
	strengthBase    = 0.5
	strengthPerSpan = 0.08
	strengthCap     = 0.95
)

// EdgeStrength maps a stored justification span count to an edge strength:
// more independent textual evidence means a stronger edge, with diminishing
// value capped well below certainty.
func EdgeStrength(spanCount int) float64 {
	if spanCount < 1 {
		spanCount = 1
	}
	strength := strengthBase + strengthPerSpan*float64(spanCount-1)
	return min(strength, strengthCap)
}

// UpsertMinedEdges persists one document's mined edges in a single
// transaction. Every justification span is verified against the stored
// fragment text before anything is written; a missing fragment or a quote that
// no longer matches its offsets aborts the whole batch with store.ErrIntegrity.
// Re-running the same batch is a no-op apart from strength recomputation.
func (s *Storage) UpsertMinedEdges(ctx context.Context, sourceDocumentID string, edges []*common.GraphEdge) error {
	if len(edges) == 0 {
		return nil
	}

	texts, err := s.fragmentTexts(ctx, spanFragmentIDs(edges))
	if err != nil {
		return err
	}
	for _, e := range edges {
		if len(e.Spans) == 0 {
			return fmt.Errorf("%w: edge %s has no justification spans", store.ErrIntegrity, e.Key())
		}
		for _, sp := range e.Spans {
			text, ok := texts[sp.FragmentID]
			if !ok {
				return fmt.Errorf("%w: edge %s cites unknown fragment %s", store.ErrIntegrity, e.Key(), sp.FragmentID)
			}
			if err := sp.VerifyAgainst(text); err != nil {
				return fmt.Errorf("%w: edge %s: %v", store.ErrIntegrity, e.Key(), err)
			}
		}
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert edges: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range edges {
		var edgeID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO edges (from_type, from_id, to_type, to_id, relation_type, status, strength)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (from_type, from_id, to_type, to_id, relation_type)
			DO UPDATE SET from_type = edges.from_type
			RETURNING id`,
			string(e.FromType), e.FromID, string(e.ToType), e.ToID,
			string(e.Relation), string(e.Status), EdgeStrength(len(e.Spans)),
		).Scan(&edgeID)
		if err != nil {
			return fmt.Errorf("%w: upsert edge %s: %v", store.ErrIntegrity, e.Key(), err)
		}

		for _, sp := range e.Spans {
			_, err := tx.Exec(ctx, `
				INSERT INTO justification_spans (edge_id, fragment_id, span_start, span_end, quote)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (edge_id, fragment_id, span_start, span_end) DO NOTHING`,
				edgeID, sp.FragmentID, sp.Start, sp.End, sp.Quote,
			)
			if err != nil {
				return fmt.Errorf("%w: save span for edge %s: %v", store.ErrIntegrity, e.Key(), err)
			}
		}

		var spanCount int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM justification_spans WHERE edge_id = $1`, edgeID).Scan(&spanCount); err != nil {
			return fmt.Errorf("count spans for edge %s: %w", e.Key(), err)
		}
		if spanCount == 0 {
			return fmt.Errorf("%w: edge %s persisted without spans", store.ErrIntegrity, e.Key())
		}
		if _, err := tx.Exec(ctx, `UPDATE edges SET strength = $1 WHERE id = $2`, EdgeStrength(spanCount), edgeID); err != nil {
			return fmt.Errorf("update strength for edge %s: %w", e.Key(), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert edges: %w", err)
	}
	logger.Info("[Store] Upserted mined edges", "document", sourceDocumentID, "edges", len(edges))
	return nil
}

// Neighbors returns the nodes one approved hop away from node, in either
// direction, over the allowed relation types. Pending edges are invisible here.
func (s *Storage) Neighbors(ctx context.Context, node common.NodeRef, allowed []common.RelationType) ([]common.NodeRef, error) {
	relations := make([]string, 0, len(allowed))
	for _, r := range allowed {
		relations = append(relations, string(r))
	}
	rows, err := s.conn.Query(ctx, `
		SELECT to_type, to_id FROM edges
		WHERE from_type = $1 AND from_id = $2 AND status = $3 AND relation_type = ANY($4)
		UNION
		SELECT from_type, from_id FROM edges
		WHERE to_type = $1 AND to_id = $2 AND status = $3 AND relation_type = ANY($4)
		ORDER BY 1, 2`,
		string(node.Type), node.ID, string(common.StatusApproved), relations,
	)
	if err != nil {
		return nil, fmt.Errorf("neighbors of %s/%s: %w", node.Type, node.ID, err)
	}
	defer rows.Close()
	return scanNodeRefs(rows)
}

// EntitiesByReference returns the concrete entities whose fragments cite the
// given reference identifier. This is how a synthetic reference node fans out
// during graph expansion.
func (s *Storage) EntitiesByReference(ctx context.Context, referenceID string) ([]common.NodeRef, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT DISTINCT f.entity_type, f.entity_id
		FROM fragments f
		JOIN fragment_references r ON r.fragment_id = f.id
		WHERE r.reference_id = $1
		ORDER BY 1, 2`,
		referenceID,
	)
	if err != nil {
		return nil, fmt.Errorf("entities by reference %s: %w", referenceID, err)
	}
	defer rows.Close()
	return scanNodeRefs(rows)
}

// SetEdgeStatus moves an edge between pending and approved. The edge must
// already exist; curation never creates edges.
func (s *Storage) SetEdgeStatus(ctx context.Context, from, to common.NodeRef, relation common.RelationType, status common.EdgeStatus) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE edges SET status = $1
		WHERE from_type = $2 AND from_id = $3 AND to_type = $4 AND to_id = $5 AND relation_type = $6`,
		string(status),
		string(from.Type), from.ID, string(to.Type), to.ID, string(relation),
	)
	if err != nil {
		return fmt.Errorf("set status of edge %s/%s -%s-> %s/%s: %w", from.Type, from.ID, relation, to.Type, to.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("edge %s/%s -%s-> %s/%s: %w", from.Type, from.ID, relation, to.Type, to.ID, store.ErrNotFound)
	}
	return nil
}

// spanFragmentIDs collects the distinct fragment ids cited across a batch of
// edges, preserving first-seen order.
func spanFragmentIDs(edges []*common.GraphEdge) []string {
	var ids []string
	for _, e := range edges {
		for _, sp := range e.Spans {
			ids = append(ids, sp.FragmentID)
		}
	}
	return store.DedupeStrings(ids)
}

// fragmentTexts loads the raw text of the given fragments keyed by id.
func (s *Storage) fragmentTexts(ctx context.Context, ids []string) (map[string]string, error) {
	texts := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return texts, nil
	}
	rows, err := s.conn.Query(ctx, `SELECT id, text FROM fragments WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("load fragment texts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, text string
		if err := rows.Scan(&id, &text); err != nil {
			return nil, fmt.Errorf("scan fragment text: %w", err)
		}
		texts[id] = text
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return texts, nil
}

func scanNodeRefs(rows pgxv5.Rows) ([]common.NodeRef, error) {
	var out []common.NodeRef
	for rows.Next() {
		var nodeType, id string
		if err := rows.Scan(&nodeType, &id); err != nil {
			return nil, fmt.Errorf("scan node ref: %w", err)
		}
		out = append(out, common.NodeRef{Type: common.EntityType(nodeType), ID: id})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
