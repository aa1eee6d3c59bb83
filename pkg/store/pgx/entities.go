package pgx

import (
	"context"
	"fmt"

	"github.com/sanadlabs/sanad/pkg/common"
	"github.com/sanadlabs/sanad/pkg/miner"
)

// SaveEntities upserts vocabulary entities. Aliases replace the stored set;
// a document re-declaring an entity refreshes it rather than accumulating.
func (s *Storage) SaveEntities(ctx context.Context, entities []miner.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save entities: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entities {
		_, err := tx.Exec(ctx, `
			INSERT INTO entities (entity_type, entity_id, name, aliases)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (entity_type, entity_id)
			DO UPDATE SET name = EXCLUDED.name, aliases = EXCLUDED.aliases`,
			string(e.Type), e.ID, e.Name, e.Aliases,
		)
		if err != nil {
			return fmt.Errorf("save entity %s/%s: %w", e.Type, e.ID, err)
		}
	}
	return tx.Commit(ctx)
}

// AllEntities returns the full vocabulary in stable order.
func (s *Storage) AllEntities(ctx context.Context) ([]miner.Entity, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT entity_type, entity_id, name, aliases
		FROM entities ORDER BY entity_type, entity_id`)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var out []miner.Entity
	for rows.Next() {
		var e miner.Entity
		var entityType string
		if err := rows.Scan(&entityType, &e.ID, &e.Name, &e.Aliases); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		e.Type = common.EntityType(entityType)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
