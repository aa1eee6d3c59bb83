package timing

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RecordStageTime stores how long one pipeline stage took for a document.
// The samples feed the processing time estimate shown while a document is
// still in flight.
func RecordStageTime(
	ctx context.Context,
	conn *pgxpool.Pool,
	documentID, stage string,
	fragments int,
	durationMs int64,
) error {
	_, err := conn.Exec(ctx, `
		INSERT INTO pipeline_stats (document_id, stage, fragments, duration_ms)
		VALUES ($1, $2, $3, $4)`,
		documentID, stage, fragments, durationMs,
	)
	return err
}

// PredictStageTime estimates the duration of one stage for a document with the
// given fragment count, from the average per-fragment duration of past runs.
// Returns zero when no samples exist yet.
func PredictStageTime(
	ctx context.Context,
	conn *pgxpool.Pool,
	stage string,
	fragments int,
) (int64, error) {
	var estimate int64
	err := conn.QueryRow(ctx, `
		SELECT COALESCE(AVG(duration_ms / GREATEST(fragments, 1)), 0)::BIGINT * $2
		FROM pipeline_stats
		WHERE stage = $1 AND fragments > 0`,
		stage, fragments,
	).Scan(&estimate)
	if err != nil {
		return 0, err
	}
	return estimate, nil
}
