package audit

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository reads the audit_logs table.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Timeline returns entries newest first, optionally filtered by actor,
// entity, or action. Empty filter strings match everything.
func (r *PGRepository) Timeline(ctx context.Context, q TimelineQuery) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT actor_id, action, entity, entity_id, meta, occurred_at
		FROM audit_logs
		WHERE ($1 = '' OR actor_id = $1)
		  AND ($2 = '' OR entity = $2)
		  AND ($3 = '' OR action = $3)
		ORDER BY occurred_at DESC
		OFFSET $4 LIMIT $5`,
		q.Actor, q.Entity, q.Action, q.Offset, q.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TimelineRow
	for rows.Next() {
		var row TimelineRow
		var metaJSON []byte
		if err := rows.Scan(&row.ActorID, &row.Action, &row.Entity, &row.EntityID, &metaJSON, &row.At); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &row.Meta); err != nil {
				return nil, err
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
