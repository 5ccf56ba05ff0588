package analyticspg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the view-stats rollup table if it does not exist. The
// table mirrors the GORM view_stats model so both paths read the same rows.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS view_stats (
    id TEXT PRIMARY KEY,
    post_id TEXT NOT NULL,
    day TIMESTAMPTZ NOT NULL,
    count BIGINT NOT NULL DEFAULT 0,
    CONSTRAINT idx_view_stats_post_day UNIQUE (post_id, day)
);
CREATE INDEX IF NOT EXISTS idx_view_stats_day ON view_stats (day);
`)
	return err
}
