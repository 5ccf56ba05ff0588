package analyticspg

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresViewStats is the raw-SQL fast path for view accounting on postgres
// deployments. It writes and reads the same view_stats rows as the GORM
// store, skipping the ORM for the hot increment and the dashboard rollup.
type PostgresViewStats struct {
	pool *pgxpool.Pool
}

// NewPostgresViewStats constructs the store over a pgx pool.
func NewPostgresViewStats(pool *pgxpool.Pool) *PostgresViewStats {
	return &PostgresViewStats{pool: pool}
}

// RecordView upserts today's counter row for the post.
func (store *PostgresViewStats) RecordView(ctx context.Context, postID string, day time.Time) error {
	day = day.UTC().Truncate(24 * time.Hour)
	_, err := store.pool.Exec(ctx, `
INSERT INTO view_stats (id, post_id, day, count)
VALUES ($1, $2, $3, 1)
ON CONFLICT (post_id, day) DO UPDATE SET count = view_stats.count + 1
`, uuid.NewString(), postID, day)
	return err
}

// DailyPoint is one day of aggregated views.
type DailyPoint struct {
	Day   time.Time
	Views int64
}

// AuthorSeries sums the author's daily views since the given day, oldest
// first. Days without traffic are absent; the caller zero-fills.
func (store *PostgresViewStats) AuthorSeries(ctx context.Context, authorID string, since time.Time) ([]DailyPoint, error) {
	rows, queryErr := store.pool.Query(ctx, `
SELECT view_stats.day, COALESCE(SUM(view_stats.count), 0)
FROM view_stats
JOIN posts ON posts.id = view_stats.post_id
WHERE posts.author_id = $1 AND view_stats.day >= $2
GROUP BY view_stats.day
ORDER BY view_stats.day ASC
`, authorID, since.UTC().Truncate(24*time.Hour))
	if queryErr != nil {
		return nil, queryErr
	}
	defer rows.Close()

	var series []DailyPoint
	for rows.Next() {
		var point DailyPoint
		if scanErr := rows.Scan(&point.Day, &point.Views); scanErr != nil {
			return nil, scanErr
		}
		series = append(series, point)
	}
	return series, rows.Err()
}

// PostTotal returns the all-time summed view count for one post.
func (store *PostgresViewStats) PostTotal(ctx context.Context, postID string) (int64, error) {
	var total int64
	row := store.pool.QueryRow(ctx, `
SELECT COALESCE(SUM(count), 0) FROM view_stats WHERE post_id = $1
`, postID)
	if scanErr := row.Scan(&total); scanErr != nil {
		return 0, scanErr
	}
	return total, nil
}
