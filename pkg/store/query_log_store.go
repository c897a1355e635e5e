package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unergybot/tke/pkg/models"
)

// QueryLogStore records every query pipeline invocation for later analysis.
// C8's layer 3 does not read it; that layer ranks the validated_queries table.
type QueryLogStore struct {
	pool *pgxpool.Pool
}

// NewQueryLogStore builds a QueryLogStore over pool.
func NewQueryLogStore(pool *pgxpool.Pool) *QueryLogStore {
	return &QueryLogStore{pool: pool}
}

// Record appends a query log entry. Logging failures must never fail the
// request that triggered them, so callers should treat the returned error
// as best-effort (log and continue).
func (s *QueryLogStore) Record(ctx context.Context, entry *models.QueryLogEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO query_log (original, expanded, intent, sql_text, result_count,
			execution_time_ms, user_feedback, session_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())`,
		entry.Original, entry.Expanded, entry.Intent, entry.SQL, entry.ResultCount,
		entry.ExecutionTimeMS, entry.UserFeedback, entry.SessionID)
	if err != nil {
		return fmt.Errorf("%w: record query log: %v", models.ErrDependency, err)
	}
	return nil
}
