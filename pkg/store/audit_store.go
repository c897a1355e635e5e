package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unergybot/tke/pkg/models"
)

// AuditStore persists the append-only audit trail written by C13.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore builds an AuditStore over pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Append inserts one audit record.
func (s *AuditStore) Append(ctx context.Context, rec *models.AuditRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (user_id, tool_name, params_hash, result_status, latency_ms, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		rec.UserID, rec.ToolName, rec.ParamsHash, string(rec.ResultStatus), rec.LatencyMS, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: append audit record: %v", models.ErrDependency, err)
	}
	return nil
}
