package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unergybot/tke/pkg/models"
)

// SynonymStore persists the canonical/surface synonym table backing C7's
// query-expansion cache.
type SynonymStore struct {
	pool *pgxpool.Pool
}

// NewSynonymStore builds a SynonymStore over pool.
func NewSynonymStore(pool *pgxpool.Pool) *SynonymStore {
	return &SynonymStore{pool: pool}
}

// ListAll returns every synonym row, used to populate C7's in-memory cache.
func (s *SynonymStore) ListAll(ctx context.Context) ([]*models.Synonym, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT canonical, surface, term_type, confidence, usage_count, last_used_at, source
		FROM synonyms`)
	if err != nil {
		return nil, fmt.Errorf("%w: list synonyms: %v", models.ErrDependency, err)
	}
	defer rows.Close()

	var out []*models.Synonym
	for rows.Next() {
		syn := &models.Synonym{}
		if err := rows.Scan(&syn.Canonical, &syn.Surface, &syn.TermType, &syn.Confidence,
			&syn.UsageCount, &syn.LastUsedAt, &syn.Source); err != nil {
			return nil, fmt.Errorf("%w: scan synonym row: %v", models.ErrDependency, err)
		}
		out = append(out, syn)
	}
	return out, rows.Err()
}

// RecordUsage increments the usage counter for a (canonical, surface) pair
// and stamps last_used_at, called each time C7 applies a replacement.
func (s *SynonymStore) RecordUsage(ctx context.Context, canonical, surface string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE synonyms SET usage_count = usage_count + 1, last_used_at = now()
		WHERE canonical = $1 AND surface = $2`, canonical, surface)
	if err != nil {
		return fmt.Errorf("%w: record synonym usage: %v", models.ErrDependency, err)
	}
	return nil
}

// Upsert inserts or replaces a synonym row, used by seeding/admin tooling.
func (s *SynonymStore) Upsert(ctx context.Context, syn *models.Synonym) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO synonyms (canonical, surface, term_type, confidence, usage_count, last_used_at, source)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (canonical, surface) DO UPDATE SET
			term_type = EXCLUDED.term_type,
			confidence = EXCLUDED.confidence,
			source = EXCLUDED.source`,
		syn.Canonical, syn.Surface, syn.TermType, syn.Confidence, syn.UsageCount, syn.LastUsedAt, syn.Source)
	if err != nil {
		return fmt.Errorf("%w: upsert synonym: %v", models.ErrDependency, err)
	}
	return nil
}
