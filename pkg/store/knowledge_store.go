package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unergybot/tke/pkg/models"
)

// KnowledgeStore persists the learnings and validated-query tables that
// feed C8's six-layer prompt context.
type KnowledgeStore struct {
	pool *pgxpool.Pool
}

// NewKnowledgeStore builds a KnowledgeStore over pool.
func NewKnowledgeStore(pool *pgxpool.Pool) *KnowledgeStore {
	return &KnowledgeStore{pool: pool}
}

// TopLearnings returns up to limit learnings ordered by usage_count desc,
// created_at desc, matching C8's layer 5.
func (s *KnowledgeStore) TopLearnings(ctx context.Context, limit int) ([]*models.Learning, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT title, text, learning_type, tables_affected, usage_count, created_at
		FROM learnings ORDER BY usage_count DESC, created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list learnings: %v", models.ErrDependency, err)
	}
	defer rows.Close()

	var out []*models.Learning
	for rows.Next() {
		l := &models.Learning{}
		var tables []byte
		if err := rows.Scan(&l.Title, &l.Text, &l.LearningType, &tables, &l.UsageCount, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan learning row: %v", models.ErrDependency, err)
		}
		_ = json.Unmarshal(tables, &l.TablesAffected)
		out = append(out, l)
	}
	return out, rows.Err()
}

// RecordLearning inserts a new learning row, e.g. after a Text-to-SQL
// failure that should inform future prompts.
func (s *KnowledgeStore) RecordLearning(ctx context.Context, l *models.Learning) error {
	tables, _ := json.Marshal(l.TablesAffected)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO learnings (title, text, learning_type, tables_affected, usage_count, created_at)
		VALUES ($1,$2,$3,$4,$5,now())`,
		l.Title, l.Text, l.LearningType, tables, l.UsageCount)
	if err != nil {
		return fmt.Errorf("%w: record learning: %v", models.ErrDependency, err)
	}
	return nil
}

// AllValidatedQueries returns every stored validated query, used to
// compute word-overlap (per-character) similarity for C8's layer 3.
func (s *KnowledgeStore) AllValidatedQueries(ctx context.Context) ([]*models.ValidatedQuery, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, question, sql_text, tables_used, summary FROM validated_queries`)
	if err != nil {
		return nil, fmt.Errorf("%w: list validated queries: %v", models.ErrDependency, err)
	}
	defer rows.Close()

	var out []*models.ValidatedQuery
	for rows.Next() {
		vq := &models.ValidatedQuery{}
		var tables []byte
		if err := rows.Scan(&vq.Name, &vq.Question, &vq.SQL, &tables, &vq.Summary); err != nil {
			return nil, fmt.Errorf("%w: scan validated query row: %v", models.ErrDependency, err)
		}
		_ = json.Unmarshal(tables, &vq.TablesUsed)
		out = append(out, vq)
	}
	return out, rows.Err()
}
