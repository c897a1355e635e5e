// Package store holds the relational repositories backing the case corpus:
// one type per table, each built around a *pgxpool.Pool and returning
// pkg/models structs rather than rows.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unergybot/tke/pkg/models"
)

// CaseStore persists cases and their issues. Writes to a case and its
// issues happen inside one transaction so a Case never reaches readers
// half-written.
type CaseStore struct {
	pool *pgxpool.Pool
}

// NewCaseStore builds a CaseStore over pool.
func NewCaseStore(pool *pgxpool.Pool) *CaseStore {
	return &CaseStore{pool: pool}
}

// DeleteCase removes a case and (via ON DELETE CASCADE) its issues. Safe to
// call on a case_id that does not exist.
func (s *CaseStore) DeleteCase(ctx context.Context, caseID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM cases WHERE case_id = $1`, caseID)
	if err != nil {
		return fmt.Errorf("%w: delete case %s: %v", models.ErrDependency, caseID, err)
	}
	return nil
}

// RelationalCounts summarizes table sizes for the stats operation.
type RelationalCounts struct {
	Cases  int64
	Issues int64
}

// Counts returns the current row counts for cases and issues, used by the
// stats operation alongside the vector collection counts.
func (s *CaseStore) Counts(ctx context.Context) (RelationalCounts, error) {
	var out RelationalCounts
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM cases`).Scan(&out.Cases); err != nil {
		return RelationalCounts{}, fmt.Errorf("%w: count cases: %v", models.ErrDependency, err)
	}
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM issues`).Scan(&out.Issues); err != nil {
		return RelationalCounts{}, fmt.Errorf("%w: count issues: %v", models.ErrDependency, err)
	}
	return out, nil
}

// UpsertCase writes a case and upserts each of its issues inside a single
// transaction. Issue rows of the case that are not in c.Issues are left in
// place; DeleteCase removes them.
func (s *CaseStore) UpsertCase(ctx context.Context, c *models.Case) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", models.ErrDependency, err)
	}
	defer tx.Rollback(ctx)

	tags, _ := json.Marshal(c.Tags)
	insights, _ := json.Marshal(c.KeyInsights)

	_, err = tx.Exec(ctx, `
		INSERT INTO cases (case_id, part_number, internal_number, mold_type, material, color,
			total_issues, source_file, vlm_processed, vlm_summary, vlm_confidence,
			tags, key_insights, validation_status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,now())
		ON CONFLICT (case_id) DO UPDATE SET
			part_number = EXCLUDED.part_number,
			internal_number = EXCLUDED.internal_number,
			mold_type = EXCLUDED.mold_type,
			material = EXCLUDED.material,
			color = EXCLUDED.color,
			total_issues = EXCLUDED.total_issues,
			source_file = EXCLUDED.source_file,
			vlm_processed = EXCLUDED.vlm_processed,
			vlm_summary = EXCLUDED.vlm_summary,
			vlm_confidence = EXCLUDED.vlm_confidence,
			tags = EXCLUDED.tags,
			key_insights = EXCLUDED.key_insights,
			validation_status = EXCLUDED.validation_status,
			updated_at = now()`,
		c.CaseID, c.PartNumber, c.InternalNumber, c.MoldType, c.Material, c.Color,
		c.TotalIssues, c.SourceFile, c.VLMProcessed, c.VLMSummary, c.VLMConfidence,
		tags, insights, string(c.ValidationStatus), c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: upsert case %s: %v", models.ErrDependency, c.CaseID, err)
	}

	for _, issue := range c.Issues {
		if err := upsertIssue(ctx, tx, c.CaseID, issue); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit tx: %v", models.ErrDependency, err)
	}
	return nil
}

func upsertIssue(ctx context.Context, tx pgx.Tx, caseID string, issue *models.Issue) error {
	defectTypes, _ := json.Marshal(issue.DefectTypes)
	tags, _ := json.Marshal(issue.Tags)
	insights, _ := json.Marshal(issue.KeyInsights)
	actions, _ := json.Marshal(issue.SuggestedActions)
	images, _ := json.Marshal(issue.Images)

	_, err := tx.Exec(ctx, `
		INSERT INTO issues (issue_id, case_id, issue_number, row_id, excel_row, trial_version,
			category, problem, solution, result_t1, result_t2, cause_classification,
			defect_types, severity, tags, key_insights, suggested_actions, vlm_confidence,
			images, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,now(),now())
		ON CONFLICT (issue_id) DO UPDATE SET
			issue_number = EXCLUDED.issue_number,
			row_id = EXCLUDED.row_id,
			excel_row = EXCLUDED.excel_row,
			trial_version = EXCLUDED.trial_version,
			category = EXCLUDED.category,
			problem = EXCLUDED.problem,
			solution = EXCLUDED.solution,
			result_t1 = EXCLUDED.result_t1,
			result_t2 = EXCLUDED.result_t2,
			cause_classification = EXCLUDED.cause_classification,
			defect_types = EXCLUDED.defect_types,
			severity = EXCLUDED.severity,
			tags = EXCLUDED.tags,
			key_insights = EXCLUDED.key_insights,
			suggested_actions = EXCLUDED.suggested_actions,
			vlm_confidence = EXCLUDED.vlm_confidence,
			images = EXCLUDED.images,
			updated_at = now()`,
		issue.IssueID, caseID, issue.IssueNumber, issue.RowID, issue.ExcelRow, issue.TrialVersion,
		issue.Category, issue.Problem, issue.Solution, issue.ResultT1, issue.ResultT2,
		issue.CauseClassification, defectTypes, string(issue.Severity), tags, insights, actions,
		issue.VLMConfidence, images,
	)
	if err != nil {
		return fmt.Errorf("%w: upsert issue %s: %v", models.ErrDependency, issue.IssueID, err)
	}
	return nil
}

// GetCase fetches a case and its issues by ID.
func (s *CaseStore) GetCase(ctx context.Context, caseID string) (*models.Case, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT case_id, part_number, internal_number, mold_type, material, color,
			total_issues, source_file, vlm_processed, vlm_summary, vlm_confidence,
			tags, key_insights, validation_status, created_at, updated_at
		FROM cases WHERE case_id = $1`, caseID)

	c := &models.Case{}
	var tags, insights []byte
	var status string
	err := row.Scan(&c.CaseID, &c.PartNumber, &c.InternalNumber, &c.MoldType, &c.Material, &c.Color,
		&c.TotalIssues, &c.SourceFile, &c.VLMProcessed, &c.VLMSummary, &c.VLMConfidence,
		&tags, &insights, &status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: case %s not found", models.ErrInput, caseID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get case %s: %v", models.ErrDependency, caseID, err)
	}
	c.ValidationStatus = models.ValidationStatus(status)
	_ = json.Unmarshal(tags, &c.Tags)
	_ = json.Unmarshal(insights, &c.KeyInsights)

	issues, err := listIssuesForCase(ctx, s.pool, caseID)
	if err != nil {
		return nil, err
	}
	c.Issues = issues
	return c, nil
}

func listIssuesForCase(ctx context.Context, pool *pgxpool.Pool, caseID string) ([]*models.Issue, error) {
	rows, err := pool.Query(ctx, `
		SELECT issue_id, issue_number, row_id, excel_row, trial_version, category, problem,
			solution, result_t1, result_t2, cause_classification, defect_types, severity,
			tags, key_insights, suggested_actions, vlm_confidence, images
		FROM issues WHERE case_id = $1 ORDER BY issue_number`, caseID)
	if err != nil {
		return nil, fmt.Errorf("%w: list issues for case %s: %v", models.ErrDependency, caseID, err)
	}
	defer rows.Close()

	var out []*models.Issue
	for rows.Next() {
		issue := &models.Issue{CaseID: caseID}
		var defectTypes, tags, insights, actions, images []byte
		var severity string
		if err := rows.Scan(&issue.IssueID, &issue.IssueNumber, &issue.RowID, &issue.ExcelRow,
			&issue.TrialVersion, &issue.Category, &issue.Problem, &issue.Solution,
			&issue.ResultT1, &issue.ResultT2, &issue.CauseClassification, &defectTypes,
			&severity, &tags, &insights, &actions, &issue.VLMConfidence, &images); err != nil {
			return nil, fmt.Errorf("%w: scan issue row: %v", models.ErrDependency, err)
		}
		issue.Severity = models.Severity(severity)
		_ = json.Unmarshal(defectTypes, &issue.DefectTypes)
		_ = json.Unmarshal(tags, &issue.Tags)
		_ = json.Unmarshal(insights, &issue.KeyInsights)
		_ = json.Unmarshal(actions, &issue.SuggestedActions)
		_ = json.Unmarshal(images, &issue.Images)
		issue.HasImages = len(issue.Images) > 0
		issue.ImageCount = len(issue.Images)
		out = append(out, issue)
	}
	return out, rows.Err()
}

// TouchUpdatedAt stamps updated_at on a case row without touching any other
// column, used after image-mapping review decisions change one of its
// issues.
func (s *CaseStore) TouchUpdatedAt(ctx context.Context, caseID string) error {
	_, err := s.pool.Exec(ctx, `UPDATE cases SET updated_at = $1 WHERE case_id = $2`, time.Now(), caseID)
	return err
}
