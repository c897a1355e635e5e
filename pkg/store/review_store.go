package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unergybot/tke/pkg/models"
)

// ReviewStore backs C15 (the operator review queue added to resolve image
// mappings the spatial+VLM pipeline could not confidently settle). Images
// are not a table of their own (see the relational schema note), so the
// queue is computed by scanning the images JSONB column on issues.
type ReviewStore struct {
	pool  *pgxpool.Pool
	cases *CaseStore
}

// NewReviewStore builds a ReviewStore over pool. cases is used to bump a
// case's updated_at whenever one of its issues' image mappings is resolved.
func NewReviewStore(pool *pgxpool.Pool, cases *CaseStore) *ReviewStore {
	return &ReviewStore{pool: pool, cases: cases}
}

// ReviewItem is one image awaiting operator review, with enough case/issue
// context to render a useful review UI without a second round trip.
type ReviewItem struct {
	CaseID   string           `json:"case_id"`
	IssueID  string           `json:"issue_id"`
	PartNumber string         `json:"part_number"`
	Image    *models.ImageRef `json:"image"`
}

// ListPending returns every image whose mapping validation status is
// review_required, joined with its case's part number.
func (s *ReviewStore) ListPending(ctx context.Context) ([]*ReviewItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.case_id, c.part_number, i.issue_id, elem.value
		FROM issues i
		JOIN cases c ON c.case_id = i.case_id
		CROSS JOIN LATERAL jsonb_array_elements(i.images) AS elem(value)
		WHERE elem.value -> 'mapping_validation' ->> 'status' = 'review_required'
		ORDER BY c.case_id, i.issue_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list review queue: %v", models.ErrDependency, err)
	}
	defer rows.Close()

	var out []*ReviewItem
	for rows.Next() {
		item := &ReviewItem{}
		var raw []byte
		if err := rows.Scan(&item.CaseID, &item.PartNumber, &item.IssueID, &raw); err != nil {
			return nil, fmt.Errorf("%w: scan review item: %v", models.ErrDependency, err)
		}
		var img models.ImageRef
		if err := json.Unmarshal(raw, &img); err != nil {
			return nil, fmt.Errorf("%w: decode image ref: %v", models.ErrDependency, err)
		}
		item.Image = &img
		out = append(out, item)
	}
	return out, rows.Err()
}

// Resolve writes a reviewer's decision back onto the matching image inside
// an issue's images array: the mapping status moves to validated (or stays
// review_required when accept is false) and reviewed_by is stamped. The
// mapping method and validated_at are left unchanged.
func (s *ReviewStore) Resolve(ctx context.Context, issueID, imageID, reviewedBy string, accept bool) error {
	status := string(models.MappingValidated)
	if !accept {
		status = string(models.MappingReviewNeeded)
	}

	var caseID string
	err := s.pool.QueryRow(ctx, `
		UPDATE issues SET images = (
			SELECT jsonb_agg(
				CASE WHEN elem ->> 'image_id' = $2 THEN
					jsonb_set(
						jsonb_set(elem, '{mapping_validation,status}', to_jsonb($3::text)),
						'{mapping_validation,reviewed_by}', to_jsonb($4::text)
					)
				ELSE elem END
			)
			FROM jsonb_array_elements(images) AS elem
		), updated_at = now()
		WHERE issue_id = $1
		RETURNING case_id`,
		issueID, imageID, status, reviewedBy).Scan(&caseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: issue %s not found", models.ErrInput, issueID)
		}
		return fmt.Errorf("%w: resolve review for image %s: %v", models.ErrDependency, imageID, err)
	}

	if s.cases != nil {
		if err := s.cases.TouchUpdatedAt(ctx, caseID); err != nil {
			return fmt.Errorf("%w: touch case %s after review resolve: %v", models.ErrDependency, caseID, err)
		}
	}
	return nil
}
