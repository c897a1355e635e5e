package models

import "time"

// ValidationStatus is the case-level outcome of the VLM validation pass.
type ValidationStatus string

const (
	ValidationNotStarted ValidationStatus = "not_started"
	ValidationCompleted  ValidationStatus = "completed"
	ValidationFailed     ValidationStatus = "failed"
)

// Severity orders as high > medium > low for rollup comparisons.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// severityRank gives high > medium > low ordering; unknown severities rank lowest.
var severityRank = map[Severity]int{SeverityHigh: 3, SeverityMedium: 2, SeverityLow: 1}

// MaxSeverity returns the highest-ranked severity in the slice, or "" if empty/all-unknown.
func MaxSeverity(values []Severity) Severity {
	var best Severity
	bestRank := 0
	for _, v := range values {
		if r := severityRank[v]; r > bestRank {
			bestRank = r
			best = v
		}
	}
	return best
}

// TrialResult is a trial outcome: OK, NG, or unset.
type TrialResult string

const (
	ResultOK    TrialResult = "OK"
	ResultNG    TrialResult = "NG"
	ResultUnset TrialResult = ""
)

// Case is one spreadsheet's worth of troubleshooting data.
type Case struct {
	CaseID         string `json:"case_id"`
	PartNumber     string `json:"part_number"`
	InternalNumber string `json:"internal_number,omitempty"`
	MoldType       string `json:"mold_type,omitempty"`
	Material       string `json:"material,omitempty"`
	Color          string `json:"color,omitempty"`
	TotalIssues    int    `json:"total_issues"`
	SourceFile     string `json:"source_file"`

	VLMProcessed     bool             `json:"vlm_processed"`
	VLMSummary       string           `json:"vlm_summary,omitempty"`
	VLMConfidence    float64          `json:"vlm_confidence,omitempty"`
	Tags             []string         `json:"tags,omitempty"`
	KeyInsights      []string         `json:"key_insights,omitempty"`
	ValidationStatus ValidationStatus `json:"validation_status"`

	Issues []*Issue `json:"issues,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Issue is one row of the case's data table.
type Issue struct {
	IssueID             string      `json:"issue_id"`
	CaseID              string      `json:"case_id"`
	IssueNumber         int         `json:"issue_number"`
	RowID               string      `json:"row_id,omitempty"` // sequential r1, r2, ... within the case
	ExcelRow            int         `json:"excel_row,omitempty"`
	TrialVersion        string      `json:"trial_version,omitempty"` // T0, T1, T2, T3, or ""
	Category            string      `json:"category,omitempty"`
	Problem             string      `json:"problem,omitempty"`
	Solution            string      `json:"solution,omitempty"`
	ResultT1            TrialResult `json:"result_t1,omitempty"`
	ResultT2            TrialResult `json:"result_t2,omitempty"`
	CauseClassification string      `json:"cause_classification,omitempty"`

	DefectTypes      []string `json:"defect_types,omitempty"`
	Severity         Severity `json:"severity,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	KeyInsights      []string `json:"key_insights,omitempty"`
	SuggestedActions []string `json:"suggested_actions,omitempty"`
	VLMConfidence    float64  `json:"vlm_confidence,omitempty"`

	HasImages  bool `json:"has_images"`
	ImageCount int  `json:"image_count"`

	Images []*ImageRef `json:"images,omitempty"`

	ImageMappingStatus ImageMappingStatus `json:"image_mapping_status"`
}

// ImageMappingStatus tracks per-issue mapping-validation counts, recomputed
// by the correction engine after every correction pass.
type ImageMappingStatus struct {
	Total         int `json:"total"`
	Validated     int `json:"validated"`
	PendingReview int `json:"pending_review"`
}

// AnchorType describes how a drawing anchor ties an image to cells.
type AnchorType string

const (
	AnchorOneCell AnchorType = "oneCell"
	AnchorTwoCell AnchorType = "twoCell"
	AnchorUnknown AnchorType = "unknown"
)

// Anchor is the rectangular cell region an image is attached to.
type Anchor struct {
	RowStart      int        `json:"row_start"`
	RowEnd        int        `json:"row_end"`
	ColStart      int        `json:"col_start"`
	ColEnd        int        `json:"col_end"`
	RowOffsTop    int        `json:"row_offs_top"` // EMU, 1/914400 inch
	RowOffsBottom int        `json:"row_offs_bottom"`
	ColOffsLeft   int        `json:"col_offs_left"`
	ColOffsRight  int        `json:"col_offs_right"`
	Height        int        `json:"height"` // EMU
	Width         int        `json:"width"`  // EMU
	Type          AnchorType `json:"type"`
	Page          int        `json:"page"` // assigned by the page renderer; 0 until rendered
}

// MatchType classifies how an image's spatial position relates to an issue row.
type MatchType string

const (
	MatchPrimary   MatchType = "primary"
	MatchSecondary MatchType = "secondary"
	MatchTertiary  MatchType = "tertiary"
	MatchInline    MatchType = "inline"
	MatchOverlap   MatchType = "overlap"
	MatchPostImage MatchType = "post_image"
	MatchNone      MatchType = "none"
)

// SpatialMatch records the confidence and class of an image-to-issue assignment.
type SpatialMatch struct {
	Type        MatchType `json:"type"`
	Confidence  float64   `json:"confidence"`
	RowDistance int       `json:"row_distance"`
}

// MappingStatus is the lifecycle state of an image's issue assignment.
type MappingStatus string

const (
	MappingPending      MappingStatus = "pending"
	MappingValidated    MappingStatus = "validated"
	MappingReviewNeeded MappingStatus = "review_required"
)

// MappingMethod records how a mapping reached its current status.
type MappingMethod string

const (
	MethodAnchorBased  MappingMethod = "anchor_based"
	MethodVLMConfirmed MappingMethod = "vlm_confirmed"
	MethodVLMCorrected MappingMethod = "vlm_corrected"
	MethodManual       MappingMethod = "manual"
)

// MappingValidation is the outcome of the VLM validation/correction pass for one image.
type MappingValidation struct {
	Status      MappingStatus `json:"status"`
	Method      MappingMethod `json:"method"`
	Confidence  float64       `json:"confidence"`
	Reason      string        `json:"reason,omitempty"`
	ValidatedAt time.Time     `json:"validated_at,omitempty"`
	ReviewedBy  string        `json:"reviewed_by,omitempty"`
}

// ImageRef is one embedded picture extracted from the spreadsheet.
type ImageRef struct {
	ImageID  string `json:"image_id"`
	FilePath string `json:"file_path"`
	Anchor   Anchor `json:"anchor"`

	SpatialMatch      SpatialMatch      `json:"spatial_match"`
	MappingValidation MappingValidation `json:"mapping_validation"`

	VLDescription     string   `json:"vl_description,omitempty"`
	DefectType        string   `json:"defect_type,omitempty"`
	EquipmentPart     string   `json:"equipment_part,omitempty"`
	TextInImage       string   `json:"text_in_image,omitempty"`
	VisualAnnotations []string `json:"visual_annotations,omitempty"`
	Severity          Severity `json:"severity,omitempty"`
	Tags              []string `json:"tags,omitempty"`
	KeyInsights       []string `json:"key_insights,omitempty"`
	SuggestedActions  []string `json:"suggested_actions,omitempty"`
}
