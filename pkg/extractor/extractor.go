// Package extractor implements C3, the case extractor: parsing a
// troubleshooting spreadsheet into an in-memory Case plus its Issues and the
// raw list of embedded ImageRefs with anchor geometry. Image-to-issue
// assignment is not performed here; that is C4's job (pkg/mapper).
package extractor

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/qax-os/excelize/v2"

	"github.com/unergybot/tke/pkg/models"
)

// headerTokens are the canonical column-header substrings used to locate the
// data table; a row matching at least 3 is accepted as the header row.
var headerTokens = []string{"NO", "問題点", "原因，对策", "型试"}

// defaultHeaderRow0Based is used when no row in the scan window matches
// at least 3 header tokens.
const defaultHeaderRow0Based = 19

// requiredColumns lists the canonical column headers the issue fields are
// read from; "原因分类" is optional and silently skipped if absent.
var requiredColumns = []string{"NO", "型试", "项目", "問題点", "原因，对策", "修正結果T1", "修正結果T2"}

// Extractor parses spreadsheets and writes extracted images under imagesDir.
type Extractor struct {
	imagesDir string
}

// New builds an Extractor that writes extracted images under imagesDir
// (created if missing).
func New(imagesDir string) *Extractor {
	return &Extractor{imagesDir: imagesDir}
}

// Extract parses path into a Case (with Issues but no images attached yet)
// and the full list of extracted ImageRefs with populated anchors. Fails
// with models.ErrInput on an unreadable file, missing data header, or empty
// sheet.
func (e *Extractor) Extract(path string) (*models.Case, []*models.ImageRef, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open %s: %v", models.ErrInput, path, err)
	}
	defer f.Close()

	sheet := f.GetSheetList()
	if len(sheet) == 0 {
		return nil, nil, fmt.Errorf("%w: %s has no sheets", models.ErrInput, path)
	}
	sheetName := sheet[0]

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read rows from %s: %v", models.ErrInput, path, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%w: %s sheet %s is empty", models.ErrInput, path, sheetName)
	}

	metadata := extractMetadata(f, sheetName)

	headerRow0Based := findHeaderRow(rows)
	dataStartRow1Based := headerRow0Based + 2

	if headerRow0Based >= len(rows) {
		return nil, nil, fmt.Errorf("%w: %s header row %d beyond sheet bounds", models.ErrInput, path, headerRow0Based)
	}
	columnIndex := indexColumns(rows[headerRow0Based])
	if _, ok := columnIndex["NO"]; !ok {
		return nil, nil, fmt.Errorf("%w: %s missing NO column in header row", models.ErrInput, path)
	}

	caseID := generateCaseID(metadata)

	issues := buildIssues(rows, columnIndex, dataStartRow1Based, caseID)

	images, err := e.extractImages(f, sheetName, stem(path))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: extract images from %s: %v", models.ErrInput, path, err)
	}

	now := time.Now()
	c := &models.Case{
		CaseID:           caseID,
		PartNumber:       metadata.partNumber,
		InternalNumber:   metadata.internalNumber,
		MoldType:         metadata.moldType,
		Material:         metadata.material,
		Color:            metadata.color,
		TotalIssues:      len(issues),
		SourceFile:       path,
		ValidationStatus: models.ValidationNotStarted,
		Issues:           issues,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return c, images, nil
}

type extractedMetadata struct {
	partNumber     string
	internalNumber string
	moldType       string
	material       string
	color          string
}

// extractMetadata reads the fixed metadata cells. Blank cells yield "", not
// a sentinel; the Case struct already treats empty string as "not set" via
// omitempty JSON tags.
func extractMetadata(f *excelize.File, sheet string) extractedMetadata {
	cell := func(ref string) string {
		v, _ := f.GetCellValue(sheet, ref)
		return strings.TrimSpace(v)
	}
	material := cell("G13")
	if material == "" {
		material = cell("I13")
	}
	if material == "" {
		material = cell("K13")
	}
	return extractedMetadata{
		moldType:       cell("F4"),
		partNumber:     cell("F6"),
		internalNumber: cell("F8"),
		material:       material,
		color:          cell("G14"),
	}
}

// findHeaderRow scans 1-based spreadsheet rows 15..29 for a row with at
// least 3 of the canonical header tokens among its first 14 columns,
// returning the 0-based pandas-style header index. Falls back to
// defaultHeaderRow0Based if none qualifies.
func findHeaderRow(rows [][]string) int {
	scanStart, scanEnd := 15, 29 // 1-based, inclusive
	for rowNum := scanStart; rowNum <= scanEnd; rowNum++ {
		idx := rowNum - 1 // 0-based index into rows
		if idx >= len(rows) {
			break
		}
		row := rows[idx]
		matches := 0
		for _, token := range headerTokens {
			found := false
			limit := len(row)
			if limit > 14 {
				limit = 14
			}
			for col := 0; col < limit; col++ {
				if strings.Contains(row[col], token) {
					found = true
					break
				}
			}
			if found {
				matches++
			}
		}
		if matches >= 3 {
			return rowNum - 1 // 0-based header row
		}
	}
	return defaultHeaderRow0Based
}

func indexColumns(headerRow []string) map[string]int {
	idx := make(map[string]int, len(requiredColumns)+1)
	for i, cell := range headerRow {
		name := strings.TrimSpace(cell)
		for _, want := range append(append([]string{}, requiredColumns...), "原因分类") {
			if name == want {
				idx[want] = i
			}
		}
	}
	return idx
}

func buildIssues(rows [][]string, columnIndex map[string]int, dataStartRow1Based int, caseID string) []*models.Issue {
	cellAt := func(row []string, name string) string {
		i, ok := columnIndex[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var issues []*models.Issue
	rowIdx0Based := dataStartRow1Based - 1
	for ; rowIdx0Based < len(rows); rowIdx0Based++ {
		row := rows[rowIdx0Based]
		noStr := cellAt(row, "NO")
		if noStr == "" || noStr == "NO" {
			continue
		}
		issueNumber, err := strconv.Atoi(noStr)
		if err != nil {
			continue
		}

		excelRow := rowIdx0Based + 1 // 1-based
		rowID := fmt.Sprintf("r%d", len(issues)+1)
		issue := &models.Issue{
			IssueID:             fmt.Sprintf("%s-%d-%d", caseID, issueNumber, excelRow),
			CaseID:              caseID,
			IssueNumber:         issueNumber,
			RowID:               rowID,
			ExcelRow:            excelRow,
			TrialVersion:        cellAt(row, "型试"),
			Category:            cellAt(row, "项目"),
			Problem:             cellAt(row, "問題点"),
			Solution:            cellAt(row, "原因，对策"),
			ResultT1:            models.TrialResult(cellAt(row, "修正結果T1")),
			ResultT2:            models.TrialResult(cellAt(row, "修正結果T2")),
			CauseClassification: cellAt(row, "原因分类"),
		}
		issues = append(issues, issue)
	}
	return issues
}

// extractImages saves every embedded picture except the first (presumed
// header logo) as RGB JPEG quality 90 under e.imagesDir, returning one
// ImageRef per saved image with its anchor geometry populated.
func (e *Extractor) extractImages(f *excelize.File, sheet, caseStem string) ([]*models.ImageRef, error) {
	if err := os.MkdirAll(e.imagesDir, 0o755); err != nil {
		return nil, err
	}

	cells, err := f.GetPictureCells(sheet)
	if err != nil {
		return nil, err
	}

	var refs []*models.ImageRef
	imgNum := 0
	for _, cellRef := range cells {
		pics, err := f.GetPictures(sheet, cellRef)
		if err != nil {
			continue
		}
		for _, pic := range pics {
			imgNum++
			if imgNum == 1 {
				continue // header logo
			}

			anchor, err := anchorFromPicture(cellRef, pic)
			if err != nil {
				continue
			}

			imageID := fmt.Sprintf("%s_img%03d", caseStem, imgNum)
			imagePath := filepath.Join(e.imagesDir, imageID+".jpg")
			if err := saveAsRGBJPEG(pic.File, imagePath); err != nil {
				continue
			}

			refs = append(refs, &models.ImageRef{
				ImageID:  imageID,
				FilePath: imagePath,
				Anchor:   anchor,
				MappingValidation: models.MappingValidation{
					Status: models.MappingPending,
					Method: models.MethodAnchorBased,
				},
			})
		}
	}
	return refs, nil
}

// anchorFromPicture derives anchor geometry from the cell the picture is
// rooted at plus its positioning metadata. excelize's public API does not
// expose a two-cell anchor's explicit "to" coordinate, so the row span is
// approximated from the decoded image's pixel extent for both anchor kinds,
// assuming ~15 rows per vertical inch (matching the one-cell fallback the
// original extractor uses). The column span is not approximated: ColEnd
// equals ColStart.
func anchorFromPicture(cellRef string, pic excelize.Picture) (models.Anchor, error) {
	col, row, err := excelize.CellNameToCoordinates(cellRef)
	if err != nil {
		return models.Anchor{}, err
	}

	anchorType := models.AnchorUnknown
	var offsetX, offsetY int
	if pic.Format != nil {
		offsetX = pic.Format.OffsetX
		offsetY = pic.Format.OffsetY
		switch pic.Format.Positioning {
		case "oneCell":
			anchorType = models.AnchorOneCell
		case "twoCell":
			anchorType = models.AnchorTwoCell
		}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(pic.File))
	widthEMU, heightEMU := 0, 0
	rowEnd, colEnd := row, col
	if err == nil {
		const emuPerPixel = 9525
		widthEMU = cfg.Width * emuPerPixel
		heightEMU = cfg.Height * emuPerPixel
		heightInches := float64(heightEMU) / 914400
		approxRows := int(heightInches * 15)
		if approxRows < 1 {
			approxRows = 1
		}
		rowEnd = row + approxRows
	}

	return models.Anchor{
		RowStart:      row,
		RowEnd:        rowEnd,
		ColStart:      col,
		ColEnd:        colEnd,
		RowOffsTop:    offsetY,
		ColOffsLeft:   offsetX,
		RowOffsBottom: 0,
		ColOffsRight:  0,
		Height:        heightEMU,
		Width:         widthEMU,
		Type:          anchorType,
	}, nil
}

func saveAsRGBJPEG(data []byte, outPath string) error {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return err
	}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	return jpeg.Encode(out, img, &jpeg.Options{Quality: 90})
}

func generateCaseID(m extractedMetadata) string {
	partNumber := m.partNumber
	if partNumber == "" {
		partNumber = "UNKNOWN"
	}
	internal := m.internalNumber
	if internal == "" {
		internal = randomSuffix()
	}
	return fmt.Sprintf("TS-%s-%s", partNumber, internal)
}

func randomSuffix() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(buf)
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
