package extractor

import (
	"path/filepath"
	"strconv"
	"testing"

	"github.com/qax-os/excelize/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unergybot/tke/pkg/models"
)

func buildSampleWorkbook(t *testing.T, headerRow int) string {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	require.NoError(t, f.SetCellValue(sheet, "F4", "mold-A"))
	require.NoError(t, f.SetCellValue(sheet, "F6", "PN-123"))
	require.NoError(t, f.SetCellValue(sheet, "F8", "INT-9"))
	require.NoError(t, f.SetCellValue(sheet, "G13", "HIPS"))
	require.NoError(t, f.SetCellValue(sheet, "G14", "black"))

	headers := []string{"NO", "型试", "项目", "問題点", "原因，对策", "修正結果T1", "修正結果T2"}
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(1 + i)
		require.NoError(t, f.SetCellValue(sheet, col+strconv.Itoa(headerRow), h))
	}

	dataRow := headerRow + 1
	require.NoError(t, f.SetCellValue(sheet, "A"+strconv.Itoa(dataRow), 1))
	require.NoError(t, f.SetCellValue(sheet, "B"+strconv.Itoa(dataRow), "T1"))
	require.NoError(t, f.SetCellValue(sheet, "C"+strconv.Itoa(dataRow), "外观"))
	require.NoError(t, f.SetCellValue(sheet, "D"+strconv.Itoa(dataRow), "披锋问题"))
	require.NoError(t, f.SetCellValue(sheet, "E"+strconv.Itoa(dataRow), "调整模温"))
	require.NoError(t, f.SetCellValue(sheet, "F"+strconv.Itoa(dataRow), "NG"))
	require.NoError(t, f.SetCellValue(sheet, "G"+strconv.Itoa(dataRow), "OK"))

	path := filepath.Join(t.TempDir(), "case.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestExtractMetadataAndIssues(t *testing.T) {
	path := buildSampleWorkbook(t, 20)
	e := New(filepath.Join(t.TempDir(), "images"))

	c, images, err := e.Extract(path)
	require.NoError(t, err)
	assert.Empty(t, images)
	assert.Equal(t, "PN-123", c.PartNumber)
	assert.Equal(t, "INT-9", c.InternalNumber)
	assert.Equal(t, "mold-A", c.MoldType)
	assert.Equal(t, "HIPS", c.Material)
	assert.Equal(t, "black", c.Color)
	assert.Equal(t, "TS-PN-123-INT-9", c.CaseID)
	require.Len(t, c.Issues, 1)
	assert.Equal(t, 1, c.Issues[0].IssueNumber)
	assert.Equal(t, "披锋问题", c.Issues[0].Problem)
	assert.Equal(t, models.ResultNG, c.Issues[0].ResultT1)
	assert.Equal(t, models.ResultOK, c.Issues[0].ResultT2)
	assert.Equal(t, c.TotalIssues, len(c.Issues))
}

func TestGenerateCaseIDFallsBackToRandomSuffix(t *testing.T) {
	id := generateCaseID(extractedMetadata{partNumber: "PN-1"})
	assert.Contains(t, id, "TS-PN-1-")
	assert.Len(t, id, len("TS-PN-1-")+8)
}

func TestFindHeaderRowAcceptsAtLeastThreeMatches(t *testing.T) {
	rows := make([][]string, 25)
	for i := range rows {
		rows[i] = []string{}
	}
	rows[19] = []string{"NO", "型试", "问题点", "問題点", "", "", "", "", "", "", "", "", "", ""}
	got := findHeaderRow(rows)
	assert.Equal(t, 19, got)
}

func TestFindHeaderRowFallsBackWithTwoMatches(t *testing.T) {
	rows := make([][]string, 30)
	for i := range rows {
		rows[i] = []string{}
	}
	rows[16] = []string{"NO", "問題点"}
	got := findHeaderRow(rows)
	assert.Equal(t, defaultHeaderRow0Based, got)
}
