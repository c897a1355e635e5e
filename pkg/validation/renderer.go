// Package validation implements C5: rendering each spreadsheet page to an
// image, asking the VLM to confirm or correct the image-to-issue mapping
// C4 produced, and applying the resulting correction policy.
package validation

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/unergybot/tke/pkg/models"
)

// Page is one rendered spreadsheet page: its raster image plus the row
// range it covers (1-based, inclusive).
type Page struct {
	Number   int
	ImageDir string
	RowStart int
	RowEnd   int
}

// Renderer converts a spreadsheet to PDF via a headless LibreOffice
// invocation, then rasterizes each page to PNG via go-fitz.
type Renderer struct {
	libreOfficePath string
	dpi             float64
	rowsPerPage     int
}

// NewRenderer builds a Renderer. dpi and rowsPerPage come from
// config.ValidationConfig (PageRenderDPI, RowsPerPageFallback).
func NewRenderer(libreOfficePath string, dpi float64, rowsPerPage int) *Renderer {
	return &Renderer{libreOfficePath: libreOfficePath, dpi: dpi, rowsPerPage: rowsPerPage}
}

// RenderPages converts spreadsheetPath to PDF in outDir, rasterizes every
// page to PNG, and derives each page's row range from the fallback
// rows-per-page policy (explicit row-break introspection is not exposed by
// the spreadsheet library in use here; see DESIGN.md).
func (r *Renderer) RenderPages(ctx context.Context, spreadsheetPath, outDir string) ([]Page, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create render dir: %v", models.ErrDependency, err)
	}

	pdfPath, err := r.convertToPDF(ctx, spreadsheetPath, outDir)
	if err != nil {
		return nil, err
	}

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open rendered pdf: %v", models.ErrDependency, err)
	}
	defer doc.Close()

	numPages := doc.NumPage()
	pages := make([]Page, 0, numPages)
	row := 1
	for i := 0; i < numPages; i++ {
		img, err := doc.ImageDPI(i, r.dpi)
		if err != nil {
			return nil, fmt.Errorf("%w: rasterize page %d: %v", models.ErrDependency, i, err)
		}

		imgPath := filepath.Join(outDir, fmt.Sprintf("page_%03d.png", i+1))
		if err := savePNG(img, imgPath); err != nil {
			return nil, fmt.Errorf("%w: save rendered page %d: %v", models.ErrDependency, i, err)
		}

		rowStart := row
		rowEnd := row + r.rowsPerPage - 1
		pages = append(pages, Page{Number: i + 1, ImageDir: imgPath, RowStart: rowStart, RowEnd: rowEnd})
		row = rowEnd + 1
	}
	return pages, nil
}

func (r *Renderer) convertToPDF(ctx context.Context, spreadsheetPath, outDir string) (string, error) {
	cmd := exec.CommandContext(ctx, r.libreOfficePath,
		"--headless", "--convert-to", "pdf", "--outdir", outDir, spreadsheetPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: libreoffice convert failed: %v: %s", models.ErrDependency, err, strings.TrimSpace(string(out)))
	}

	base := strings.TrimSuffix(filepath.Base(spreadsheetPath), filepath.Ext(spreadsheetPath))
	pdfPath := filepath.Join(outDir, base+".pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		return "", fmt.Errorf("%w: expected pdf output not found at %s: %v", models.ErrDependency, pdfPath, err)
	}
	return pdfPath, nil
}
