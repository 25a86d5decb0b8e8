package printing

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/medimaging/backend/internal/domain/printing"
	"github.com/medimaging/backend/internal/domain/shared"
)

// DefaultRenderTimeout bounds one Render call including every retry.
const DefaultRenderTimeout = 60 * time.Second

// RenderRequest contains the parameters for rendering HTML to PDF
type RenderRequest struct {
	// HTML is a complete document. Images must be inline data URIs.
	HTML string
	// PaperSize defines the output paper dimensions (A4 when empty)
	PaperSize printing.PaperSize
	// Orientation defines portrait or landscape
	Orientation printing.Orientation
	// Margins in millimeters; zero margins fall back to 15mm
	Margins printing.Margins
	// Title for logs and the span name
	Title string
	// Timeout overrides the renderer's timeout for this call
	Timeout time.Duration
}

// RenderResult contains the output from PDF rendering
type RenderResult struct {
	// PDFData is the raw PDF file content
	PDFData []byte
	// PageCount is the number of pages in the PDF
	PageCount int
	// Attempts is how many print attempts it took
	Attempts int
	// RenderDuration is how long the rendering took
	RenderDuration time.Duration
}

// PDFRenderer defines the interface for rendering HTML to PDF
type PDFRenderer interface {
	// Render converts HTML content to a PDF document
	Render(ctx context.Context, req *RenderRequest) (*RenderResult, error)
}

// normalize validates the request and fills defaults.
func (r *RenderRequest) normalize() error {
	if r == nil {
		return shared.NewValidationError("render request is nil")
	}
	if strings.TrimSpace(r.HTML) == "" {
		return shared.NewValidationError("HTML content is empty")
	}
	if r.PaperSize == "" {
		r.PaperSize = printing.PaperSizeA4
	}
	if !r.PaperSize.IsValid() {
		return shared.NewValidationError("invalid paper size: " + string(r.PaperSize))
	}
	if r.Orientation == "" {
		r.Orientation = printing.OrientationPortrait
	}
	if !r.Orientation.IsValid() {
		return shared.NewValidationError("invalid orientation: " + string(r.Orientation))
	}
	if r.Margins.IsZero() {
		r.Margins = printing.DefaultMargins()
	}
	return nil
}

// estimatePageCount counts page objects. Every page carries "/Type /Page";
// the page tree root carries "/Type /Pages" which matches the same prefix.
func estimatePageCount(pdfData []byte) int {
	count := bytes.Count(pdfData, []byte("/Type /Page"))
	count -= bytes.Count(pdfData, []byte("/Type /Pages"))
	return max(count, 1)
}
