package handler

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	app "github.com/medimaging/backend/internal/application/report"
	"github.com/medimaging/backend/internal/infrastructure/logger"
	"github.com/medimaging/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// ReportService is the report API the report handler needs
type ReportService interface {
	GeneratePDF(ctx context.Context, clinicID uuid.UUID, req app.ReportRequest) (*app.PDFResult, error)
	SaveReport(ctx context.Context, clinicID uuid.UUID, req app.ReportRequest) (*app.SaveResult, error)
	ListReports(ctx context.Context, clinicID uuid.UUID) ([]app.ReportListItem, error)
	GenerateFromSaved(ctx context.Context, clinicID, reportID uuid.UUID) (*app.PDFResult, error)
	DeleteReport(ctx context.Context, clinicID, reportID uuid.UUID) error
	GetArtifact(ctx context.Context, clinicID uuid.UUID, filename string) (*app.Artifact, error)
}

// ReportHandler serves report generation, storage and download
type ReportHandler struct {
	BaseHandler
	reports ReportService
}

// NewReportHandler creates a new report handler
func NewReportHandler(reports ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// GeneratePDF renders the submitted report and returns the PDF bytes.
// Unless previewOnly is set the report and its artifact are persisted.
//
//	POST /generate-pdf
func (h *ReportHandler) GeneratePDF(c *gin.Context) {
	clinicID, ok := h.clinicID(c)
	if !ok {
		return
	}

	var req app.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.reports.GeneratePDF(c.Request.Context(), clinicID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	writePDF(c, result)
}

// SaveReport stores the report parameters without rendering.
//
//	POST /save-report
func (h *ReportHandler) SaveReport(c *gin.Context) {
	clinicID, ok := h.clinicID(c)
	if !ok {
		return
	}

	var req app.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.reports.SaveReport(c.Request.Context(), clinicID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ListReports returns this clinic's reports, newest first.
//
//	GET /reports
func (h *ReportHandler) ListReports(c *gin.Context) {
	clinicID, ok := h.clinicID(c)
	if !ok {
		return
	}

	items, err := h.reports.ListReports(c.Request.Context(), clinicID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if items == nil {
		items = []app.ReportListItem{}
	}
	h.Success(c, items)
}

// GenerateFromSaved renders a previously saved report.
//
//	POST /generate-from-saved/:id
func (h *ReportHandler) GenerateFromSaved(c *gin.Context) {
	clinicID, ok := h.clinicID(c)
	if !ok {
		return
	}
	reportID, ok := h.pathID(c)
	if !ok {
		return
	}

	result, err := h.reports.GenerateFromSaved(c.Request.Context(), clinicID, reportID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	writePDF(c, result)
}

// DeleteReport removes a report, its images and its PDF.
//
//	DELETE /reports/:id
//	DELETE /delete-report/:id
func (h *ReportHandler) DeleteReport(c *gin.Context) {
	clinicID, ok := h.clinicID(c)
	if !ok {
		return
	}
	reportID, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.reports.DeleteReport(c.Request.Context(), clinicID, reportID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Message(c, "Report deleted successfully")
}

// DownloadPDF streams a rendered PDF owned by this clinic.
//
//	GET /reports/:filename
func (h *ReportHandler) DownloadPDF(c *gin.Context) {
	clinicID, ok := h.clinicID(c)
	if !ok {
		return
	}

	artifact, err := h.reports.GetArtifact(c.Request.Context(), clinicID, c.Param("filename"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	defer artifact.Content.Close()

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", contentDisposition("inline", artifact.Filename))
	c.Status(http.StatusOK)

	// Headers are already out, a copy failure can only be logged
	if _, err := io.Copy(c.Writer, artifact.Content); err != nil {
		logger.GetGinLogger(c).Warn("failed to stream pdf",
			zap.String("filename", artifact.Filename), zap.Error(err))
	}
}

func writePDF(c *gin.Context, result *app.PDFResult) {
	disposition := "attachment"
	if result.Inline {
		disposition = "inline"
	}
	c.Header("Content-Disposition", contentDisposition(disposition, result.DownloadName))
	if result.ReportID != uuid.Nil {
		c.Header("X-Report-ID", result.ReportID.String())
	}
	c.Header("X-Page-Count", strconv.Itoa(result.PageCount))
	c.Data(http.StatusOK, "application/pdf", result.PDF)
}

func contentDisposition(disposition, filename string) string {
	if v := mime.FormatMediaType(disposition, map[string]string{"filename": filename}); v != "" {
		return v
	}
	return disposition
}
