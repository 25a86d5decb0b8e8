package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	app "github.com/medimaging/backend/internal/application/report"
	"github.com/medimaging/backend/internal/domain/clinic"
	"github.com/medimaging/backend/internal/domain/shared"
	"github.com/medimaging/backend/internal/interfaces/http/dto"
	"github.com/medimaging/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockReportService is a mock implementation of ReportService
type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) GeneratePDF(ctx context.Context, clinicID uuid.UUID, req app.ReportRequest) (*app.PDFResult, error) {
	args := m.Called(ctx, clinicID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.PDFResult), args.Error(1)
}

func (m *MockReportService) SaveReport(ctx context.Context, clinicID uuid.UUID, req app.ReportRequest) (*app.SaveResult, error) {
	args := m.Called(ctx, clinicID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.SaveResult), args.Error(1)
}

func (m *MockReportService) ListReports(ctx context.Context, clinicID uuid.UUID) ([]app.ReportListItem, error) {
	args := m.Called(ctx, clinicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]app.ReportListItem), args.Error(1)
}

func (m *MockReportService) GenerateFromSaved(ctx context.Context, clinicID, reportID uuid.UUID) (*app.PDFResult, error) {
	args := m.Called(ctx, clinicID, reportID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.PDFResult), args.Error(1)
}

func (m *MockReportService) DeleteReport(ctx context.Context, clinicID, reportID uuid.UUID) error {
	return m.Called(ctx, clinicID, reportID).Error(0)
}

func (m *MockReportService) GetArtifact(ctx context.Context, clinicID uuid.UUID, filename string) (*app.Artifact, error) {
	args := m.Called(ctx, clinicID, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.Artifact), args.Error(1)
}

const pixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

var testPDF = []byte("%PDF-1.4\n%%EOF")

func testClinic(t *testing.T) *clinic.Clinic {
	t.Helper()
	account, err := clinic.NewClinic(clinic.Registration{
		Email:      "desk@lakeside.test",
		Password:   "secret123",
		ClinicName: "Lakeside Radiology",
		DoctorName: "Dr. Okafor",
	})
	require.NoError(t, err)
	return account
}

// authenticated stands in for the JWT middleware
func authenticated(account *clinic.Clinic) gin.HandlerFunc {
	return func(c *gin.Context) {
		if account != nil {
			c.Set(middleware.ClinicKey, account)
		}
		c.Next()
	}
}

func setupReportRouter(svc ReportService, account *clinic.Clinic) *gin.Engine {
	middleware.SetupValidator()
	h := NewReportHandler(svc)
	router := gin.New()
	router.Use(authenticated(account))
	router.POST("/generate-pdf", h.GeneratePDF)
	router.POST("/save-report", h.SaveReport)
	router.GET("/reports", h.ListReports)
	router.POST("/generate-from-saved/:id", h.GenerateFromSaved)
	router.DELETE("/reports/:id", h.DeleteReport)
	router.DELETE("/delete-report/:id", h.DeleteReport)
	router.GET("/reports/:filename", h.DownloadPDF)
	return router
}

func doRequest(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const validReportBody = `{
	"patientData": {"name": "Jane Doe", "uhid": "UH-001", "age": 34, "sex": "Female", "referredBy": "Dr. Smith"},
	"images": [{"name": "a.png", "data": "` + pixelPNG + `"}],
	"imagesPerPage": 2,
	"imageSize": 100,
	"reportType": "xray"
}`

func TestReportHandler_GeneratePDF(t *testing.T) {
	account := testClinic(t)

	t.Run("attachment for persisted report", func(t *testing.T) {
		svc := new(MockReportService)
		reportID := uuid.New()
		svc.On("GeneratePDF", mock.Anything, account.ID, mock.MatchedBy(func(r app.ReportRequest) bool {
			return r.PatientData.UHID == "UH-001" && len(r.Images) == 1 && r.ReportType == "xray"
		})).Return(&app.PDFResult{
			ReportID:     reportID,
			Filename:     "Jane_Doe_UH-001_xray_2026-10-19T09-30-00.pdf",
			DownloadName: "Jane_Doe_UH-001_xray_report.pdf",
			PDF:          testPDF,
			PageCount:    1,
		}, nil)

		w := doRequest(setupReportRouter(svc, account), http.MethodPost, "/generate-pdf", validReportBody)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename=Jane_Doe_UH-001_xray_report.pdf`, w.Header().Get("Content-Disposition"))
		assert.Equal(t, reportID.String(), w.Header().Get("X-Report-ID"))
		assert.Equal(t, "1", w.Header().Get("X-Page-Count"))
		assert.Equal(t, testPDF, w.Body.Bytes())
		svc.AssertExpectations(t)
	})

	t.Run("inline preview", func(t *testing.T) {
		svc := new(MockReportService)
		svc.On("GeneratePDF", mock.Anything, account.ID, mock.Anything).Return(&app.PDFResult{
			DownloadName: "Jane_Doe_UH-001_xray_preview.pdf",
			Inline:       true,
			PDF:          testPDF,
			PageCount:    1,
		}, nil)

		w := doRequest(setupReportRouter(svc, account), http.MethodPost, "/generate-pdf", validReportBody)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `inline; filename=Jane_Doe_UH-001_xray_preview.pdf`, w.Header().Get("Content-Disposition"))
		assert.Empty(t, w.Header().Get("X-Report-ID"))
	})

	t.Run("invalid body", func(t *testing.T) {
		svc := new(MockReportService)
		body := strings.Replace(validReportBody, `"xray"`, `"mri"`, 1)

		w := doRequest(setupReportRouter(svc, account), http.MethodPost, "/generate-pdf", body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		require.NotEmpty(t, resp.Error.Details)
		assert.Equal(t, "reportType", resp.Error.Details[0].Field)
		svc.AssertNotCalled(t, "GeneratePDF", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("render timeout", func(t *testing.T) {
		svc := new(MockReportService)
		svc.On("GeneratePDF", mock.Anything, account.ID, mock.Anything).
			Return(nil, shared.NewRenderError(shared.CodeRenderTimeout, "PDF rendering timed out", nil))

		w := doRequest(setupReportRouter(svc, account), http.MethodPost, "/generate-pdf", validReportBody)

		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
		assert.Equal(t, dto.ErrCodeRenderTimeout, decodeResponse(t, w).Error.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		svc := new(MockReportService)

		w := doRequest(setupReportRouter(svc, nil), http.MethodPost, "/generate-pdf", validReportBody)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestReportHandler_SaveAndList(t *testing.T) {
	account := testClinic(t)
	svc := new(MockReportService)
	reportID := uuid.New()
	svc.On("SaveReport", mock.Anything, account.ID, mock.Anything).Return(&app.SaveResult{ReportID: reportID}, nil)
	svc.On("ListReports", mock.Anything, account.ID).Return([]app.ReportListItem{
		{ID: reportID, PatientName: "Jane Doe", UHID: "UH-001", ReportType: "xray", ImagesCount: 1, Status: "draft"},
	}, nil)
	router := setupReportRouter(svc, account)

	w := doRequest(router, http.MethodPost, "/save-report", validReportBody)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, reportID.String(), decodeResponse(t, w).Data.(map[string]any)["reportId"])

	w = doRequest(router, http.MethodGet, "/reports", "")
	require.Equal(t, http.StatusOK, w.Code)
	rows := decodeResponse(t, w).Data.([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "Jane Doe", rows[0].(map[string]any)["patientName"])
}

func TestReportHandler_ListEmpty(t *testing.T) {
	account := testClinic(t)
	svc := new(MockReportService)
	svc.On("ListReports", mock.Anything, account.ID).Return(nil, nil)

	w := doRequest(setupReportRouter(svc, account), http.MethodGet, "/reports", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":[]}`, w.Body.String())
}

func TestReportHandler_GenerateFromSaved(t *testing.T) {
	account := testClinic(t)

	t.Run("renders", func(t *testing.T) {
		svc := new(MockReportService)
		reportID := uuid.New()
		svc.On("GenerateFromSaved", mock.Anything, account.ID, reportID).Return(&app.PDFResult{
			ReportID: reportID, DownloadName: "Jane_Doe_UH-001_xray_report.pdf", PDF: testPDF, PageCount: 1,
		}, nil)

		w := doRequest(setupReportRouter(svc, account), http.MethodPost, "/generate-from-saved/"+reportID.String(), "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, testPDF, w.Body.Bytes())
	})

	t.Run("bad id", func(t *testing.T) {
		svc := new(MockReportService)

		w := doRequest(setupReportRouter(svc, account), http.MethodPost, "/generate-from-saved/not-a-uuid", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("busy", func(t *testing.T) {
		svc := new(MockReportService)
		reportID := uuid.New()
		svc.On("GenerateFromSaved", mock.Anything, account.ID, reportID).
			Return(nil, shared.NewDomainError(shared.CodeConflict, "report is already being generated"))

		w := doRequest(setupReportRouter(svc, account), http.MethodPost, "/generate-from-saved/"+reportID.String(), "")

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestReportHandler_Delete(t *testing.T) {
	account := testClinic(t)

	for _, path := range []string{"/reports/", "/delete-report/"} {
		t.Run(path, func(t *testing.T) {
			svc := new(MockReportService)
			reportID := uuid.New()
			svc.On("DeleteReport", mock.Anything, account.ID, reportID).Return(nil)

			w := doRequest(setupReportRouter(svc, account), http.MethodDelete, path+reportID.String(), "")

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "Report deleted successfully", decodeResponse(t, w).Message)
			svc.AssertExpectations(t)
		})
	}

	t.Run("other clinic's report", func(t *testing.T) {
		svc := new(MockReportService)
		reportID := uuid.New()
		svc.On("DeleteReport", mock.Anything, account.ID, reportID).Return(shared.NewNotFoundError("report"))

		w := doRequest(setupReportRouter(svc, account), http.MethodDelete, "/reports/"+reportID.String(), "")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestReportHandler_DownloadPDF(t *testing.T) {
	account := testClinic(t)
	name := "Jane_Doe_UH-001_xray_2026-10-19T09-30-00.pdf"

	t.Run("streams file", func(t *testing.T) {
		svc := new(MockReportService)
		svc.On("GetArtifact", mock.Anything, account.ID, name).Return(&app.Artifact{
			Filename: name,
			Content:  io.NopCloser(strings.NewReader(string(testPDF))),
		}, nil)

		w := doRequest(setupReportRouter(svc, account), http.MethodGet, "/reports/"+name, "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.Equal(t, "inline; filename="+name, w.Header().Get("Content-Disposition"))
		assert.Equal(t, testPDF, w.Body.Bytes())
	})

	t.Run("unknown file", func(t *testing.T) {
		svc := new(MockReportService)
		svc.On("GetArtifact", mock.Anything, account.ID, "missing.pdf").Return(nil, shared.NewNotFoundError("report file"))

		w := doRequest(setupReportRouter(svc, account), http.MethodGet, "/reports/missing.pdf", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
