package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	clinicapp "github.com/medimaging/backend/internal/application/clinic"
	reportapp "github.com/medimaging/backend/internal/application/report"
	"github.com/medimaging/backend/internal/infrastructure/auth"
	"github.com/medimaging/backend/internal/infrastructure/cache"
	"github.com/medimaging/backend/internal/infrastructure/config"
	"github.com/medimaging/backend/internal/infrastructure/persistence"
	"github.com/medimaging/backend/internal/infrastructure/printing"
	"github.com/medimaging/backend/internal/infrastructure/storage"
	"github.com/medimaging/backend/internal/interfaces/http/handler"
	"github.com/medimaging/backend/internal/interfaces/http/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const onePixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

var stubPDF = []byte("%PDF-1.4\n1 0 obj << /Type /Page >>\n%%EOF")

// countingRenderer stands in for headless Chrome
type countingRenderer struct{ calls atomic.Int32 }

func (r *countingRenderer) Render(context.Context, *printing.RenderRequest) (*printing.RenderResult, error) {
	r.calls.Add(1)
	return &printing.RenderResult{PDFData: stubPDF, PageCount: 1, Attempts: 1}, nil
}

type apiEnv struct {
	t        *testing.T
	engine   *gin.Engine
	renderer *countingRenderer
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := NewTestDB(t)
	store := db.Store()

	blacklist := auth.NewInMemoryTokenBlacklist()
	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:     "integration-secret-at-least-32-bytes!",
		Expiration: time.Hour,
		Issuer:     "clinic-reports-test",
	})
	authService := clinicapp.NewAuthService(persistence.NewClinicStore(store), jwtService, blacklist, nil)
	settingsRepo := persistence.NewSettingsStore(store)

	renderer := &countingRenderer{}
	reports := reportapp.NewService(reportapp.Dependencies{
		Reports:   persistence.NewReportStore(store),
		Patients:  persistence.NewPatientStore(store),
		Settings:  settingsRepo,
		Renderer:  renderer,
		Artifacts: storage.NewMemoryArtifactStore(),
		Locker:    cache.NewInMemoryReportLocker(),
	}, reportapp.DefaultConfig(), nil)

	engine, stop := router.NewEngine(router.EngineConfig{
		HTTP:          config.HTTPConfig{MaxBodySize: 10 << 20},
		Authenticator: authService,
		Handlers: router.Handlers{
			Auth:     handler.NewAuthHandler(authService),
			Settings: handler.NewSettingsHandler(reportapp.NewSettingsService(settingsRepo, nil)),
			Reports:  handler.NewReportHandler(reports),
			System:   handler.NewSystemHandler(db, "test"),
		},
	})
	t.Cleanup(stop)

	return &apiEnv{t: t, engine: engine, renderer: renderer}
}

func (e *apiEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

// signUp registers a clinic and returns a bearer token for it
func (e *apiEnv) signUp(email string) string {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/register", "", map[string]any{
		"email":         email,
		"password":      "correct-horse-battery",
		"clinicName":    "Sunrise Imaging",
		"doctorName":    "Dr. Rao",
		"clinicAddress": "12 MG Road",
		"clinicPhone":   "+91 80 1234 5678",
	})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(http.MethodPost, "/api/login", "", map[string]any{
		"email":    email,
		"password": "correct-horse-battery",
	})
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(e.t, resp.Data.Token)
	return resp.Data.Token
}

func reportBody(name string, preview bool) map[string]any {
	return map[string]any{
		"patientData": map[string]any{
			"name": name, "uhid": "UH-" + name, "age": 41, "sex": "Female", "referredBy": "Dr. Iyer",
		},
		"images": []map[string]any{
			{"name": "scan-1.png", "data": onePixelPNG},
			{"name": "scan-2.png", "data": "data:image/png;base64," + onePixelPNG},
		},
		"imagesPerPage": 2,
		"imageSize":     80,
		"reportType":    "ultrasound",
		"previewOnly":   preview,
	}
}

type listResponse struct {
	Success bool                       `json:"success"`
	Data    []reportapp.ReportListItem `json:"data"`
}

func (e *apiEnv) list(token string) []reportapp.ReportListItem {
	e.t.Helper()
	w := e.do(http.MethodGet, "/reports", token, nil)
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	var resp listResponse
	require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data
}

func TestAPI_ReportLifecycle(t *testing.T) {
	env := newAPIEnv(t)
	token := env.signUp("frontdesk@sunrise.example")

	w := env.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Preview renders but stores nothing
	w = env.do(http.MethodPost, "/generate-pdf", token, reportBody("Preview", true))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Empty(t, w.Header().Get("X-Report-ID"))
	assert.Empty(t, env.list(token))

	// Save without rendering
	w = env.do(http.MethodPost, "/save-report", token, reportBody("Asha", false))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var saved struct {
		Data reportapp.SaveResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	reportID := saved.Data.ReportID.String()

	items := env.list(token)
	require.Len(t, items, 1)
	assert.Equal(t, "Asha", items[0].PatientName)
	assert.Equal(t, 2, items[0].ImagesCount)
	assert.Equal(t, "report-"+reportID+".pdf", items[0].Filename)
	assert.Nil(t, items[0].GeneratedAt)

	// Render the saved report
	w = env.do(http.MethodPost, "/generate-from-saved/"+reportID, token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, reportID, w.Header().Get("X-Report-ID"))
	assert.Equal(t, "1", w.Header().Get("X-Page-Count"))
	assert.Equal(t, stubPDF, w.Body.Bytes())

	items = env.list(token)
	require.Len(t, items, 1)
	filename := items[0].Filename
	require.NotEmpty(t, filename)

	// Download the stored artifact
	w = env.do(http.MethodGet, "/reports/"+filename, token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, stubPDF, w.Body.Bytes())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "inline")

	// Delete removes the row and the artifact
	w = env.do(http.MethodDelete, "/reports/"+reportID, token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, env.list(token))

	w = env.do(http.MethodGet, "/reports/"+filename, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodDelete, "/delete-report/"+reportID, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, int32(2), env.renderer.calls.Load())
}

func TestAPI_ClinicIsolation(t *testing.T) {
	env := newAPIEnv(t)
	owner := env.signUp("owner@clinic-a.example")
	other := env.signUp("owner@clinic-b.example")

	w := env.do(http.MethodPost, "/generate-pdf", owner, reportBody("Ravi", false))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reportID := w.Header().Get("X-Report-ID")
	require.NotEmpty(t, reportID)

	items := env.list(owner)
	require.Len(t, items, 1)
	filename := items[0].Filename

	assert.Empty(t, env.list(other))

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/generate-from-saved/" + reportID},
		{http.MethodGet, "/reports/" + filename},
		{http.MethodDelete, "/reports/" + reportID},
	} {
		w := env.do(tc.method, tc.path, other, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, "%s %s", tc.method, tc.path)
	}

	assert.Len(t, env.list(owner), 1, "the owner's report survives")
}

func TestAPI_SettingsAndLogout(t *testing.T) {
	env := newAPIEnv(t)
	token := env.signUp("admin@lakeside.example")

	w := env.do(http.MethodPost, "/settings", token, map[string]any{
		"name":    "Lakeside Diagnostics",
		"address": "4 Lake View",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodGet, "/settings", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var settings struct {
		Data reportapp.SettingsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &settings))
	assert.Equal(t, "Lakeside Diagnostics", settings.Data.Name)
	assert.Equal(t, "4 Lake View", settings.Data.Address)

	w = env.do(http.MethodPost, "/api/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodGet, "/settings", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "a logged out token is revoked")
}

func TestAPI_RejectsInvalidReports(t *testing.T) {
	env := newAPIEnv(t)
	token := env.signUp("qa@clinic.example")

	body := reportBody("Bad", false)
	body["reportType"] = "mri"
	w := env.do(http.MethodPost, "/save-report", token, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body = reportBody("Bad", false)
	body["images"] = []map[string]any{}
	w = env.do(http.MethodPost, "/generate-pdf", token, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/generate-from-saved/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Zero(t, env.renderer.calls.Load())
	assert.Empty(t, env.list(token))
}
