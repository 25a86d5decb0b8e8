package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/medimaging/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validationProbe struct {
	Email      string   `json:"email" binding:"required,email"`
	ReportType string   `json:"reportType" binding:"required,report_kind"`
	Sex        string   `json:"sex" binding:"required,sex"`
	Images     []string `json:"images" binding:"required,min=1"`
}

func newValidationRouter() *gin.Engine {
	SetupValidator()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/test", func(c *gin.Context) {
		var req validationProbe
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return router
}

func postJSON(router http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSetupValidator(t *testing.T) {
	// Should not panic, even twice
	SetupValidator()
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	assert.True(t, ok)
	assert.NotNil(t, v)
}

func TestHandleValidationError(t *testing.T) {
	router := newValidationRouter()

	t.Run("valid input", func(t *testing.T) {
		w := postJSON(router, `{"email":"a@b.test","reportType":"ultrasound","sex":"female","images":["x"]}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("field details use json names", func(t *testing.T) {
		w := postJSON(router, `{"email":"invalid","reportType":"mri","sex":"unknown","images":[]}`)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Equal(t, "Request validation failed", resp.Error.Message)

		fields := map[string]string{}
		for _, d := range resp.Error.Details {
			fields[d.Field] = d.Message
		}
		assert.Equal(t, "Invalid email format", fields["email"])
		assert.Equal(t, "Must be one of: xray ultrasound", fields["reportType"])
		assert.Equal(t, "Must be one of: Male Female Other", fields["sex"])
		assert.Equal(t, "Must contain at least 1 items", fields["images"])
	})

	t.Run("malformed json", func(t *testing.T) {
		w := postJSON(router, `{"email":`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeInvalidJSON)
	})
}

func TestHandleValidationError_BodyTooLarge(t *testing.T) {
	SetupValidator()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(BodyLimit(16))
	router.POST("/test", func(c *gin.Context) {
		var req validationProbe
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	// Unknown length: the limit is enforced while reading
	req := httptest.NewRequest(http.MethodPost, "/test",
		strings.NewReader(`{"email":"`+strings.Repeat("a", 64)+`@b.test"}`))
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrCodePayloadTooLarge)
}
