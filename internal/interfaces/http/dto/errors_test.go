package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/medimaging/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeUnknown, http.StatusInternalServerError},
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeStore, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeAlreadyExists, http.StatusConflict},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeRenderFailed, http.StatusBadGateway},
		{ErrCodeRenderTimeout, http.StatusGatewayTimeout},
		{ErrCodePayloadTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		// Unknown code should return 500
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{shared.CodeValidation, ErrCodeValidation},
		{shared.CodeUnauthorized, ErrCodeUnauthorized},
		{shared.CodeNotFound, ErrCodeNotFound},
		{shared.CodeAlreadyExists, ErrCodeAlreadyExists},
		{shared.CodeConflict, ErrCodeConflict},
		{shared.CodeRenderFailed, ErrCodeRenderFailed},
		{shared.CodeRenderTimeout, ErrCodeRenderTimeout},
		{shared.CodeStore, ErrCodeStore},
		// Already normalized and unknown codes pass through
		{ErrCodeNotFound, ErrCodeNotFound},
		{"SOMETHING_ELSE", "SOMETHING_ELSE"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeErrorCode(tt.input))
		})
	}
}

func TestErrorResponseJSON(t *testing.T) {
	resp := NewValidationErrorResponse("Request validation failed", "req-1", []ValidationDetail{
		{Field: "reportType", Message: "must be xray or ultrasound"},
	})

	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, false, decoded["success"])
	errObj := decoded["error"].(map[string]any)
	assert.Equal(t, ErrCodeValidation, errObj["code"])
	assert.Equal(t, "req-1", errObj["request_id"])
	assert.Len(t, errObj["details"], 1)
	assert.NotContains(t, decoded, "data")
}
