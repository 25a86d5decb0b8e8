package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	app "github.com/medimaging/backend/internal/application/report"
	"github.com/medimaging/backend/internal/interfaces/http/middleware"
)

// SettingsService is the branding API the settings handler needs
type SettingsService interface {
	Get(ctx context.Context, clinicID uuid.UUID) (*app.SettingsResponse, error)
	Update(ctx context.Context, clinicID uuid.UUID, req app.BrandingDTO) (*app.SettingsResponse, error)
}

// SettingsHandler serves the clinic's report branding
type SettingsHandler struct {
	BaseHandler
	settings SettingsService
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settings SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// Get returns the branding printed on this clinic's reports.
//
//	GET /settings
func (h *SettingsHandler) Get(c *gin.Context) {
	clinicID, ok := h.clinicID(c)
	if !ok {
		return
	}

	settings, err := h.settings.Get(c.Request.Context(), clinicID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, settings)
}

// Update replaces this clinic's branding.
//
//	POST /settings
func (h *SettingsHandler) Update(c *gin.Context) {
	clinicID, ok := h.clinicID(c)
	if !ok {
		return
	}

	var req app.BrandingDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	settings, err := h.settings.Update(c.Request.Context(), clinicID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, settings)
}
