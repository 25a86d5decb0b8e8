package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/shared"
	"github.com/medimaging/backend/internal/infrastructure/logger"
	"github.com/medimaging/backend/internal/interfaces/http/dto"
	"github.com/medimaging/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	return c.GetString(logger.GinRequestIDKey)
}

// clinicID returns the authenticated clinic's id, answering 401 when the
// request did not pass the JWT middleware.
func (h *BaseHandler) clinicID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.GetClinicID(c)
	if !ok {
		h.Unauthorized(c, "Access token required")
		return uuid.Nil, false
	}
	return id, true
}

// pathID parses the :id path parameter
func (h *BaseHandler) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid report ID")
		return uuid.Nil, false
	}
	return id, true
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Message sends a 200 response carrying only a message
func (h *BaseHandler) Message(c *gin.Context, message string) {
	c.JSON(http.StatusOK, dto.NewMessageResponse(message))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Unauthorized sends a 401 unauthorized response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleError converts domain errors to HTTP responses. Anything that is not
// a domain error is logged and reported as an internal error.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		statusCode := dto.GetHTTPStatus(code)
		if statusCode >= http.StatusInternalServerError {
			logger.GetGinLogger(c).Error("request failed", zap.String("code", domainErr.Code), zap.Error(err))
		}
		h.Error(c, statusCode, code, domainErr.Message)
		return
	}

	logger.GetGinLogger(c).Error("unexpected error", zap.Error(err))
	h.InternalError(c, "An unexpected error occurred")
}
