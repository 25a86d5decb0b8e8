package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	app "github.com/medimaging/backend/internal/application/clinic"
	"github.com/medimaging/backend/internal/infrastructure/auth"
	"github.com/medimaging/backend/internal/interfaces/http/dto"
	"github.com/medimaging/backend/internal/interfaces/http/middleware"
)

// AuthService is the account API the auth handler needs
type AuthService interface {
	Register(ctx context.Context, input app.RegisterInput) (*app.RegisterResult, error)
	Login(ctx context.Context, input app.LoginInput) (*app.LoginResult, error)
	Logout(ctx context.Context, claims *auth.Claims) error
}

// AuthHandler handles registration, login and logout
type AuthHandler struct {
	BaseHandler
	authService AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Register creates a clinic account.
//
//	POST /api/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req app.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.Response{
		Success: true,
		Message: "Account created successfully",
		Data:    result,
	})
}

// Login exchanges credentials for a bearer token.
//
//	POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req app.LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Logout revokes the token used for this request.
//
//	POST /api/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetJWTClaims(c)
	if claims == nil {
		h.Unauthorized(c, "Access token required")
		return
	}

	if err := h.authService.Logout(c.Request.Context(), claims); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Message(c, "Logged out successfully")
}
