package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/clinic"
	"github.com/medimaging/backend/internal/domain/shared"
	"github.com/medimaging/backend/internal/infrastructure/auth"
	"github.com/medimaging/backend/internal/infrastructure/logger"
	"github.com/medimaging/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// JWT context keys
const (
	JWTClaimsKey  = "jwt_claims"
	ClinicKey     = "clinic"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// Authenticator resolves a bearer token to its clinic account
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*clinic.Clinic, *auth.Claims, error)
}

// JWTMiddlewareConfig holds configuration for JWT middleware
type JWTMiddlewareConfig struct {
	// Authenticator is required for token validation
	Authenticator Authenticator
	// SkipPaths are paths that don't require authentication
	SkipPaths []string
	// Logger for middleware logging
	Logger *zap.Logger
}

// DefaultJWTConfig returns default JWT middleware configuration
func DefaultJWTConfig(authenticator Authenticator) JWTMiddlewareConfig {
	return JWTMiddlewareConfig{
		Authenticator: authenticator,
		SkipPaths: []string{
			"/health",
			"/api/register",
			"/api/login",
		},
	}
}

// JWTAuthMiddleware creates JWT authentication middleware
func JWTAuthMiddleware(authenticator Authenticator) gin.HandlerFunc {
	return JWTAuthMiddlewareWithConfig(DefaultJWTConfig(authenticator))
}

// JWTAuthMiddlewareWithConfig creates JWT authentication middleware with custom config.
// On success the claims and the reloaded clinic are stored on the gin context
// and the clinic id is attached to the request logger.
func JWTAuthMiddlewareWithConfig(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath {
				c.Next()
				return
			}
		}

		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" {
			abortUnauthorized(c, log, "Access token required")
			return
		}
		if !strings.HasPrefix(authHeader, BearerPrefix) {
			abortUnauthorized(c, log, "Invalid authorization header format")
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
		if tokenString == "" {
			abortUnauthorized(c, log, "Access token required")
			return
		}

		account, claims, err := cfg.Authenticator.Authenticate(c.Request.Context(), tokenString)
		if err != nil {
			var domainErr *shared.DomainError
			if errors.As(err, &domainErr) && domainErr.Code == shared.CodeUnauthorized {
				abortUnauthorized(c, log, domainErr.Message)
				return
			}
			log.Error("authentication lookup failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeInternal, "An internal error occurred", c.GetString(logger.GinRequestIDKey)))
			return
		}

		clinicID := account.ID.String()
		c.Set(JWTClaimsKey, claims)
		c.Set(ClinicKey, account)
		c.Set(logger.GinClinicIDKey, clinicID)

		ctx := logger.WithClinicID(c.Request.Context(), clinicID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, log *zap.Logger, message string) {
	log.Warn("JWT authentication failed",
		zap.String("message", message),
		zap.String("path", c.Request.URL.Path),
	)
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeUnauthorized, message, c.GetString(logger.GinRequestIDKey)))
}

// GetJWTClaims retrieves JWT claims from gin.Context
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if claims, exists := c.Get(JWTClaimsKey); exists {
		if jwtClaims, ok := claims.(*auth.Claims); ok {
			return jwtClaims
		}
	}
	return nil
}

// GetClinic retrieves the authenticated clinic from gin.Context
func GetClinic(c *gin.Context) *clinic.Clinic {
	if v, exists := c.Get(ClinicKey); exists {
		if account, ok := v.(*clinic.Clinic); ok {
			return account
		}
	}
	return nil
}

// GetClinicID returns the authenticated clinic's id
func GetClinicID(c *gin.Context) (uuid.UUID, bool) {
	account := GetClinic(c)
	if account == nil {
		return uuid.Nil, false
	}
	return account.ID, true
}
