// Package clinic implements clinic account registration and authentication.
package clinic

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/medimaging/backend/internal/domain/clinic"
	"github.com/medimaging/backend/internal/domain/shared"
	"github.com/medimaging/backend/internal/infrastructure/auth"
	"go.uber.org/zap"
)

const msgInvalidCredentials = "invalid email or password"

// AuthService handles authentication operations
type AuthService struct {
	clinics    clinic.Repository
	jwtService *auth.JWTService
	blacklist  auth.TokenBlacklist
	now        func() time.Time
	logger     *zap.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	clinics clinic.Repository,
	jwtService *auth.JWTService,
	blacklist auth.TokenBlacklist,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if blacklist == nil {
		blacklist = auth.NewInMemoryTokenBlacklist()
	}
	return &AuthService{
		clinics:    clinics,
		jwtService: jwtService,
		blacklist:  blacklist,
		now:        time.Now,
		logger:     logger,
	}
}

// Register creates a clinic account. A taken email is ALREADY_EXISTS.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	exists, err := s.clinics.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError(shared.CodeAlreadyExists, "email already registered")
	}

	c, err := clinic.NewClinic(clinic.Registration{
		Email:      email,
		Password:   input.Password,
		ClinicName: input.ClinicName,
		DoctorName: input.DoctorName,
		Address:    input.Address,
		Phone:      input.Phone,
	})
	if err != nil {
		return nil, err
	}

	if err := s.clinics.Create(ctx, c); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return nil, shared.NewDomainError(shared.CodeAlreadyExists, "email already registered")
		}
		return nil, err
	}

	s.logger.Info("clinic registered",
		zap.String("clinic_id", c.ID.String()),
		zap.String("clinic_name", c.ClinicName))
	return &RegisterResult{ClinicID: c.ID, Email: c.Email}, nil
}

// Login checks credentials and issues a bearer token
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	c, err := s.clinics.FindByEmail(ctx, email)
	if err != nil {
		if shared.IsNotFound(err) {
			s.logger.Warn("login for unknown email")
			return nil, shared.NewAuthError(msgInvalidCredentials)
		}
		return nil, err
	}

	if !c.VerifyPassword(input.Password) {
		s.logger.Warn("invalid password attempt", zap.String("clinic_id", c.ID.String()))
		return nil, shared.NewAuthError(msgInvalidCredentials)
	}

	if !c.IsActive() {
		s.logger.Warn("login attempt for deactivated account", zap.String("clinic_id", c.ID.String()))
		return nil, shared.NewAuthError("account deactivated")
	}

	token, err := s.jwtService.GenerateToken(c.ID, c.Email)
	if err != nil {
		s.logger.Error("failed to generate token", zap.Error(err))
		return nil, err
	}

	c.RecordLogin(s.now())
	if err := s.clinics.Update(ctx, c); err != nil {
		// Don't fail the login - just log the error
		s.logger.Error("failed to record login", zap.String("clinic_id", c.ID.String()), zap.Error(err))
	}

	s.logger.Info("clinic logged in", zap.String("clinic_id", c.ID.String()))
	return &LoginResult{
		Token:     token.AccessToken,
		TokenType: token.TokenType,
		ExpiresAt: token.ExpiresAt,
		User:      toClinicInfo(c),
	}, nil
}

// Logout revokes the presented token until it would have expired anyway
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.ID == "" {
		return shared.NewAuthError("token has no id")
	}
	if err := s.blacklist.AddToBlacklist(ctx, claims.ID, claims.GetRemainingTTL()); err != nil {
		return err
	}
	s.logger.Info("clinic logged out", zap.String("clinic_id", claims.ClinicID))
	return nil
}

// Authenticate validates a bearer token and reloads its clinic. Revoked
// tokens, missing accounts and deactivated accounts are rejected.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*clinic.Clinic, *auth.Claims, error) {
	claims, err := s.jwtService.ValidateToken(token)
	if err != nil {
		return nil, nil, shared.NewAuthError(tokenErrorMessage(err))
	}

	blacklisted, err := s.blacklist.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		// fail open for availability
		s.logger.Error("failed to check token blacklist", zap.String("jti", claims.ID), zap.Error(err))
	} else if blacklisted {
		return nil, nil, shared.NewAuthError("token has been revoked")
	}

	clinicID, err := claims.GetClinicUUID()
	if err != nil {
		return nil, nil, shared.NewAuthError("invalid token")
	}
	c, err := s.clinics.FindByID(ctx, clinicID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, nil, shared.NewAuthError("clinic not found")
		}
		return nil, nil, err
	}
	if !c.IsActive() {
		return nil, nil, shared.NewAuthError("account deactivated")
	}
	return c, claims, nil
}

func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "token has expired"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		return "token is not yet valid"
	default:
		return "invalid token"
	}
}
