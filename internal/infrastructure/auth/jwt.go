package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/infrastructure/config"
)

// Common errors
var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrExpiredToken      = errors.New("token has expired")
	ErrInvalidClaims     = errors.New("invalid token claims")
	ErrTokenNotYetValid  = errors.New("token is not yet valid")
	ErrMissingClinicID   = errors.New("missing clinic_id in claims")
	ErrMissingSigningKey = errors.New("jwt secret is not configured")
)

// Claims represents custom JWT claims
type Claims struct {
	jwt.RegisteredClaims
	ClinicID string `json:"clinic_id"`
	Email    string `json:"email"`
}

// Token is an issued bearer token.
type Token struct {
	AccessToken string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenType   string    `json:"token_type"` // Bearer
}

// JWTService handles JWT token operations
type JWTService struct {
	secret     []byte
	expiration time.Duration
	issuer     string
	now        func() time.Time
}

// NewJWTService creates a new JWT service
func NewJWTService(cfg config.JWTConfig) *JWTService {
	expiration := cfg.Expiration
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}
	return &JWTService{
		secret:     []byte(cfg.Secret),
		expiration: expiration,
		issuer:     cfg.Issuer,
		now:        time.Now,
	}
}

// GenerateToken issues an HS256 token for the clinic.
func (s *JWTService) GenerateToken(clinicID uuid.UUID, email string) (*Token, error) {
	if len(s.secret) == 0 {
		return nil, ErrMissingSigningKey
	}
	now := s.now()
	expiresAt := now.Add(s.expiration)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   clinicID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		ClinicID: clinicID.String(),
		Email:    email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}
	return &Token{AccessToken: signed, ExpiresAt: expiresAt, TokenType: "Bearer"}, nil
}

// ValidateToken validates a token and returns its claims
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.ClinicID == "" {
		return nil, ErrMissingClinicID
	}
	if _, err := uuid.Parse(claims.ClinicID); err != nil {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}

// Expiration returns the token lifetime
func (s *JWTService) Expiration() time.Duration {
	return s.expiration
}

// GetClinicUUID extracts and parses the clinic ID from claims
func (c *Claims) GetClinicUUID() (uuid.UUID, error) {
	return uuid.Parse(c.ClinicID)
}

// GetRemainingTTL returns the remaining time until the token expires
func (c *Claims) GetRemainingTTL() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return max(time.Until(c.ExpiresAt.Time), 0)
}
