// Package clinic contains the clinic account aggregate. A clinic is the tenant
// root: every patient, report and image is owned by exactly one clinic.
package clinic

import (
	"regexp"
	"strings"
	"time"

	"github.com/medimaging/backend/internal/domain/shared"
	"golang.org/x/crypto/bcrypt"
)

// Status represents the status of a clinic account
type Status string

const (
	StatusActive      Status = "active"
	StatusDeactivated Status = "deactivated"
)

// Role of the account holder.
type Role string

const (
	RoleDoctor Role = "doctor"
	RoleAdmin  Role = "admin"
)

// Password cost for bcrypt
const bcryptCost = 12

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	hasLetterExpr = regexp.MustCompile(`[a-zA-Z]`)
	hasNumberExpr = regexp.MustCompile(`[0-9]`)
)

// Clinic is a registered account.
type Clinic struct {
	shared.BaseEntity
	Email        string
	PasswordHash string
	ClinicName   string
	DoctorName   string
	Address      string
	Phone        string
	Role         Role
	Status       Status
	LastLoginAt  *time.Time
}

// Registration carries the fields accepted on sign-up.
type Registration struct {
	Email      string
	Password   string
	ClinicName string
	DoctorName string
	Address    string
	Phone      string
}

// NewClinic validates a registration and creates an active account.
func NewClinic(r Registration) (*Clinic, error) {
	email := strings.ToLower(strings.TrimSpace(r.Email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(r.Password); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(r.ClinicName)
	if name == "" {
		return nil, shared.NewValidationError("clinic name is required")
	}
	if len(name) > 255 {
		return nil, shared.NewValidationError("clinic name cannot exceed 255 characters")
	}
	doctor := strings.TrimSpace(r.DoctorName)
	if doctor == "" {
		return nil, shared.NewValidationError("doctor name is required")
	}
	if len(r.Phone) > 50 {
		return nil, shared.NewValidationError("phone cannot exceed 50 characters")
	}

	hash, err := hashPassword(r.Password)
	if err != nil {
		return nil, shared.NewDomainError("PASSWORD_HASH_ERROR", "Failed to hash password")
	}

	return &Clinic{
		BaseEntity:   shared.NewBaseEntity(),
		Email:        email,
		PasswordHash: hash,
		ClinicName:   name,
		DoctorName:   doctor,
		Address:      r.Address,
		Phone:        strings.TrimSpace(r.Phone),
		Role:         RoleDoctor,
		Status:       StatusActive,
	}, nil
}

// VerifyPassword verifies if the provided password matches
func (c *Clinic) VerifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) == nil
}

// IsActive returns true if the account may use the API.
func (c *Clinic) IsActive() bool {
	return c.Status == StatusActive
}

// RecordLogin stamps the last successful login.
func (c *Clinic) RecordLogin(at time.Time) {
	c.LastLoginAt = &at
	c.UpdatedAt = at
}

// Deactivate disables the account. Existing tokens stop working on the next request.
func (c *Clinic) Deactivate() error {
	if c.Status == StatusDeactivated {
		return shared.NewDomainError("ALREADY_DEACTIVATED", "Clinic is already deactivated")
	}
	c.Status = StatusDeactivated
	c.Touch()
	return nil
}

// Activate re-enables a deactivated account.
func (c *Clinic) Activate() error {
	if c.Status == StatusActive {
		return shared.NewDomainError("ALREADY_ACTIVE", "Clinic is already active")
	}
	c.Status = StatusActive
	c.Touch()
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return shared.NewValidationError("password must be at least 8 characters")
	}
	if len(password) > 72 {
		return shared.NewValidationError("password cannot exceed 72 characters")
	}
	if !hasLetterExpr.MatchString(password) || !hasNumberExpr.MatchString(password) {
		return shared.NewValidationError("password must contain at least one letter and one number")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return shared.NewValidationError("email is required")
	}
	if len(email) > 255 {
		return shared.NewValidationError("email cannot exceed 255 characters")
	}
	if !emailRegex.MatchString(email) {
		return shared.NewValidationError("invalid email format")
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
