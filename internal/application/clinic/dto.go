package clinic

import (
	"time"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/clinic"
)

// RegisterInput contains the sign-up fields
type RegisterInput struct {
	Email      string `json:"email" binding:"required,email,max=255"`
	Password   string `json:"password" binding:"required,min=8,max=72"`
	ClinicName string `json:"clinicName" binding:"required,max=255"`
	DoctorName string `json:"doctorName" binding:"required,max=255"`
	Address    string `json:"clinicAddress" binding:"max=2000"`
	Phone      string `json:"clinicPhone" binding:"max=50"`
}

// RegisterResult is returned after a successful sign-up
type RegisterResult struct {
	ClinicID uuid.UUID `json:"userId"`
	Email    string    `json:"email"`
}

// LoginInput contains login credentials
type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ClinicInfo is the public view of an account
type ClinicInfo struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	ClinicName  string     `json:"clinicName"`
	DoctorName  string     `json:"doctorName"`
	Role        string     `json:"role"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// LoginResult contains the issued token and the account
type LoginResult struct {
	Token     string     `json:"token"`
	TokenType string     `json:"tokenType"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      ClinicInfo `json:"user"`
}

func toClinicInfo(c *clinic.Clinic) ClinicInfo {
	return ClinicInfo{
		ID:          c.ID,
		Email:       c.Email,
		ClinicName:  c.ClinicName,
		DoctorName:  c.DoctorName,
		Role:        string(c.Role),
		LastLoginAt: c.LastLoginAt,
	}
}
