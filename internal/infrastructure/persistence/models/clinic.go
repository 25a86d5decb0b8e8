package models

import (
	"time"

	"github.com/medimaging/backend/internal/domain/clinic"
)

// ClinicAccountModel is the persistence record for clinics
type ClinicAccountModel struct {
	BaseModel    `bson:",inline"`
	Email        string     `gorm:"type:varchar(255);not null;uniqueIndex" bson:"email"`
	PasswordHash string     `gorm:"column:password_hash;type:varchar(255);not null" bson:"password_hash"`
	ClinicName   string     `gorm:"column:clinic_name;type:varchar(255);not null" bson:"clinic_name"`
	DoctorName   string     `gorm:"column:doctor_name;type:varchar(255);not null" bson:"doctor_name"`
	Address      string     `gorm:"type:text" bson:"address"`
	Phone        string     `gorm:"type:varchar(50)" bson:"phone"`
	Role         string     `gorm:"type:varchar(20);not null;default:'doctor'" bson:"role"`
	Status       string     `gorm:"type:varchar(20);not null;default:'active'" bson:"status"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at" bson:"last_login_at,omitempty"`
}

// TableName returns the table name for ClinicAccountModel
func (ClinicAccountModel) TableName() string {
	return "clinics"
}

// ToDomain converts the record to a domain Clinic
func (m *ClinicAccountModel) ToDomain() *clinic.Clinic {
	return &clinic.Clinic{
		BaseEntity:   m.BaseModel.ToDomain(),
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		ClinicName:   m.ClinicName,
		DoctorName:   m.DoctorName,
		Address:      m.Address,
		Phone:        m.Phone,
		Role:         clinic.Role(m.Role),
		Status:       clinic.Status(m.Status),
		LastLoginAt:  m.LastLoginAt,
	}
}

// ClinicAccountModelFromDomain converts a domain Clinic to its record
func ClinicAccountModelFromDomain(c *clinic.Clinic) *ClinicAccountModel {
	m := &ClinicAccountModel{
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		ClinicName:   c.ClinicName,
		DoctorName:   c.DoctorName,
		Address:      c.Address,
		Phone:        c.Phone,
		Role:         string(c.Role),
		Status:       string(c.Status),
		LastLoginAt:  c.LastLoginAt,
	}
	m.FromDomainBaseEntity(c.BaseEntity)
	return m
}
