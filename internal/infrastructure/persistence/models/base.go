package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/shared"
)

// BaseModel provides common persistence fields for all models.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" bson:"_id"`
	CreatedAt time.Time `gorm:"not null" bson:"created_at"`
	UpdatedAt time.Time `gorm:"not null" bson:"updated_at"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// ClinicModel adds the owning clinic to BaseModel.
type ClinicModel struct {
	BaseModel `bson:",inline"`
	ClinicID  uuid.UUID `gorm:"type:uuid;not null;index" bson:"clinic_id"`
}

// FromDomainClinicScoped populates ClinicModel from domain ClinicScoped
func (m *ClinicModel) FromDomainClinicScoped(c shared.ClinicScoped) {
	m.FromDomainBaseEntity(c.BaseEntity)
	m.ClinicID = c.ClinicID
}

// ToClinicScoped converts ClinicModel to domain ClinicScoped
func (m *ClinicModel) ToClinicScoped() shared.ClinicScoped {
	return shared.ClinicScoped{
		BaseEntity: m.BaseModel.ToDomain(),
		ClinicID:   m.ClinicID,
	}
}
