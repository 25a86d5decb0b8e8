package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/report"
	"github.com/medimaging/backend/internal/domain/shared"
)

// PatientModel is the persistence record for patients
type PatientModel struct {
	BaseModel  `bson:",inline"`
	ClinicID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_patients_clinic_external" bson:"clinic_id"`
	ExternalID string    `gorm:"column:external_id;type:varchar(100);not null;uniqueIndex:idx_patients_clinic_external" bson:"external_id"`
	Name       string    `gorm:"type:varchar(255);not null" bson:"name"`
	Age        int       `gorm:"not null" bson:"age"`
	Sex        string    `gorm:"type:varchar(10);not null" bson:"sex"`
	ReferredBy string    `gorm:"column:referred_by;type:varchar(255)" bson:"referred_by"`
}

// TableName returns the table name for PatientModel
func (PatientModel) TableName() string {
	return "patients"
}

// ToDomain converts the record to a domain Patient
func (m *PatientModel) ToDomain() *report.Patient {
	return &report.Patient{
		ClinicScoped: shared.ClinicScoped{BaseEntity: m.BaseModel.ToDomain(), ClinicID: m.ClinicID},
		Name:         m.Name,
		ExternalID:   m.ExternalID,
		Age:          m.Age,
		Sex:          report.Sex(m.Sex),
		ReferredBy:   m.ReferredBy,
	}
}

// PatientModelFromDomain converts a domain Patient to its record
func PatientModelFromDomain(p *report.Patient) *PatientModel {
	m := &PatientModel{
		ExternalID: p.ExternalID,
		Name:       p.Name,
		Age:        p.Age,
		Sex:        string(p.Sex),
		ReferredBy: p.ReferredBy,
		ClinicID:   p.ClinicID,
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	return m
}

// ReportData is the JSON document kept in reports.report_data. It holds
// everything needed to re-render the report without the live patient row.
type ReportData struct {
	Patient  report.PatientSnapshot `json:"patient"`
	Layout   report.LayoutOptions   `json:"layout"`
	Branding report.ClinicBranding  `json:"clinicSettings"`
}

// ReportModel is the persistence record for reports
type ReportModel struct {
	ClinicModel `bson:",inline"`
	PatientID   uuid.UUID  `gorm:"column:patient_id;type:uuid;index" bson:"patient_id"`
	ReportKind  string     `gorm:"column:report_kind;type:varchar(20);not null" bson:"report_kind"`
	Status      string     `gorm:"type:varchar(20);not null;default:'saved'" bson:"status"`
	Filename    string     `gorm:"type:varchar(512);index" bson:"filename"`
	ImagesCount int        `gorm:"column:images_count;not null;default:0" bson:"images_count"`
	ReportData  string     `gorm:"column:report_data;type:text;not null" bson:"report_data"`
	GeneratedAt *time.Time `gorm:"column:generated_at" bson:"generated_at,omitempty"`
}

// TableName returns the table name for ReportModel
func (ReportModel) TableName() string {
	return "reports"
}

// ToDomain converts the record to a domain Report without images.
func (m *ReportModel) ToDomain() (*report.Report, error) {
	var data ReportData
	if err := json.Unmarshal([]byte(m.ReportData), &data); err != nil {
		return nil, err
	}
	return &report.Report{
		ClinicScoped: m.ToClinicScoped(),
		PatientID:    m.PatientID,
		Patient:      data.Patient,
		Layout:       data.Layout,
		Branding:     data.Branding,
		ImagesCount:  m.ImagesCount,
		Status:       report.Status(m.Status),
		Filename:     m.Filename,
		GeneratedAt:  m.GeneratedAt,
	}, nil
}

// ReportModelFromDomain converts a domain Report to its record
func ReportModelFromDomain(r *report.Report) (*ReportModel, error) {
	data, err := json.Marshal(ReportData{
		Patient:  r.Patient,
		Layout:   r.Layout,
		Branding: r.Branding,
	})
	if err != nil {
		return nil, err
	}
	m := &ReportModel{
		PatientID:   r.PatientID,
		ReportKind:  string(r.Layout.Kind),
		Status:      string(r.Status),
		Filename:    r.Filename,
		ImagesCount: r.ImagesCount,
		ReportData:  string(data),
		GeneratedAt: r.GeneratedAt,
	}
	m.FromDomainClinicScoped(r.ClinicScoped)
	return m, nil
}

// ReportImageModel is the persistence record for report_images. Images are
// append-only and removed together with their report.
type ReportImageModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" bson:"_id"`
	ClinicID    uuid.UUID `gorm:"type:uuid;not null;index" bson:"clinic_id"`
	ReportID    uuid.UUID `gorm:"column:report_id;type:uuid;not null;index" bson:"report_id"`
	Position    int       `gorm:"not null" bson:"position"`
	DisplayName string    `gorm:"column:display_name;type:varchar(255)" bson:"display_name"`
	Data        string    `gorm:"type:text;not null" bson:"data"`
	SizeBytes   int       `gorm:"column:size_bytes;not null" bson:"size_bytes"`
	CreatedAt   time.Time `gorm:"not null" bson:"created_at"`
}

// TableName returns the table name for ReportImageModel
func (ReportImageModel) TableName() string {
	return "report_images"
}

// ToDomain converts the record to a domain ImageAsset
func (m *ReportImageModel) ToDomain() report.ImageAsset {
	return report.ImageAsset{
		ID:          m.ID,
		DisplayName: m.DisplayName,
		Data:        m.Data,
		SizeBytes:   m.SizeBytes,
		Position:    m.Position,
	}
}

// ReportImageModelFromDomain converts an ImageAsset of the given report.
func ReportImageModelFromDomain(r *report.Report, img report.ImageAsset) *ReportImageModel {
	id := img.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &ReportImageModel{
		ID:          id,
		ClinicID:    r.ClinicID,
		ReportID:    r.ID,
		Position:    img.Position,
		DisplayName: img.DisplayName,
		Data:        img.Data,
		SizeBytes:   img.SizeBytes,
		CreatedAt:   r.CreatedAt,
	}
}

// ClinicSettingsModel is the persistence record for clinic_settings
type ClinicSettingsModel struct {
	BaseModel `bson:",inline"`
	ClinicID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" bson:"clinic_id"`
	Name      string    `gorm:"type:varchar(255)" bson:"name"`
	Address   string    `gorm:"type:text" bson:"address"`
	Logo      string    `gorm:"type:text" bson:"logo"`
}

// TableName returns the table name for ClinicSettingsModel
func (ClinicSettingsModel) TableName() string {
	return "clinic_settings"
}

// ToDomain converts the record to domain Settings
func (m *ClinicSettingsModel) ToDomain() *report.Settings {
	return &report.Settings{
		ClinicScoped: shared.ClinicScoped{BaseEntity: m.BaseModel.ToDomain(), ClinicID: m.ClinicID},
		Branding: report.ClinicBranding{
			DisplayName: m.Name,
			AddressText: m.Address,
			Logo:        m.Logo,
		},
	}
}

// ClinicSettingsModelFromDomain converts domain Settings to its record
func ClinicSettingsModelFromDomain(s *report.Settings) *ClinicSettingsModel {
	m := &ClinicSettingsModel{
		Name:     s.Branding.DisplayName,
		Address:  s.Branding.AddressText,
		Logo:     s.Branding.Logo,
		ClinicID: s.ClinicID,
	}
	m.FromDomainBaseEntity(s.BaseEntity)
	return m
}
