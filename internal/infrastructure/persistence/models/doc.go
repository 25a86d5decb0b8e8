// Package models contains the persistence records behind the clinic, patient,
// report and settings aggregates. Records carry both gorm column tags and bson
// field tags so the same types back the relational and the document stores.
//
// Domain entities stay free of storage tags; each record has ToDomain and
// FromDomain mappers. Report layout, branding and the patient snapshot are
// stored together as a JSON document in the report_data column.
package models
