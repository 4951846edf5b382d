// Package domain holds the read-only reference data recognition enriches
// revenue with: enrollments, billable services and physical locations.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Enrollment is a student's subscription to a billable service.
type Enrollment struct {
	ID         snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	StudentID  snowflake.ID `gorm:"not null;index" json:"student_id"`
	ServiceID  snowflake.ID `gorm:"not null;index" json:"service_id"`
	ClassTitle *string      `gorm:"type:text" json:"class_title,omitempty"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
}

func (Enrollment) TableName() string { return "enrollments" }

// BillableService is an offering identified by a stable code such as "ea-tutoring".
type BillableService struct {
	ID        snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Code      string       `gorm:"type:text;not null;uniqueIndex:ux_services_code" json:"code"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

func (BillableService) TableName() string { return "services" }

// Location is a physical site revenue can be attributed to.
type Location struct {
	ID        snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Code      string       `gorm:"type:text;not null;uniqueIndex:ux_locations_code" json:"code"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

func (Location) TableName() string { return "locations" }
