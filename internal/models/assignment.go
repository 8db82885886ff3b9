package models

import "time"

// DoctorAssignment counts alerts routed to a doctor. Count never decreases.
type DoctorAssignment struct {
	DoctorID     string     `gorm:"column:doctor_id;type:text;primaryKey" json:"doctor_id"`
	Count        int64      `gorm:"column:count;not null;default:0" json:"count"`
	LastAssigned *time.Time `gorm:"column:last_assigned;type:timestamptz" json:"last_assigned,omitempty"`
}

func (DoctorAssignment) TableName() string { return "doctor_assignments" }
