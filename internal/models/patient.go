package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Patient is the record the intake pipeline reads demographics and history from.
type Patient struct {
	ID       string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	FullName string `gorm:"column:full_name;type:text" json:"full_name"`
	Email    string `gorm:"column:email;type:text;uniqueIndex" json:"email"`
	Phone    string `gorm:"column:phone_number;type:text" json:"phone_number"`
	Age      int    `gorm:"column:age;type:integer" json:"age"`
	Gender   string `gorm:"column:gender;type:text" json:"gender"`

	// symptoms reported at registration
	Symptoms pq.StringArray `gorm:"column:symptoms;type:text[]" json:"symptoms"`
	History  string         `gorm:"column:history;type:text" json:"history"`

	// last initial diagnosis (JSONB, models.Diagnosis)
	InitialDiagnosis datatypes.JSON `gorm:"column:initial_diagnosis;type:jsonb" json:"initial_diagnosis,omitempty"`

	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Patient) TableName() string { return "patients" }
