package notify

import (
	"context"
	"time"
)

// Alert is the structured message a doctor receives for a triaged patient.
type Alert struct {
	RunID       string    `json:"run_id"`
	DoctorID    string    `json:"doctor_id"`
	DoctorName  string    `json:"doctor_name"`
	DoctorEmail string    `json:"doctor_email"`
	PatientID   string    `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	Disease     string    `json:"disease"`
	Urgency     string    `json:"urgency"`
	Symptoms    []string  `json:"symptoms"`
	Description string    `json:"description"`
	Specialist  string    `json:"specialist"`
	CreatedAt   time.Time `json:"created_at"`
}

// Channel delivers one alert. Method names the channel in alert records.
type Channel interface {
	Send(ctx context.Context, a Alert) error
	Method() string
}
