package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AlertRecord struct {
	DoctorID   *string   `bson:"doctor_id" json:"doctor_id"`
	Specialist string    `bson:"specialist,omitempty" json:"specialist,omitempty"`
	Urgency    Urgency   `bson:"urgency" json:"urgency"`
	Sent       bool      `bson:"sent" json:"sent"`
	Method     []string  `bson:"method" json:"method"`
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"`
}

const (
	AuditStatusCompleted = "completed"
	AuditStatusDegraded  = "degraded"
	AuditStatusFailed    = "failed"
)

// AuditReview is written once per intake run and never updated.
type AuditReview struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RunID     string             `bson:"run_id" json:"run_id"`
	PatientID string             `bson:"patient_id" json:"patient_id"`
	VoiceURL  string             `bson:"voice_url" json:"voice_url"`

	Transcript     string         `bson:"transcript" json:"transcript"`
	Language       string         `bson:"language,omitempty" json:"language,omitempty"`
	PatientContext string         `bson:"patient_context" json:"patient_context"`
	Keywords       []string       `bson:"keywords" json:"keywords"`
	Disease        string         `bson:"detected_disease" json:"detected_disease"`
	Risk           RiskAssessment `bson:"risk" json:"risk"`
	Alert          AlertRecord    `bson:"alert" json:"alert"`

	Status string `bson:"status" json:"status"`
	Error  string `bson:"error,omitempty" json:"error,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
