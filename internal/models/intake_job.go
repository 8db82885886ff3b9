package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IntakeJob tracks an asynchronous voice intake through the pipeline stages.
type IntakeJob struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	JobID     string             `bson:"job_id" json:"job_id"`
	PatientID string             `bson:"patient_id" json:"patient_id"`
	Ext       string             `bson:"ext" json:"ext"`
	VoiceURL  string             `bson:"voice_url,omitempty" json:"voice_url,omitempty"`

	Stage  string `bson:"stage" json:"stage"`   // queued|preprocess|transcribe|extract|analyze|route|alert|audit
	Status string `bson:"status" json:"status"` // pending|processing|done|failed

	AuditID   string `bson:"audit_id,omitempty" json:"audit_id,omitempty"`
	ErrorCode string `bson:"error_code,omitempty" json:"error_code,omitempty"`

	ProcessingTimeMS int64     `bson:"processing_time_ms,omitempty" json:"processing_time_ms,omitempty"`
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at" json:"updated_at"`

	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"` // for TTL index
}
