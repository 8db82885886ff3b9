package models

import "time"

type VoiceFile struct {
	ID        string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	PatientID string `gorm:"column:patient_id;type:uuid;index" json:"patient_id"`
	FileName  string `gorm:"column:file_name;type:text" json:"file_name"`
	URL       string `gorm:"column:url;type:text" json:"url"`

	FileSize int64  `gorm:"column:file_size;type:bigint" json:"file_size"`
	MimeType string `gorm:"column:mime_type;type:text" json:"mime_type"`

	UploadedAt time.Time `gorm:"column:uploaded_at;type:timestamptz" json:"uploaded_at"`
}

func (VoiceFile) TableName() string { return "voice_files" }
