package postgres

import (
	"context"

	"github.com/yoockh/yoocare/internal/models"
	"gorm.io/gorm"
)

type VoiceFileRepository interface {
	Insert(ctx context.Context, f *models.VoiceFile) error
	ListByPatient(ctx context.Context, patientID string, limit int) ([]models.VoiceFile, error)
}

type voiceFileRepo struct {
	db *gorm.DB
}

func NewVoiceFileRepo(db *gorm.DB) VoiceFileRepository {
	return &voiceFileRepo{db: db}
}

func (r *voiceFileRepo) Insert(ctx context.Context, f *models.VoiceFile) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *voiceFileRepo) ListByPatient(ctx context.Context, patientID string, limit int) ([]models.VoiceFile, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []models.VoiceFile
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("uploaded_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
