package postgres

import (
	"context"
	"errors"

	"github.com/yoockh/yoocare/internal/models"
	"github.com/yoockh/yoocare/internal/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PatientRepository interface {
	GetByID(ctx context.Context, id string) (*models.Patient, error)
	Upsert(ctx context.Context, p *models.Patient) error
	SetInitialDiagnosis(ctx context.Context, id string, diagnosis datatypes.JSON) error
}

type patientRepo struct {
	db *gorm.DB
}

func NewPatientRepo(db *gorm.DB) PatientRepository {
	return &patientRepo{db: db}
}

func (r *patientRepo) GetByID(ctx context.Context, id string) (*models.Patient, error) {
	var p models.Patient
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepo) Upsert(ctx context.Context, p *models.Patient) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"full_name", "phone_number", "age", "gender", "symptoms", "history", "updated_at"}),
		}).
		Create(p).Error
}

func (r *patientRepo) SetInitialDiagnosis(ctx context.Context, id string, diagnosis datatypes.JSON) error {
	res := r.db.WithContext(ctx).
		Model(&models.Patient{}).
		Where("id = ?", id).
		Update("initial_diagnosis", diagnosis)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}
