package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/yoockh/yoocare/internal/models"
	pgrepo "github.com/yoockh/yoocare/internal/repositories/postgres"
	"github.com/yoockh/yoocare/internal/utils"
)

type PatientService interface {
	Get(ctx context.Context, patientID string) (*models.Patient, error)
	Upsert(ctx context.Context, p *models.Patient) error
}

type patientService struct {
	patients pgrepo.PatientRepository
}

func NewPatientService(patients pgrepo.PatientRepository) PatientService {
	return &patientService{patients: patients}
}

func (s *patientService) Get(ctx context.Context, patientID string) (*models.Patient, error) {
	const op = "PatientService.Get"

	if patientID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "patient_id is required", nil)
	}

	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "patient not found", err)
		}
		return nil, utils.E(utils.CodeUnavailable, op, "failed to get patient", err)
	}
	return p, nil
}

func (s *patientService) Upsert(ctx context.Context, p *models.Patient) error {
	const op = "PatientService.Upsert"

	if p == nil || p.ID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "patient.id is required", nil)
	}
	if p.Age < 0 || p.Age > 150 {
		return utils.E(utils.CodeInvalidArgument, op, "age out of range", nil)
	}

	symptoms := make([]string, 0, len(p.Symptoms))
	for _, sym := range p.Symptoms {
		if sym = strings.TrimSpace(sym); sym != "" {
			symptoms = append(symptoms, sym)
		}
	}
	p.Symptoms = symptoms
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}

	if err := s.patients.Upsert(ctx, p); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to upsert patient", err)
	}
	return nil
}
