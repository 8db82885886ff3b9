package services

import (
	"context"

	"github.com/yoockh/yoocare/internal/models"
	"github.com/yoockh/yoocare/internal/utils"
)

type AuditReader interface {
	ListByDoctor(ctx context.Context, doctorID string, limit int64) ([]models.AuditReview, error)
	ListByPatient(ctx context.Context, patientID string, limit int64) ([]models.AuditReview, error)
}

// AuditQueryService reads audit entries; the audit log itself is append-only.
type AuditQueryService interface {
	DoctorAlerts(ctx context.Context, doctorID string, limit int64) ([]models.AuditReview, error)
	PatientHistory(ctx context.Context, patientID string, limit int64) ([]models.AuditReview, error)
}

type auditQueryService struct {
	audits AuditReader
}

func NewAuditQueryService(audits AuditReader) AuditQueryService {
	return &auditQueryService{audits: audits}
}

func clampLimit(limit int64) int64 {
	if limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}

func (s *auditQueryService) DoctorAlerts(ctx context.Context, doctorID string, limit int64) ([]models.AuditReview, error) {
	const op = "AuditQueryService.DoctorAlerts"

	if doctorID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "doctor_id is required", nil)
	}
	out, err := s.audits.ListByDoctor(ctx, doctorID, clampLimit(limit))
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list doctor alerts", err)
	}
	return out, nil
}

func (s *auditQueryService) PatientHistory(ctx context.Context, patientID string, limit int64) ([]models.AuditReview, error) {
	const op = "AuditQueryService.PatientHistory"

	if patientID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "patient_id is required", nil)
	}
	out, err := s.audits.ListByPatient(ctx, patientID, clampLimit(limit))
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list patient history", err)
	}
	return out, nil
}
