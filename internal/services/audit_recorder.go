package services

import (
	"context"
	"time"

	"github.com/yoockh/yoocare/internal/models"
	"github.com/yoockh/yoocare/internal/utils"
)

// AuditStore is append-only.
type AuditStore interface {
	Insert(ctx context.Context, a *models.AuditReview) (string, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, a *models.AuditReview) (string, error)
}

type auditRecorder struct {
	store AuditStore
	now   func() time.Time
}

func NewAuditRecorder(store AuditStore) AuditRecorder {
	return &auditRecorder{store: store, now: time.Now}
}

func (r *auditRecorder) Record(ctx context.Context, a *models.AuditReview) (string, error) {
	const op = "AuditRecorder.Record"

	if a == nil || a.PatientID == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "audit entry requires a patient id", nil)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.now().UTC()
	}
	if a.Keywords == nil {
		a.Keywords = []string{}
	}
	if a.Alert.Method == nil {
		a.Alert.Method = []string{}
	}
	if a.Risk.Entries == nil {
		a.Risk.Entries = []models.RiskEntry{}
	}
	if a.Status == "" {
		a.Status = models.AuditStatusCompleted
	}

	id, err := r.store.Insert(ctx, a)
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "audit store unavailable", err)
	}
	return id, nil
}
