package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/yoockh/yoocare/internal/models"
	mongorepo "github.com/yoockh/yoocare/internal/repositories/mongo"
	"github.com/yoockh/yoocare/internal/utils"
)

const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobDone       = "done"
	JobFailed     = "failed"
)

type IntakeJobService interface {
	Create(ctx context.Context, patientID, ext string) (*models.IntakeJob, error)
	MarkStage(ctx context.Context, jobID, stage string) error
	Finish(ctx context.Context, jobID string, res *IntakeResult, runErr error, processingMS int64) error
	// Get only returns jobs owned by patientID.
	Get(ctx context.Context, jobID, patientID string) (*models.IntakeJob, error)
}

type intakeJobService struct {
	jobs mongorepo.IntakeJobRepository
	ttl  time.Duration
}

func NewIntakeJobService(jobs mongorepo.IntakeJobRepository, ttl time.Duration) IntakeJobService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &intakeJobService{jobs: jobs, ttl: ttl}
}

func (s *intakeJobService) Create(ctx context.Context, patientID, ext string) (*models.IntakeJob, error) {
	const op = "IntakeJobService.Create"

	if patientID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "patient_id is required", nil)
	}

	now := time.Now().UTC()
	job := &models.IntakeJob{
		JobID:     uuid.NewString(),
		PatientID: patientID,
		Ext:       ext,
		Stage:     "queued",
		Status:    JobPending,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create intake job", err)
	}
	return job, nil
}

func (s *intakeJobService) MarkStage(ctx context.Context, jobID, stage string) error {
	const op = "IntakeJobService.MarkStage"

	if jobID == "" || stage == "" {
		return utils.E(utils.CodeInvalidArgument, op, "job_id and stage are required", nil)
	}
	if err := s.jobs.UpdateStage(ctx, jobID, stage, JobProcessing); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to update intake job stage", err)
	}
	return nil
}

func (s *intakeJobService) Finish(ctx context.Context, jobID string, res *IntakeResult, runErr error, processingMS int64) error {
	const op = "IntakeJobService.Finish"

	if jobID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "job_id is required", nil)
	}
	status, auditID, code := JobDone, "", ""
	if res != nil {
		auditID = res.AuditID
	}
	if runErr != nil {
		status = JobFailed
		code = string(utils.CodeOf(runErr))
	}
	if err := s.jobs.Finish(ctx, jobID, status, auditID, code, processingMS); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to finish intake job", err)
	}
	return nil
}

func (s *intakeJobService) Get(ctx context.Context, jobID, patientID string) (*models.IntakeJob, error) {
	const op = "IntakeJobService.Get"

	if jobID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "job_id is required", nil)
	}
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "intake job not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get intake job", err)
	}
	if patientID != "" && job.PatientID != patientID {
		return nil, utils.E(utils.CodeNotFound, op, "intake job not found", nil)
	}
	return job, nil
}

// IntakeStatusChannel is the pub/sub channel carrying stage updates for a job.
func IntakeStatusChannel(jobID string) string { return "intake:" + jobID + ":status" }

// IntakeStatus is one message published on IntakeStatusChannel.
type IntakeStatus struct {
	Type    string        `json:"type"` // status|result|error
	JobID   string        `json:"job_id"`
	Stage   string        `json:"stage,omitempty"`
	Status  string        `json:"status"`
	Code    string        `json:"code,omitempty"`
	Message string        `json:"message,omitempty"`
	Result  *IntakeResult `json:"result,omitempty"`
}

// Terminal reports whether no further updates follow.
func (s IntakeStatus) Terminal() bool { return s.Status == JobDone || s.Status == JobFailed }
