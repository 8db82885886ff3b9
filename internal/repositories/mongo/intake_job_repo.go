package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/yoocare/internal/models"
	"github.com/yoockh/yoocare/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type IntakeJobRepository interface {
	Create(ctx context.Context, j *models.IntakeJob) error
	UpdateStage(ctx context.Context, jobID, stage, status string) error
	Finish(ctx context.Context, jobID, status, auditID, errorCode string, processingMS int64) error
	Get(ctx context.Context, jobID string) (*models.IntakeJob, error)
}

type intakeJobRepo struct {
	col *mongo.Collection
}

func NewIntakeJobRepo(db *mongo.Database) IntakeJobRepository {
	return &intakeJobRepo{col: db.Collection("intake_jobs")}
}

func (r *intakeJobRepo) Create(ctx context.Context, j *models.IntakeJob) error {
	now := time.Now().UTC()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
	_, err := r.col.InsertOne(ctx, j)
	return err
}

func (r *intakeJobRepo) UpdateStage(ctx context.Context, jobID, stage, status string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"job_id": jobID},
		bson.M{"$set": bson.M{
			"stage":      stage,
			"status":     status,
			"updated_at": time.Now().UTC(),
		}},
	)
	return err
}

func (r *intakeJobRepo) Finish(ctx context.Context, jobID, status, auditID, errorCode string, processingMS int64) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"job_id": jobID},
		bson.M{"$set": bson.M{
			"status":             status,
			"audit_id":           auditID,
			"error_code":         errorCode,
			"processing_time_ms": processingMS,
			"updated_at":         time.Now().UTC(),
		}},
	)
	return err
}

func (r *intakeJobRepo) Get(ctx context.Context, jobID string) (*models.IntakeJob, error) {
	var out models.IntakeJob
	err := r.col.FindOne(ctx, bson.M{"job_id": jobID}).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
