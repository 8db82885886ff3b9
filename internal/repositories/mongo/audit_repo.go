package mongo

import (
	"context"
	"errors"

	"github.com/yoockh/yoocare/internal/models"
	"github.com/yoockh/yoocare/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AuditRepository is append-only: there is no update or delete.
type AuditRepository interface {
	Insert(ctx context.Context, a *models.AuditReview) (string, error)
	GetByID(ctx context.Context, id string) (*models.AuditReview, error)
	ListByDoctor(ctx context.Context, doctorID string, limit int64) ([]models.AuditReview, error)
	ListByPatient(ctx context.Context, patientID string, limit int64) ([]models.AuditReview, error)
}

type auditRepo struct {
	col *mongo.Collection
}

func NewAuditRepo(db *mongo.Database) AuditRepository {
	return &auditRepo{col: db.Collection("audit_patient")}
}

func (r *auditRepo) Insert(ctx context.Context, a *models.AuditReview) (string, error) {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	if _, err := r.col.InsertOne(ctx, a); err != nil {
		return "", err
	}
	return a.ID.Hex(), nil
}

func (r *auditRepo) GetByID(ctx context.Context, id string) (*models.AuditReview, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, utils.ErrNotFound
	}
	var out models.AuditReview
	err = r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *auditRepo) ListByDoctor(ctx context.Context, doctorID string, limit int64) ([]models.AuditReview, error) {
	return r.list(ctx, bson.M{"alert.doctor_id": doctorID}, limit)
}

func (r *auditRepo) ListByPatient(ctx context.Context, patientID string, limit int64) ([]models.AuditReview, error) {
	return r.list(ctx, bson.M{"patient_id": patientID}, limit)
}

func (r *auditRepo) list(ctx context.Context, filter bson.M, limit int64) ([]models.AuditReview, error) {
	if limit <= 0 {
		limit = 50
	}
	cur, err := r.col.Find(ctx, filter,
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.AuditReview
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
