package mongo

import (
	"context"

	"github.com/yoockh/yoocare/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SpecialistRepository interface {
	List(ctx context.Context) ([]models.SpecialistEntry, error)
	Upsert(ctx context.Context, e *models.SpecialistEntry) error
}

type specialistRepo struct {
	col *mongo.Collection
}

func NewSpecialistRepo(db *mongo.Database) SpecialistRepository {
	return &specialistRepo{col: db.Collection("doctor_specialists")}
}

// List returns the directory in insertion order, which callers rely on for
// deterministic tie-breaking.
func (r *specialistRepo) List(ctx context.Context) ([]models.SpecialistEntry, error) {
	cur, err := r.col.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.SpecialistEntry
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *specialistRepo) Upsert(ctx context.Context, e *models.SpecialistEntry) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"doctor_id": e.DoctorID},
		bson.M{"$set": e},
		options.Update().SetUpsert(true),
	)
	return err
}
