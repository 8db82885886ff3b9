package config

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureMongoIndexes() error {
	if MongoClient == nil {
		return errors.New("MongoClient is nil; call InitMongo() first")
	}
	db := MongoDatabase()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// audit_patient: one entry per run, read by doctor and by patient
	_, err := db.Collection("audit_patient").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "run_id", Value: 1}},
			Options: options.Index().SetName("uniq_run_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "alert.doctor_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("by_doctor_created"),
		},
		{
			Keys:    bson.D{{Key: "patient_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("by_patient_created"),
		},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection("doctor_specialists").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "doctor_id", Value: 1}, {Key: "specialist", Value: 1}},
			Options: options.Index().SetName("uniq_doctor_specialist").SetUnique(true),
		},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection("intake_jobs").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().
				SetName("ttl_expires_at").
				SetExpireAfterSeconds(0),
		},
		{
			Keys:    bson.D{{Key: "job_id", Value: 1}},
			Options: options.Index().SetName("uniq_job_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "patient_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("by_patient_created"),
		},
	})
	return err
}
