package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/yoocare/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssignmentRepo keeps doctor assignment counters. Selection and increment run
// in one transaction holding row locks on every candidate.
type AssignmentRepo struct {
	db *gorm.DB
}

func NewAssignmentRepo(db *gorm.DB) *AssignmentRepo {
	return &AssignmentRepo{db: db}
}

func (r *AssignmentRepo) Assign(ctx context.Context, doctorIDs []string, pick func(counts []int64) int) (string, int64, error) {
	if len(doctorIDs) == 0 {
		return "", 0, errors.New("no candidate doctors")
	}

	var chosen string
	var count int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := make([]models.DoctorAssignment, len(doctorIDs))
		for i, id := range doctorIDs {
			seed[i] = models.DoctorAssignment{DoctorID: id}
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}

		// lock in a fixed order so concurrent runs cannot deadlock
		var rows []models.DoctorAssignment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("doctor_id IN ?", doctorIDs).
			Order("doctor_id").
			Find(&rows).Error; err != nil {
			return err
		}

		byID := make(map[string]int64, len(rows))
		for _, row := range rows {
			byID[row.DoctorID] = row.Count
		}
		counts := make([]int64, len(doctorIDs))
		for i, id := range doctorIDs {
			counts[i] = byID[id]
		}

		i := pick(counts)
		if i < 0 || i >= len(doctorIDs) {
			return errors.New("pick returned out of range index")
		}
		chosen = doctorIDs[i]
		count = counts[i] + 1

		now := time.Now().UTC()
		return tx.Model(&models.DoctorAssignment{}).
			Where("doctor_id = ?", chosen).
			Updates(map[string]any{
				"count":         gorm.Expr("count + 1"),
				"last_assigned": now,
			}).Error
	})
	if err != nil {
		return "", 0, err
	}
	return chosen, count, nil
}

func (r *AssignmentRepo) Counts(ctx context.Context, doctorIDs []string) (map[string]int64, error) {
	var rows []models.DoctorAssignment
	if err := r.db.WithContext(ctx).Where("doctor_id IN ?", doctorIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(doctorIDs))
	for _, id := range doctorIDs {
		out[id] = 0
	}
	for _, row := range rows {
		out[row.DoctorID] = row.Count
	}
	return out, nil
}
