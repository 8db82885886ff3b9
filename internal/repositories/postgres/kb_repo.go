package postgres

import (
	"context"

	"github.com/pgvector/pgvector-go"
	"github.com/yoockh/yoocare/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type KBRepository interface {
	ListAll(ctx context.Context) ([]models.KBExample, error)
	Nearest(ctx context.Context, q []float32, k int) ([]models.KBExample, error)
	InsertBatch(ctx context.Context, rows []models.KBExample) error
	NextPosition(ctx context.Context) (int64, error)
}

type kbRepo struct {
	db *gorm.DB
}

func NewKBRepo(db *gorm.DB) KBRepository {
	return &kbRepo{db: db}
}

// ListAll returns every example in load order.
func (r *kbRepo) ListAll(ctx context.Context) ([]models.KBExample, error) {
	var rows []models.KBExample
	err := r.db.WithContext(ctx).
		Order("position ASC").
		Find(&rows).Error
	return rows, err
}

// Nearest runs the L2 search in the database, for deployments too large to
// hold the index in memory.
func (r *kbRepo) Nearest(ctx context.Context, q []float32, k int) ([]models.KBExample, error) {
	if k <= 0 {
		k = 3
	}
	var rows []models.KBExample
	err := r.db.WithContext(ctx).
		Clauses(clause.OrderBy{
			Expression: clause.Expr{SQL: "embedding <-> ?, position ASC", Vars: []any{pgvector.NewVector(q)}},
		}).
		Limit(k).
		Find(&rows).Error
	return rows, err
}

func (r *kbRepo) InsertBatch(ctx context.Context, rows []models.KBExample) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(rows, 200).Error
}

func (r *kbRepo) NextPosition(ctx context.Context) (int64, error) {
	var max *int64
	err := r.db.WithContext(ctx).
		Model(&models.KBExample{}).
		Select("MAX(position)").
		Scan(&max).Error
	if err != nil || max == nil {
		return 0, err
	}
	return *max + 1, nil
}
