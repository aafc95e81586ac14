package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/datajunction/djqs/app/models"
)

// QueryRepository handles database operations for Query.
type QueryRepository struct {
	db *gorm.DB
}

func NewQueryRepository(db *gorm.DB) *QueryRepository {
	return &QueryRepository{db: db}
}

// Find looks up a query by id. It returns gorm.ErrRecordNotFound when there
// is none.
func (r *QueryRepository) Find(ctx context.Context, id uuid.UUID) (models.Query, error) {
	var query models.Query
	err := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&query).Error
	return query, err
}

// Create persists a new query.
func (r *QueryRepository) Create(ctx context.Context, query *models.Query) error {
	return r.db.WithContext(ctx).Create(query).Error
}

// Save writes every column of query.
func (r *QueryRepository) Save(ctx context.Context, query *models.Query) error {
	return r.db.WithContext(ctx).Save(query).Error
}
