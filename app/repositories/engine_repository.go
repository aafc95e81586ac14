package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/datajunction/djqs/app/models"
)

// EngineRepository handles database operations for Engine.
type EngineRepository struct {
	db *gorm.DB
}

func NewEngineRepository(db *gorm.DB) *EngineRepository {
	return &EngineRepository{db: db}
}

// All returns every engine ordered by name and version.
func (r *EngineRepository) All(ctx context.Context) ([]models.Engine, error) {
	var engines []models.Engine
	err := r.db.WithContext(ctx).Order("name, version").Find(&engines).Error
	return engines, err
}

// Find looks up an engine by name and version. It returns
// gorm.ErrRecordNotFound when there is none.
func (r *EngineRepository) Find(ctx context.Context, name, version string) (models.Engine, error) {
	var engine models.Engine
	err := r.db.WithContext(ctx).
		Where("name = ? AND version = ?", name, version).
		First(&engine).Error
	return engine, err
}

// Create persists a new engine.
func (r *EngineRepository) Create(ctx context.Context, engine *models.Engine) error {
	return r.db.WithContext(ctx).Create(engine).Error
}

// Save updates an existing engine.
func (r *EngineRepository) Save(ctx context.Context, engine *models.Engine) error {
	return r.db.WithContext(ctx).Save(engine).Error
}
