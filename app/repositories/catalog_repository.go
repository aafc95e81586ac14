package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/datajunction/djqs/app/models"
)

// CatalogRepository handles database operations for Catalog. Catalogs are
// always loaded together with their engines.
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Engines", func(db *gorm.DB) *gorm.DB {
		return db.Order("name, version")
	})
}

// All returns every catalog ordered by name.
func (r *CatalogRepository) All(ctx context.Context) ([]models.Catalog, error) {
	var catalogs []models.Catalog
	err := r.preloaded(ctx).Order("name").Find(&catalogs).Error
	return catalogs, err
}

// FindByName looks up a catalog by name. It returns gorm.ErrRecordNotFound
// when there is none.
func (r *CatalogRepository) FindByName(ctx context.Context, name string) (models.Catalog, error) {
	var catalog models.Catalog
	err := r.preloaded(ctx).Where("name = ?", name).First(&catalog).Error
	return catalog, err
}

// Create persists a new catalog and links its engines, which must already
// exist.
func (r *CatalogRepository) Create(ctx context.Context, catalog *models.Catalog) error {
	return r.db.WithContext(ctx).Omit("Engines.*").Create(catalog).Error
}

// AppendEngines links engines to catalog.
func (r *CatalogRepository) AppendEngines(ctx context.Context, catalog *models.Catalog, engines []models.Engine) error {
	if len(engines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(catalog).Association("Engines").Append(&engines)
}
