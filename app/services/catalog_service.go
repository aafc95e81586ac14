package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/datajunction/djqs/app/models"
	"github.com/datajunction/djqs/app/repositories"
	"github.com/datajunction/djqs/pkg/database"
)

type CatalogService struct {
	catalogs *repositories.CatalogRepository
	engines  *EngineService
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{
		catalogs: repositories.NewCatalogRepository(db),
		engines:  NewEngineService(db),
	}
}

func (s *CatalogService) List(ctx context.Context) ([]models.Catalog, error) {
	return s.catalogs.All(ctx)
}

// Get returns the named catalog with its engines or ErrCatalogNotFound.
func (s *CatalogService) Get(ctx context.Context, name string) (models.Catalog, error) {
	catalog, err := s.catalogs.FindByName(ctx, name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Catalog{}, fmt.Errorf("%w: %s", ErrCatalogNotFound, name)
	}
	return catalog, err
}

// Create stores a new catalog linked to existing engines. A duplicate name
// yields ErrConflict and an unknown engine ErrEngineNotFound.
func (s *CatalogService) Create(ctx context.Context, in models.CatalogCreate) (models.Catalog, error) {
	_, err := s.catalogs.FindByName(ctx, in.Name)
	switch {
	case err == nil:
		return models.Catalog{}, fmt.Errorf("catalog %s %w", in.Name, ErrConflict)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return models.Catalog{}, err
	}

	engines, err := s.resolve(ctx, in.Engines)
	if err != nil {
		return models.Catalog{}, err
	}

	catalog := models.Catalog{Name: in.Name, Engines: engines}
	if err := s.catalogs.Create(ctx, &catalog); err != nil {
		if database.IsDuplicateKey(err) {
			return models.Catalog{}, fmt.Errorf("catalog %s %w", in.Name, ErrConflict)
		}
		return models.Catalog{}, fmt.Errorf("services: create catalog: %w", err)
	}
	return s.Get(ctx, in.Name)
}

// AddEngines links engines to the named catalog. Engines already in the
// catalog are skipped.
func (s *CatalogService) AddEngines(ctx context.Context, name string, refs []models.EngineRef) (models.Catalog, error) {
	catalog, err := s.Get(ctx, name)
	if err != nil {
		return models.Catalog{}, err
	}

	engines, err := s.resolve(ctx, refs)
	if err != nil {
		return models.Catalog{}, err
	}

	var missing []models.Engine
	for _, e := range engines {
		if !catalog.HasEngine(e.Name, e.Version) {
			missing = append(missing, e)
		}
	}
	if err := s.catalogs.AppendEngines(ctx, &catalog, missing); err != nil {
		return models.Catalog{}, fmt.Errorf("services: add engines: %w", err)
	}
	return s.Get(ctx, name)
}

func (s *CatalogService) resolve(ctx context.Context, refs []models.EngineRef) ([]models.Engine, error) {
	engines := make([]models.Engine, 0, len(refs))
	seen := make(map[models.EngineRef]bool, len(refs))
	for _, ref := range refs {
		if seen[ref] {
			continue
		}
		seen[ref] = true

		engine, err := s.engines.Get(ctx, ref.Name, ref.Version)
		if err != nil {
			return nil, err
		}
		engines = append(engines, engine)
	}
	return engines, nil
}
