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

type EngineService struct {
	engines *repositories.EngineRepository
}

func NewEngineService(db *gorm.DB) *EngineService {
	return &EngineService{engines: repositories.NewEngineRepository(db)}
}

func (s *EngineService) List(ctx context.Context) ([]models.Engine, error) {
	return s.engines.All(ctx)
}

// Get returns the engine name/version or ErrEngineNotFound.
func (s *EngineService) Get(ctx context.Context, name, version string) (models.Engine, error) {
	engine, err := s.engines.Find(ctx, name, version)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Engine{}, fmt.Errorf("%w: %s %s", ErrEngineNotFound, name, version)
	}
	return engine, err
}

// Create registers a new engine. An existing name/version yields ErrConflict.
func (s *EngineService) Create(ctx context.Context, in models.EngineCreate) (models.Engine, error) {
	_, err := s.engines.Find(ctx, in.Name, in.Version)
	switch {
	case err == nil:
		return models.Engine{}, fmt.Errorf("engine %s %s %w", in.Name, in.Version, ErrConflict)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return models.Engine{}, err
	}

	engine := models.Engine{Name: in.Name, Version: in.Version, URI: in.URI}
	if err := s.engines.Create(ctx, &engine); err != nil {
		if database.IsDuplicateKey(err) {
			// lost a race with a concurrent create
			return models.Engine{}, fmt.Errorf("engine %s %s %w", in.Name, in.Version, ErrConflict)
		}
		return models.Engine{}, fmt.Errorf("services: create engine: %w", err)
	}
	return engine, nil
}
