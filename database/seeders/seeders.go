// Package seeders loads engines and catalogs into the index database from a
// YAML file:
//
//	engines:
//	  - name: sqlite
//	    version: "3.39"
//	    uri: sqlite://
//	catalogs:
//	  - name: default
//	    engines:
//	      - name: sqlite
//	        version: "3.39"
//
// Run via CLI: djqs seed --file djqs.yaml
package seeders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/datajunction/djqs/app/models"
	"github.com/datajunction/djqs/app/repositories"
	"github.com/datajunction/djqs/app/services"
	"github.com/datajunction/djqs/pkg/validate"
)

// File is the layout of a seed file.
type File struct {
	Engines  []models.EngineCreate  `yaml:"engines"`
	Catalogs []models.CatalogCreate `yaml:"catalogs"`
}

// Load reads and validates the seed file at path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("seeders: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a seed document.
func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("seeders: parse: %w", err)
	}

	for i, e := range f.Engines {
		if errs := validate.Struct(e); validate.HasErrors(errs) {
			return File{}, fmt.Errorf("seeders: engines[%d]: %s", i, describe(errs))
		}
	}
	for i, c := range f.Catalogs {
		if errs := validate.Struct(c); validate.HasErrors(errs) {
			return File{}, fmt.Errorf("seeders: catalogs[%d]: %s", i, describe(errs))
		}
	}
	return f, nil
}

func describe(errs map[string]string) string {
	parts := make([]string, 0, len(errs))
	for field, msg := range errs {
		parts = append(parts, field+": "+msg)
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// Run upserts f into db inside one transaction. Existing engines get their
// URI updated; existing catalogs gain any missing engines.
func Run(ctx context.Context, db *gorm.DB, f File, out io.Writer) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		engineRepo := repositories.NewEngineRepository(tx)
		engineSvc := services.NewEngineService(tx)
		catalogSvc := services.NewCatalogService(tx)

		for _, in := range f.Engines {
			fmt.Fprintf(out, "  • Engine %s %s … ", in.Name, in.Version)
			existing, err := engineRepo.Find(ctx, in.Name, in.Version)
			switch {
			case err == nil:
				existing.URI = in.URI
				if err := engineRepo.Save(ctx, &existing); err != nil {
					fmt.Fprintln(out, "FAILED")
					return fmt.Errorf("seeders: engine %s %s: %w", in.Name, in.Version, err)
				}
				fmt.Fprintln(out, "updated")
			case errors.Is(err, gorm.ErrRecordNotFound):
				if _, err := engineSvc.Create(ctx, in); err != nil {
					fmt.Fprintln(out, "FAILED")
					return fmt.Errorf("seeders: engine %s %s: %w", in.Name, in.Version, err)
				}
				fmt.Fprintln(out, "created")
			default:
				fmt.Fprintln(out, "FAILED")
				return err
			}
		}

		for _, in := range f.Catalogs {
			fmt.Fprintf(out, "  • Catalog %s … ", in.Name)
			_, err := catalogSvc.Create(ctx, in)
			if errors.Is(err, services.ErrConflict) {
				_, err = catalogSvc.AddEngines(ctx, in.Name, in.Engines)
				if err == nil {
					fmt.Fprintln(out, "updated")
					continue
				}
			}
			if err != nil {
				fmt.Fprintln(out, "FAILED")
				return fmt.Errorf("seeders: catalog %s: %w", in.Name, err)
			}
			fmt.Fprintln(out, "created")
		}
		return nil
	})
}
