package models

import "time"

// Catalog is a named set of engines a query may target.
type Catalog struct {
	ID        uint      `gorm:"primaryKey"                       json:"-"`
	Name      string    `gorm:"size:255;not null;uniqueIndex"    json:"name"`
	Engines   []Engine  `gorm:"many2many:catalog_engines"        json:"engines"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasEngine reports whether the catalog contains the engine name/version.
func (c Catalog) HasEngine(name, version string) bool {
	for _, e := range c.Engines {
		if e.Name == name && e.Version == version {
			return true
		}
	}
	return false
}

// CatalogCreate is the body of POST /catalogs/.
type CatalogCreate struct {
	Name    string      `json:"name"    yaml:"name"    validate:"required,max=255"`
	Engines []EngineRef `json:"engines" yaml:"engines" validate:"dive"`
}

// CatalogEngines is the body of POST /catalogs/{name}/engines/.
type CatalogEngines struct {
	Engines []EngineRef `json:"engines" validate:"required,min=1,dive"`
}
