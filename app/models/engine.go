package models

// Engine is a named, versioned connection URI that executes SQL.
type Engine struct {
	ID      uint   `gorm:"primaryKey"                                    json:"-"`
	Name    string `gorm:"size:255;not null;uniqueIndex:idx_engine_ref" json:"name"`
	Version string `gorm:"size:50;not null;uniqueIndex:idx_engine_ref"  json:"version"`
	URI     string `gorm:"type:text;not null"                           json:"-"` // credentials, never serialised
}

// EngineRef identifies an engine by name and version.
type EngineRef struct {
	Name    string `json:"name"    yaml:"name"    validate:"required"`
	Version string `json:"version" yaml:"version" validate:"required"`
}

// Ref returns the name/version pair of e.
func (e Engine) Ref() EngineRef {
	return EngineRef{Name: e.Name, Version: e.Version}
}

// EngineCreate is the body of POST /engines/.
type EngineCreate struct {
	Name    string `json:"name"    yaml:"name"    validate:"required,max=255"`
	Version string `json:"version" yaml:"version" validate:"required,max=50"`
	URI     string `json:"uri"     yaml:"uri"     validate:"required"`
}
