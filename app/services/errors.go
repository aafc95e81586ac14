// Package services holds the business logic of the query service.
package services

import "errors"

var (
	ErrCatalogNotFound = errors.New("catalog not found")
	ErrEngineNotFound  = errors.New("engine not found")
	ErrQueryNotFound   = errors.New("query not found")
	ErrConflict        = errors.New("already exists")
)
