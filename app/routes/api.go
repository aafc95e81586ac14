// Package routes registers the HTTP API of the query service.
package routes

import (
	"gorm.io/gorm"

	"github.com/datajunction/djqs/app/controllers"
	"github.com/datajunction/djqs/app/services"
	"github.com/datajunction/djqs/pkg/event"
	"github.com/datajunction/djqs/pkg/router"
)

// Deps are the shared services the API is built from.
type Deps struct {
	DB      *gorm.DB
	Queries *services.QueryService
	Events  *event.Bus

	// Draining is closed when the server starts shutting down.
	Draining <-chan struct{}
}

func RegisterAPI(r *router.Router, d Deps) {
	queryController := controllers.NewQueryController(d.Queries, d.Events, d.Draining)
	catalogController := controllers.NewCatalogController(services.NewCatalogService(d.DB))
	engineController := controllers.NewEngineController(services.NewEngineService(d.DB))
	healthController := controllers.NewHealthController(d.DB)

	r.Get("/health", "health", healthController.Check)

	queries := r.Group("/queries")
	queries.Post("/", "queries.submit", queryController.Submit)
	queries.Get("/{id}", "queries.show", queryController.Show)
	queries.Get("/{id}/events", "queries.events", queryController.Events)
	queries.Get("/{id}/ws", "queries.ws", queryController.Socket)

	catalogs := r.Group("/catalogs")
	catalogs.Get("/", "catalogs.index", catalogController.Index)
	catalogs.Post("/", "catalogs.store", catalogController.Store)
	catalogs.Get("/{name}", "catalogs.show", catalogController.Show)
	catalogs.Post("/{name}/engines/", "catalogs.engines.add", catalogController.AddEngines)

	engines := r.Group("/engines")
	engines.Get("/", "engines.index", engineController.Index)
	engines.Post("/", "engines.store", engineController.Store)
	engines.Get("/{name}/{version}", "engines.show", engineController.Show)
}
