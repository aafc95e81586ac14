package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/datajunction/djqs/app/models"
	"github.com/datajunction/djqs/app/services"
	"github.com/datajunction/djqs/pkg/response"
)

type CatalogController struct {
	service *services.CatalogService
}

func NewCatalogController(service *services.CatalogService) *CatalogController {
	return &CatalogController{service: service}
}

// Index handles GET /catalogs/.
func (c *CatalogController) Index(w http.ResponseWriter, r *http.Request) {
	mt, ok := negotiate(w, r)
	if !ok {
		return
	}
	catalogs, err := c.service.List(r.Context())
	if err != nil {
		fail(w, r, mt, err)
		return
	}
	if catalogs == nil {
		catalogs = []models.Catalog{}
	}
	response.Write(w, mt, http.StatusOK, catalogs)
}

// Show handles GET /catalogs/{name}.
func (c *CatalogController) Show(w http.ResponseWriter, r *http.Request) {
	mt, ok := negotiate(w, r)
	if !ok {
		return
	}
	catalog, err := c.service.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		fail(w, r, mt, err)
		return
	}
	response.Write(w, mt, http.StatusOK, catalog)
}

// Store handles POST /catalogs/.
func (c *CatalogController) Store(w http.ResponseWriter, r *http.Request) {
	mt, ok := negotiate(w, r)
	if !ok {
		return
	}
	var in models.CatalogCreate
	if !decode(w, r, mt, &in) {
		return
	}
	catalog, err := c.service.Create(r.Context(), in)
	if err != nil {
		fail(w, r, mt, err)
		return
	}
	response.Write(w, mt, http.StatusCreated, catalog)
}

// AddEngines handles POST /catalogs/{name}/engines/.
func (c *CatalogController) AddEngines(w http.ResponseWriter, r *http.Request) {
	mt, ok := negotiate(w, r)
	if !ok {
		return
	}
	var in models.CatalogEngines
	if !decode(w, r, mt, &in) {
		return
	}
	catalog, err := c.service.AddEngines(r.Context(), chi.URLParam(r, "name"), in.Engines)
	if err != nil {
		fail(w, r, mt, err)
		return
	}
	response.Write(w, mt, http.StatusOK, catalog)
}
