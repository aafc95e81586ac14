package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/datajunction/djqs/app/models"
	"github.com/datajunction/djqs/app/services"
	"github.com/datajunction/djqs/pkg/response"
)

type EngineController struct {
	service *services.EngineService
}

func NewEngineController(service *services.EngineService) *EngineController {
	return &EngineController{service: service}
}

// Index handles GET /engines/.
func (c *EngineController) Index(w http.ResponseWriter, r *http.Request) {
	mt, ok := negotiate(w, r)
	if !ok {
		return
	}
	engines, err := c.service.List(r.Context())
	if err != nil {
		fail(w, r, mt, err)
		return
	}
	if engines == nil {
		engines = []models.Engine{}
	}
	response.Write(w, mt, http.StatusOK, engines)
}

// Show handles GET /engines/{name}/{version}.
func (c *EngineController) Show(w http.ResponseWriter, r *http.Request) {
	mt, ok := negotiate(w, r)
	if !ok {
		return
	}
	engine, err := c.service.Get(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "version"))
	if err != nil {
		fail(w, r, mt, err)
		return
	}
	response.Write(w, mt, http.StatusOK, engine)
}

// Store handles POST /engines/.
func (c *EngineController) Store(w http.ResponseWriter, r *http.Request) {
	mt, ok := negotiate(w, r)
	if !ok {
		return
	}
	var in models.EngineCreate
	if !decode(w, r, mt, &in) {
		return
	}
	engine, err := c.service.Create(r.Context(), in)
	if err != nil {
		fail(w, r, mt, err)
		return
	}
	response.Write(w, mt, http.StatusCreated, engine)
}
