// Package controllers holds the HTTP handlers of the query service.
package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/datajunction/djqs/app/services"
	"github.com/datajunction/djqs/pkg/bind"
	"github.com/datajunction/djqs/pkg/logger"
	"github.com/datajunction/djqs/pkg/response"
)

// negotiate picks the response media type, answering 406 when the client
// accepts none.
func negotiate(w http.ResponseWriter, r *http.Request) (string, bool) {
	mt, err := response.Negotiate(r)
	if err != nil {
		response.Error(w, http.StatusNotAcceptable, err.Error())
		return "", false
	}
	return mt, true
}

// decode binds the request body into dest and writes the error response
// when it cannot.
func decode(w http.ResponseWriter, r *http.Request, mt string, dest any) bool {
	errs, err := bind.Body(w, r, dest)
	if err != nil {
		bodyError(w, mt, err)
		return false
	}
	if errs != nil {
		response.ValidationError(w, mt, errs)
		return false
	}
	return true
}

func bodyError(w http.ResponseWriter, mt string, err error) {
	var unsupported *bind.UnsupportedTypeError
	switch {
	case errors.Is(err, bind.ErrNoContentType):
		response.ErrorAs(w, mt, http.StatusBadRequest, err.Error())
	case errors.As(err, &unsupported):
		response.ErrorAs(w, mt, http.StatusUnprocessableEntity, err.Error())
	case strings.HasPrefix(err.Error(), "request body too large"):
		response.ErrorAs(w, mt, http.StatusRequestEntityTooLarge, err.Error())
	default:
		response.ErrorAs(w, mt, http.StatusBadRequest, err.Error())
	}
}

// fail maps a service error to its HTTP status.
func fail(w http.ResponseWriter, r *http.Request, mt string, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogNotFound),
		errors.Is(err, services.ErrEngineNotFound),
		errors.Is(err, services.ErrQueryNotFound):
		response.NotFound(w, mt, err.Error())
	case errors.Is(err, services.ErrConflict):
		response.ErrorAs(w, mt, http.StatusConflict, err.Error())
	default:
		logger.WithCtx(r.Context()).Error("request failed", "error", err)
		response.ErrorAs(w, mt, http.StatusInternalServerError, "Internal Server Error")
	}
}
