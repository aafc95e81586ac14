// Package response writes API responses in the media type the client asked
// for. Error bodies always have the shape {"detail": "..."}.
package response

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/datajunction/djqs/pkg/logger"
)

// Media types the API can produce, in order of preference.
const (
	MediaJSON    = "application/json"
	MediaMsgpack = "application/msgpack"
)

// ErrorBody is the body of every error response.
type ErrorBody struct {
	Detail string            `json:"detail"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Write encodes body as mediaType with status. Unknown media types fall back
// to JSON.
func Write(w http.ResponseWriter, mediaType string, status int, body any) {
	if mediaType == MediaMsgpack {
		data, err := encodeMsgpack(body)
		if err != nil {
			logger.Error("response: msgpack encode", "error", err)
			writeJSON(w, http.StatusInternalServerError, ErrorBody{Detail: "Internal Server Error"})
			return
		}
		w.Header().Set("Content-Type", MediaMsgpack)
		w.WriteHeader(status)
		w.Write(data) //nolint:errcheck
		return
	}
	writeJSON(w, status, body)
}

func encodeMsgpack(body any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", MediaJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

// Success sends a 200 JSON response with data.
func Success(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, data)
}

// Created sends a 201 JSON response with data.
func Created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, data)
}

// Error sends a JSON error response.
func Error(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorBody{Detail: detail})
}

// ErrorAs sends an error response encoded as mediaType.
func ErrorAs(w http.ResponseWriter, mediaType string, status int, detail string) {
	Write(w, mediaType, status, ErrorBody{Detail: detail})
}

// ValidationError sends a 422 with a field-level error map.
func ValidationError(w http.ResponseWriter, mediaType string, errs map[string]string) {
	Write(w, mediaType, http.StatusUnprocessableEntity, ErrorBody{
		Detail: "Validation failed",
		Errors: errs,
	})
}

// NotFound sends a 404.
func NotFound(w http.ResponseWriter, mediaType, detail string) {
	ErrorAs(w, mediaType, http.StatusNotFound, detail)
}
