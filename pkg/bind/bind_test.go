package bind_test

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/datajunction/djqs/config"
	"github.com/datajunction/djqs/pkg/bind"
)

type payload struct {
	Name  string `json:"catalog_name" validate:"required"`
	Async bool   `json:"async_"`
}

func request(body []byte, contentType string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/queries/", bytes.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	return r
}

func TestBodyJSON(t *testing.T) {
	var p payload
	errs, err := bind.Body(httptest.NewRecorder(), request([]byte(`{"catalog_name":"c","async_":true}`), "application/json; charset=utf-8"), &p)
	require.NoError(t, err)
	assert.Nil(t, errs)
	assert.Equal(t, payload{Name: "c", Async: true}, p)
}

func TestBodyMsgpackUsesJSONNames(t *testing.T) {
	body, err := msgpack.Marshal(map[string]any{"catalog_name": "c", "async_": true})
	require.NoError(t, err)

	var p payload
	errs, err := bind.Body(httptest.NewRecorder(), request(body, "application/msgpack"), &p)
	require.NoError(t, err)
	assert.Nil(t, errs)
	assert.Equal(t, payload{Name: "c", Async: true}, p)
}

func TestBodyContentTypeErrors(t *testing.T) {
	var p payload

	_, err := bind.Body(httptest.NewRecorder(), request([]byte(`{}`), ""), &p)
	assert.ErrorIs(t, err, bind.ErrNoContentType)
	assert.EqualError(t, err, "Content type must be specified")

	_, err = bind.Body(httptest.NewRecorder(), request([]byte(`{}`), "application/protobuf"), &p)
	var unsupported *bind.UnsupportedTypeError
	require.True(t, errors.As(err, &unsupported))
	assert.EqualError(t, err, "Content type not accepted: application/protobuf")
}

func TestBodyValidation(t *testing.T) {
	var p payload
	errs, err := bind.Body(httptest.NewRecorder(), request([]byte(`{}`), "application/json"), &p)
	require.NoError(t, err)
	assert.Contains(t, errs, "catalog_name")
}

func TestBodyMalformed(t *testing.T) {
	var p payload
	_, err := bind.Body(httptest.NewRecorder(), request([]byte(`{`), "application/json"), &p)
	assert.ErrorContains(t, err, "invalid application/json body")
}

func TestBodyTooLarge(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)
	config.Set("MAX_BODY_BYTES", "16")

	var p payload
	body := `{"catalog_name":"` + strings.Repeat("x", 64) + `"}`
	_, err := bind.Body(httptest.NewRecorder(), request([]byte(body), "application/json"), &p)
	assert.ErrorContains(t, err, "request body too large (max 16 bytes)")
}
