// Package bind decodes and validates an HTTP request body into a struct.
// JSON and msgpack bodies are accepted, selected by Content-Type.
package bind

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/datajunction/djqs/config"
	"github.com/datajunction/djqs/pkg/validate"
)

// Media types understood by Body.
const (
	MediaJSON    = "application/json"
	MediaMsgpack = "application/msgpack"
)

// ErrNoContentType is returned when the request has no Content-Type header.
var ErrNoContentType = errors.New("Content type must be specified")

// UnsupportedTypeError is returned for a Content-Type other than JSON or
// msgpack.
type UnsupportedTypeError struct {
	MediaType string
}

func (e *UnsupportedTypeError) Error() string {
	return "Content type not accepted: " + e.MediaType
}

// MediaType returns the bare media type of the request body, lower-cased and
// without parameters.
func MediaType(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.Header.Get("Content-Type"))
	if raw == "" {
		return "", ErrNoContentType
	}
	mt, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return "", &UnsupportedTypeError{MediaType: raw}
	}

	switch mt {
	case MediaJSON, MediaMsgpack:
		return mt, nil
	case "application/x-msgpack", "application/vnd.msgpack":
		return MediaMsgpack, nil
	default:
		return "", &UnsupportedTypeError{MediaType: mt}
	}
}

// Body decodes r.Body according to its Content-Type into dest and runs
// validation. The body is capped at MAX_BODY_BYTES.
// Returns (errs, nil) when there are validation failures.
// Returns (nil, err) for a missing or unsupported Content-Type, a malformed
// body, or a body that is too large.
func Body(w http.ResponseWriter, r *http.Request, dest any) (errs map[string]string, err error) {
	mt, err := MediaType(r)
	if err != nil {
		return nil, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxBodyBytes())

	switch mt {
	case MediaMsgpack:
		dec := msgpack.NewDecoder(r.Body)
		dec.SetCustomStructTag("json")
		err = dec.Decode(dest)
	default:
		err = json.NewDecoder(r.Body).Decode(dest)
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("request body too large (max %d bytes)", maxErr.Limit)
		}
		return nil, fmt.Errorf("invalid %s body: %w", mt, err)
	}

	errs = validate.Struct(dest)
	if validate.HasErrors(errs) {
		return errs, nil
	}

	return nil, nil
}
