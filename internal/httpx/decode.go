package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ariefcatur/go-shop-checkout/internal/schema"
)

const maxBodyBytes = 1 << 20

// readBody reads a size-limited body; oversized bodies become field errors.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return nil, &schema.Error{Fields: schema.FieldErrors{"body": {"is too large"}}}
	}
	return body, err
}

// decodeValid validates body against s and then decodes it into out.
func decodeValid(w http.ResponseWriter, r *http.Request, s *schema.Schema, out any) error {
	body, err := readBody(w, r, maxBodyBytes)
	if err != nil {
		return err
	}
	if err := s.ValidateBytes(body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return decodeError(err)
	}
	return nil
}

// decodeError turns a body that passed the schema but does not fit the Go
// types (1.0 or 1e30 for an int64) into a field error.
func decodeError(err error) error {
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) {
		field := ute.Field
		if field == "" {
			field = "body"
		}
		return &schema.Error{Fields: schema.FieldErrors{field: {"must be a whole number in range"}}}
	}
	return &schema.Error{Fields: schema.FieldErrors{"body": {"is not valid JSON"}}}
}
