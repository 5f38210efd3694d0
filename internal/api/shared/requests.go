package shared

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Shared validator instance; validator.Validate is safe for concurrent use.
var validate = validator.New()

// DecodeJSON decodes the request body into the given struct.
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode request body: %w", err)
	}
	return nil
}

// ValidateRequest validates a request struct. Types with their own Validate
// method use it; everything else is checked against its validate tags.
func ValidateRequest(v any) error {
	if validator, ok := v.(interface{ Validate() error }); ok {
		return validator.Validate()
	}
	return validate.Struct(v)
}
