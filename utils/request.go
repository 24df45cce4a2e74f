package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// maxBodyBytes caps request bodies read by DecodeJSONRequest.
const maxBodyBytes = 1 << 20

var validate = validator.New()

// DecodeJSONRequest decodes JSON from HTTP request body into the provided interface.
// Usage: var data MyType; if err := DecodeJSONRequest(r, &data); err != nil { ... }
func DecodeJSONRequest(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(v)
}

// DecodeAndValidate decodes the body into v and runs its validate tags.
// The returned error text is safe to show to the user.
func DecodeAndValidate(r *http.Request, v interface{}) error {
	if err := DecodeJSONRequest(r, v); err != nil {
		return fmt.Errorf("invalid request body")
	}
	return ValidateStruct(v)
}

// ValidateStruct runs validate tags on v and flattens the failures into one
// readable message.
func ValidateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
