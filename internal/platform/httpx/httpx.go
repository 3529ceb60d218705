// Package httpx holds the JSON request/response helpers shared by module handlers.
package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Respond writes body as JSON with the given status.
func Respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// Error writes err using its apperror kind to pick the status.
func Error(w http.ResponseWriter, err error) {
	appErr, ok := apperror.As(err)
	if !ok {
		appErr = apperror.Internal(err, "an internal error occurred")
	}
	body := map[string]interface{}{
		"code":    appErr.Kind,
		"message": appErr.Message,
	}
	if appErr.Kind == apperror.KindInternal {
		body["message"] = "an internal error occurred"
	}
	if appErr.Reason != "" {
		body["reason"] = appErr.Reason
	}
	if appErr.Details != nil {
		body["details"] = appErr.Details
	}
	Respond(w, appErr.HTTPStatus(), map[string]interface{}{"error": body})
}

// Decode reads a JSON body into dst and runs struct-tag validation.
func Decode(r *http.Request, dst interface{}) error {
	return decode(r, dst, false)
}

// DecodeOptional is Decode for endpoints where the body may be omitted.
func DecodeOptional(r *http.Request, dst interface{}) error {
	return decode(r, dst, true)
}

func decode(r *http.Request, dst interface{}, optional bool) error {
	if r.Body == nil {
		if optional {
			return nil
		}
		return apperror.Validation("request body is required")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			if optional {
				return nil
			}
			return apperror.Validation("request body is required")
		}
		return apperror.Validation("malformed JSON: %v", err)
	}
	return Validate(dst)
}

// DecodePayload unmarshals a JSON payload embedded in another document. An
// empty payload leaves dst untouched. Validation is left to the caller so
// fields taken from the path can be filled in first.
func DecodePayload(raw []byte, dst interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.Validation("malformed payload: %v", err)
	}
	return nil
}

// Validate runs struct-tag validation on dst.
func Validate(dst interface{}) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		names := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
			names = append(names, fe.Field())
		}
		return apperror.Validation("invalid fields: %s", strings.Join(names, ", ")).WithDetails(fields)
	}
	return apperror.Validation("%v", err)
}

// UUIDParam parses a path or query value as a UUID.
func UUIDParam(name, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, apperror.Field(name, fmt.Sprintf("%q is not a valid id", value))
	}
	return id, nil
}

// IntQuery reads an optional non-negative integer query parameter.
func IntQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperror.Field(name, "must be a non-negative integer")
	}
	return n, nil
}

// Page reads the limit and offset query parameters.
func Page(r *http.Request) (limit, offset int, err error) {
	if limit, err = IntQuery(r, "limit", 0); err != nil {
		return 0, 0, err
	}
	if offset, err = IntQuery(r, "offset", 0); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}
