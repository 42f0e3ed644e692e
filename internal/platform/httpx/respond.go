package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

type errorEnvelope struct {
	Error *Error `json:"error"`
}

// JSON writes data as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// NoContent writes an empty 204 response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// RespondError writes err as a JSON error envelope. Non-API errors are
// logged and reported as INTERNAL_SERVER_ERROR.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	apiErr := AsError(err)
	if apiErr.Code == CodeInternal && logger != nil {
		logger.Error("internal error", slog.Any("error", err))
	}
	JSON(w, StatusFor(apiErr.Code), errorEnvelope{Error: apiErr})
}

// DecodeJSON decodes the request body into target, rejecting unknown fields.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return BadRequest("malformed request body: %v", err)
	}
	return nil
}

// Validate runs struct validation and translates violations into a
// BAD_REQUEST error with one entry per failing field.
func Validate(v *validator.Validate, target any) error {
	err := v.Struct(target)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return BadRequest("invalid request")
	}
	apiErr := &Error{Code: CodeBadRequest, Message: "validation failed"}
	for _, fe := range verrs {
		// Namespace is Struct.Field[.Nested]; drop the struct name.
		path := fe.Namespace()
		if i := strings.Index(path, "."); i >= 0 {
			path = path[i+1:]
		}
		apiErr.Fields = append(apiErr.Fields, FieldError{
			Path:    path,
			Message: "failed on the '" + fe.Tag() + "' rule",
		})
	}
	return apiErr
}
