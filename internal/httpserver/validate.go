package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is a package-level, concurrency-safe validator instance. Field
// names in its errors come from json tags, so namespaces read like the wire.
var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}()

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrorResponse is the error envelope returned for invalid requests.
type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Details []ValidationError `json:"details"`
}

// Decode reads a JSON request body into dst. It enforces a max body size
// and disallows unknown fields, matching agents and admin tooling that are
// built against this exact wire schema.
func Decode(r *http.Request, dst any) error {
	const maxBody = 4 << 20 // 4 MiB: metric/log batches can run large

	body := http.MaxBytesReader(nil, r.Body, maxBody)
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			return fmt.Errorf("request body too large (max 4 MiB)")
		case errors.Is(err, io.EOF):
			return fmt.Errorf("request body is empty")
		default:
			return fmt.Errorf("invalid JSON: %w", err)
		}
	}

	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}

	return nil
}

// Validate runs struct-tag validation on v and returns field-level errors.
func Validate(v any) []ValidationError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []ValidationError{{Field: "", Message: err.Error()}}
	}

	out := make([]ValidationError, 0, len(ve))
	for _, fe := range ve {
		out = append(out, ValidationError{
			Field:   jsonFieldName(fe),
			Message: fieldErrorMessage(fe),
		})
	}
	return out
}

// DecodeAndValidate decodes a JSON body and validates the result. On
// failure it writes the appropriate error response and returns false.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := Decode(r, dst); err != nil {
		RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return false
	}

	if errs := Validate(dst); len(errs) > 0 {
		RespondValidationError(w, errs)
		return false
	}

	return true
}

// RespondValidationError writes a 422 response with field-level validation errors.
func RespondValidationError(w http.ResponseWriter, errs []ValidationError) {
	Respond(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
		Error:   "validation_error",
		Message: "one or more fields failed validation",
		Details: errs,
	})
}

// arrayIndexSegment matches a namespace path segment like "Samples[2]" or
// "Entries[13]", which validator produces for every element of a dive'd
// slice (metricsBatchRequest.Samples, logBatchRequest.Entries — both
// ingest endpoints accept one request per batch, not per sample, so a
// single bad element must be traceable back to its position).
var arrayIndexSegment = regexp.MustCompile(`^(\w+)\[(\d+)\]$`)

// jsonFieldName converts a validator namespace to a dotted, snake_cased,
// json-tag-shaped path, preserving any array index segments so a caller
// can tell "samples[2].value" apart from "samples[0].value" in a batch
// ingest response. The leading struct-name segment is always dropped.
func jsonFieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		ns = ns[idx+1:]
	}

	segments := strings.Split(ns, ".")
	for i, seg := range segments {
		if m := arrayIndexSegment.FindStringSubmatch(seg); m != nil {
			segments[i] = toSnakeCase(m[1]) + "[" + m[2] + "]"
			continue
		}
		segments[i] = toSnakeCase(seg)
	}
	return strings.Join(segments, ".")
}

// fieldErrorMessage returns a human-readable message for a field error,
// scoped to the validator tags this domain's request DTOs actually use:
// required agent/metric/series identifiers, the completed/failed command
// result enum, the int/float sample kind hint, and min/dive on the
// samples and entries batch slices.
func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		if fe.Kind().String() == "slice" {
			return fmt.Sprintf("must contain at least %s element(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind().String() == "slice" {
			return fmt.Sprintf("must contain at most %s element(s)", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "dive":
		// validator also emits the underlying per-element tag (e.g.
		// "required") as its own error for the indexed segment, so this
		// only fires for a dive target with no deeper validatable fields.
		return "contains an invalid element"
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + 32)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
