package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nhle/todoplus/internal/apperr"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    apperr.Code         `json:"code"`
	Message string              `json:"message"`
	Fields  []apperr.FieldError `json:"fields,omitempty"`
}

func statusOf(code apperr.Code) int {
	switch code {
	case apperr.CodeInvalidInput:
		return http.StatusBadRequest
	case apperr.CodeUnauthorized:
		return http.StatusUnauthorized
	case apperr.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeEmpty(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
}

// writeError maps err onto a status and error body. Details of
// unclassified errors are only sent when the server exposes errors.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	detail := errorDetail{Code: apperr.CodeOf(err)}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		detail.Message = appErr.Message
		detail.Fields = appErr.Fields
	} else {
		detail.Message = "internal server error"
	}
	if detail.Code == apperr.CodeInternal || detail.Code == apperr.CodeIntegrity {
		s.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		if s.exposeErrors {
			detail.Message = err.Error()
		}
	}

	writeJSON(w, statusOf(detail.Code), errorBody{Error: detail})
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// readJSON decodes the request body into dst.
func readJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			e := apperr.Invalid("request body exceeds %d bytes", tooLarge.Limit)
			e.Fields = []apperr.FieldError{{Field: "body", Rule: "max"}}
			return e
		}
		e := apperr.Invalid("malformed JSON body")
		e.Err = err
		return e
	}
	return nil
}

// decodeBody reads a bare JSON body into dst and validates it.
func (s *Server) decodeBody(r *http.Request, dst any) error {
	if err := readJSON(r, dst); err != nil {
		return err
	}
	return s.validateStruct(dst)
}

func (s *Server) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating request: %w", err)
	}

	fields := make([]apperr.FieldError, 0, len(verrs))
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		fields = append(fields, apperr.FieldError{Field: field, Rule: fe.Tag()})
		names = append(names, field)
	}
	e := apperr.Invalid("invalid fields: %s", strings.Join(names, ", "))
	e.Fields = fields
	return e
}

// envelope is the body shape of every command except userData.
type envelope[T any] struct {
	Data *T `json:"data"`
}

// decodeData reads a {"data": {...}} body and validates the payload.
func decodeData[T any](s *Server, r *http.Request) (*T, error) {
	var env envelope[T]
	if err := readJSON(r, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		e := apperr.Invalid("data is required")
		e.Fields = []apperr.FieldError{{Field: "data", Rule: "required"}}
		return nil, e
	}
	if err := s.validateStruct(env.Data); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// requiredDate is parseDate for a key that must be present. An explicit
// null or "" still clears the date.
func requiredDate(field string, raw json.RawMessage, loc *time.Location) (*time.Time, error) {
	if len(raw) == 0 {
		e := apperr.Invalid("%s is required", field)
		e.Fields = []apperr.FieldError{{Field: field, Rule: "required"}}
		return nil, e
	}
	return parseDate(field, raw, loc)
}

var dateLayouts = []string{
	"01/02/2006 3:04 PM",
	"01/02/2006 15:04",
	"01/02/2006",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	time.DateOnly,
}

// parseDate accepts null, an RFC 3339 string, a few zone-less layouts
// interpreted in loc, or epoch milliseconds. A nil result clears the date.
func parseDate(field string, raw json.RawMessage, loc *time.Location) (*time.Time, error) {
	invalid := func() error {
		e := apperr.Invalid("%s is not a valid date", field)
		e.Fields = []apperr.FieldError{{Field: field, Rule: "datetime"}}
		return e
	}

	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	var millis int64
	if err := json.Unmarshal(raw, &millis); err == nil {
		t := time.UnixMilli(millis).UTC()
		return &t, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, invalid()
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return &t, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &t, nil
		}
	}
	return nil, invalid()
}
