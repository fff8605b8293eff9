package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"casebook/internal/core"
	"casebook/internal/log"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body. A nil body writes
// only the status line and headers.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// ValidationErrorResponse creates a 422 naming the offending field.
func ValidationErrorResponse(v *core.ValidationError) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(http.StatusUnprocessableEntity).
		Body(errorBody{Error: v.Error(), Field: v.Field})
}

// ServiceUnavailableError creates a 503 with a short retry hint.
func ServiceUnavailableError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, message).Header("Retry-After", "5")
}

// errorFor maps an error returned by the case layer to a response and logs
// the unexpected ones.
func errorFor(ctx context.Context, err error) *JSONResponseBuilder {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		return ValidationErrorResponse(verr)
	case errors.Is(err, errBadBody):
		return BadRequestError(err.Error())
	case errors.Is(err, core.ErrNoOwner):
		return UnauthorizedError("missing " + OwnerHeader + " header")
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError("case not found")
	case errors.Is(err, core.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		log.FromContext(ctx).WarnContext(ctx, "Case store unavailable",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorType(err))
		return ServiceUnavailableError("case store unavailable")
	default:
		log.FromContext(ctx).ErrorContext(ctx, "Unexpected error",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorType(err))
		return InternalServerError("internal error")
	}
}
