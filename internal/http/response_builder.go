// Package http serves the pantry JSON API.
//
// This file holds the fluent JSON response builder and the mapping from
// domain errors to status codes.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"pantry/internal/core"
	"pantry/internal/middleware/trace"
	"pantry/internal/recognition"
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeInvalidRequest = "invalid_request"
	CodeNotFound       = "not_found"
	CodeRemoteWrite    = "remote_write_failed"
	CodeUpstream       = "upstream_failed"
	CodeNotConfigured  = "not_configured"
	CodeUnavailable    = "unavailable"
	CodeTimeout        = "timeout"
	CodeRateLimited    = "rate_limited"
	CodeInternal       = "internal_error"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

// JSONResponseBuilder provides a fluent API for JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a builder with a 200 status.
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

// Body sets the value encoded as the response body. A nil body writes no
// content.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// StatusCode returns the status that Write will send.
func (b *JSONResponseBuilder) StatusCode() int {
	return b.statusCode
}

// Write sends the response. Error bodies pick up the request ID from ctx.
func (b *JSONResponseBuilder) Write(ctx context.Context, w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if eb, ok := b.body.(ErrorBody); ok && eb.RequestID == "" {
		eb.RequestID = trace.GetRequestID(ctx)
		b.body = eb
	}

	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

// ErrorResponse creates an error response with the given status and code.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(ErrorBody{Error: message, Code: code})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, CodeInvalidRequest, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, CodeNotFound, message)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, CodeInternal, message)
}

// ErrorFromDomain maps a service error to a response. Validation errors are
// 400, missing records 404, store write failures 502 and everything
// unrecognized 500.
func ErrorFromDomain(err error) *JSONResponseBuilder {
	switch {
	case errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrInvalidItem),
		errors.Is(err, core.ErrUnknownOpKind):
		return BadRequestError(err.Error())
	case errors.Is(err, core.ErrItemNotFound),
		errors.Is(err, core.ErrBatchNotFound):
		return NotFoundError(err.Error())
	case errors.Is(err, core.ErrRemoteWrite):
		return ErrorResponse(http.StatusBadGateway, CodeRemoteWrite, err.Error())
	case errors.Is(err, recognition.ErrEndpointFailed):
		return ErrorResponse(http.StatusBadGateway, CodeUpstream, err.Error())
	case errors.Is(err, recognition.ErrEndpointNotConfigured):
		return ErrorResponse(http.StatusServiceUnavailable, CodeNotConfigured, err.Error())
	case errors.Is(err, core.ErrEngineStopped):
		return ErrorResponse(http.StatusServiceUnavailable, CodeUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorResponse(http.StatusGatewayTimeout, CodeTimeout, "request timed out")
	default:
		return InternalServerError("internal error")
	}
}
