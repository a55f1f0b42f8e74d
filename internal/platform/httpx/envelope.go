// Package httpx writes the JSON envelope shared by every endpoint:
// {"success": bool, "message": string, "data": any, "error": string}.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/hometech/api/internal/platform/requestctx"
)

// Envelope is the response body of every API call.
type Envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data"`
	Error     string `json:"error,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	TraceID   string `json:"traceId,omitempty"`
}

// Error describes a failed call. Code is a stable machine readable token, Message is shown to users.
type Error struct {
	Code    string
	Message string
	Status  int
	Details any
}

// NewError constructs an Error, defaulting the status to 500.
func NewError(code, message string, status int) Error {
	if status < 400 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    sanitize(code, 80),
		Message: sanitize(message, 512),
		Status:  status,
	}
}

// WithDetails attaches a JSON-serialisable payload returned in the data field.
func (e Error) WithDetails(details any) Error {
	e.Details = details
	return e
}

// WriteOK writes a successful envelope with status 200.
func WriteOK(w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

// WriteCreated writes a successful envelope with status 201.
func WriteCreated(w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

// WriteError writes a failed envelope. A failure is never reported with a 2xx status.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status < 400 {
		status = http.StatusInternalServerError
	}
	WriteJSON(w, status, Envelope{
		Success:   false,
		Message:   err.Message,
		Data:      err.Details,
		Error:     err.Code,
		RequestID: sanitize(middleware.GetReqID(ctx), 80),
		TraceID:   sanitize(requestctx.TraceID(ctx), 64),
	})
}

// WriteJSON encodes body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func sanitize(value string, limit int) string {
	if limit <= 0 {
		limit = 256
	}
	value = strings.TrimSpace(strings.NewReplacer("\n", " ", "\r", " ").Replace(value))
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
