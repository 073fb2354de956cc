// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package apperr

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// DetailsFunc extracts a persistence error code and metadata from err's chain.
type DetailsFunc func(err error) (code string, meta map[string]any, ok bool)

// Responder is the only place where errors are written to the wire.
type Responder struct {
	// Production hides stack traces, causes and driver details.
	Production bool
	// Details is optional; it enriches non-production responses.
	Details DetailsFunc
	Logger  *slog.Logger
}

// Body is the JSON shape of every error response.
type Body struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Error   string         `json:"error,omitempty"`
	Stack   string         `json:"stack,omitempty"`
	Code    string         `json:"code,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// NewResponder creates a responder; a nil logger falls back to slog.Default().
func NewResponder(production bool, details DetailsFunc, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{Production: production, Details: details, Logger: logger}
}

// Write serializes err as {status, message} with the status code of its kind.
func (rs *Responder) Write(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := As(err)
	if !ok {
		e = Internal(err)
	}
	status := e.Status()

	body := Body{
		Status:  statusLabel(status),
		Message: e.Message,
	}
	if !e.Operational() {
		body.Message = InternalMessage
	}

	if !rs.Production {
		body.Stack = e.Stack()
		if e.Err != nil {
			body.Error = e.Err.Error()
		}
		if rs.Details != nil {
			if code, meta, found := rs.Details(err); found {
				body.Code = code
				body.Meta = meta
			}
		}
	}

	rs.log(r, e, status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (rs *Responder) log(r *http.Request, e *Error, status int) {
	attrs := []any{
		"status", status,
		"kind", e.Kind.String(),
		"method", r.Method,
		"path", r.URL.Path,
	}
	if e.Err != nil {
		attrs = append(attrs, "error", e.Err)
	}
	if e.Operational() {
		rs.Logger.Debug(e.Message, attrs...)
		return
	}
	rs.Logger.Error("request failed", attrs...)
}

// statusLabel is "fail" for client errors and "error" for server errors.
func statusLabel(status int) string {
	if status >= 400 && status < 500 {
		return "fail"
	}
	return "error"
}
