// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides the HTTP handlers and the router of the accounts API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/olegiv/accounts-api/internal/apperr"
	"github.com/olegiv/accounts-api/internal/model"
)

// StatusSuccess is the status field of every successful response.
const StatusSuccess = "success"

// maxJSONBytes bounds JSON request bodies.
const maxJSONBytes = 1 << 20

// Messages for malformed requests.
const (
	MsgInvalidJSON  = "Invalid JSON body"
	MsgBodyTooLarge = "Request body too large"
)

// userData wraps a single user.
type userData struct {
	User *model.User `json:"user"`
}

// sessionResponse carries a freshly issued token.
type sessionResponse struct {
	Status string   `json:"status"`
	Token  string   `json:"token"`
	Data   userData `json:"data"`
}

// userResponse carries a user without a token.
type userResponse struct {
	Status string   `json:"status"`
	Data   userData `json:"data"`
}

type usersData struct {
	Users []model.User `json:"users"`
}

// usersResponse is a page of users.
type usersResponse struct {
	Status  string    `json:"status"`
	Results int       `json:"results"`
	Total   int64     `json:"total"`
	Page    int       `json:"page"`
	Data    usersData `json:"data"`
}

// statusResponse is a bare acknowledgement.
type statusResponse struct {
	Status string `json:"status"`
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a JSON request body into dst. An empty body leaves dst
// untouched so that missing fields are reported by the service.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation(MsgBodyTooLarge)
		}
		return apperr.Wrap(apperr.KindValidation, MsgInvalidJSON, err)
	}
	return nil
}
