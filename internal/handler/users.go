// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/accounts-api/internal/apperr"
	"github.com/olegiv/accounts-api/internal/imaging"
	"github.com/olegiv/accounts-api/internal/middleware"
	"github.com/olegiv/accounts-api/internal/service"
)

// Messages for profile requests.
const (
	MsgInvalidUserID = "Invalid user ID"
	MsgInvalidPage   = "page and limit must be positive integers"
	MsgNotAnImage    = "Not an image! Please upload only images."
	MsgPhotoTooLarge = "Photo too large. Please upload an image under 5 MB."
)

// passwordFields are rejected by UpdateMe.
var passwordFields = []string{"password", "passwordConfirm", "password_confirm"}

// UsersHandler handles profile self-service and the admin user listing.
type UsersHandler struct {
	accounts *service.Accounts
	photos   *imaging.Processor
	errs     middleware.ErrorWriter
	logger   *slog.Logger
}

// NewUsersHandler creates a new UsersHandler.
func NewUsersHandler(accounts *service.Accounts, photos *imaging.Processor, errs middleware.ErrorWriter, logger *slog.Logger) *UsersHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UsersHandler{
		accounts: accounts,
		photos:   photos,
		errs:     errs,
		logger:   logger,
	}
}

// Me handles GET /me.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userResponse{
		Status: StatusSuccess,
		Data:   userData{User: middleware.GetUser(r)},
	})
}

// UpdateMe handles PATCH /updateMe. It accepts JSON, or a multipart form
// whose optional "photo" part is an image upload.
func (h *UsersHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	var (
		in       service.UpdateMeInput
		uploaded string
		err      error
	)
	if isMultipart(r) {
		in, uploaded, err = h.parseMultipartUpdate(w, r, user.ID)
	} else {
		in, err = parseJSONUpdate(w, r)
	}
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	updated, err := h.accounts.UpdateMe(r.Context(), user, in)
	if err != nil {
		if uploaded != "" {
			h.removePhoto(user.ID, uploaded)
		}
		h.errs.Write(w, r, err)
		return
	}

	if user.Photo != updated.Photo {
		h.removePhoto(user.ID, user.Photo)
	}

	writeJSON(w, http.StatusOK, userResponse{
		Status: StatusSuccess,
		Data:   userData{User: updated},
	})
}

// DeleteMe handles DELETE /deleteMe.
func (h *UsersHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	h.errs.Write(w, r, h.accounts.DeleteMe(r.Context(), middleware.GetUser(r)))
}

// List handles GET / for admins. Optional page and limit query parameters
// select the page.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", service.DefaultPageSize)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	users, total, err := h.accounts.ListUsers(r.Context(), page, limit)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, usersResponse{
		Status:  StatusSuccess,
		Results: len(users),
		Total:   total,
		Page:    page,
		Data:    usersData{Users: users},
	})
}

// Get handles GET /{id} for admins.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		h.errs.Write(w, r, apperr.Validation(MsgInvalidUserID))
		return
	}

	user, err := h.accounts.GetUser(r.Context(), id)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{
		Status: StatusSuccess,
		Data:   userData{User: user},
	})
}

func (h *UsersHandler) removePhoto(userID int64, filename string) {
	if h.photos == nil {
		return
	}
	if err := h.photos.RemoveUserPhoto(userID, filename); err != nil {
		h.logger.Warn("failed to remove photo", "photo", filename, "error", err)
	}
}

// parseJSONUpdate picks name, email and photo out of a JSON body and flags
// any password field.
func parseJSONUpdate(w http.ResponseWriter, r *http.Request) (service.UpdateMeInput, error) {
	var in service.UpdateMeInput

	fields := map[string]json.RawMessage{}
	if err := decodeJSON(w, r, &fields); err != nil {
		return in, err
	}

	for _, key := range passwordFields {
		if _, ok := fields[key]; ok {
			in.PasswordGiven = true
			return in, nil
		}
	}

	var err error
	if in.Name, err = stringField(fields, "name"); err != nil {
		return in, err
	}
	if in.Email, err = stringField(fields, "email"); err != nil {
		return in, err
	}
	photo, err := stringField(fields, "photo")
	if err != nil {
		return in, err
	}
	if photo != nil {
		in.Photo = *photo
	}
	return in, nil
}

// stringField returns the string value of key, or nil when key is absent.
func stringField(fields map[string]json.RawMessage, key string) (*string, error) {
	raw, ok := fields[key]
	if !ok {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, apperr.Validation(key + " must be a string")
	}
	return &s, nil
}

// parseMultipartUpdate reads form fields and stores an uploaded photo. The
// returned file name is empty when no photo was sent.
func (h *UsersHandler) parseMultipartUpdate(w http.ResponseWriter, r *http.Request, userID int64) (service.UpdateMeInput, string, error) {
	var in service.UpdateMeInput

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxPhotoBytes+maxJSONBytes)
	if err := r.ParseMultipartForm(imaging.MaxPhotoBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return in, "", apperr.Validation(MsgPhotoTooLarge)
		}
		return in, "", apperr.Wrap(apperr.KindValidation, "Invalid form data", err)
	}

	values := r.MultipartForm.Value
	for _, key := range passwordFields {
		if _, ok := values[key]; ok {
			in.PasswordGiven = true
			return in, "", nil
		}
	}
	if v, ok := values["name"]; ok && len(v) > 0 {
		in.Name = &v[0]
	}
	if v, ok := values["email"]; ok && len(v) > 0 {
		in.Email = &v[0]
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return in, "", nil
		}
		return in, "", apperr.Wrap(apperr.KindValidation, "Invalid photo upload", err)
	}
	defer func() { _ = file.Close() }()

	if h.photos == nil {
		return in, "", apperr.Validation("Photo uploads are disabled")
	}

	filename, err := h.photos.ProcessUserPhoto(file, userID)
	if err != nil {
		switch {
		case errors.Is(err, imaging.ErrNotAnImage):
			return in, "", apperr.Wrap(apperr.KindValidation, MsgNotAnImage, err)
		case errors.Is(err, imaging.ErrTooLarge):
			return in, "", apperr.Validation(MsgPhotoTooLarge)
		default:
			return in, "", apperr.Internal(err)
		}
	}

	in.Uploaded = filename
	return in, filename, nil
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// queryInt parses a positive integer query parameter.
func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, apperr.Validation(MsgInvalidPage)
	}
	return n, nil
}
