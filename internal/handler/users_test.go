// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/accounts-api/internal/middleware"
	"github.com/olegiv/accounts-api/internal/model"
	"github.com/olegiv/accounts-api/internal/service"
)

type userBody struct {
	Status string `json:"status"`
	Data   struct {
		User model.User `json:"user"`
	} `json:"data"`
}

func decodeUser(t *testing.T, rec *httptest.ResponseRecorder) model.User {
	t.Helper()
	var body userBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, StatusSuccess, body.Status)
	return body.Data.User
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "Ann", "ann@x.com", "secret123", "")

	rec := env.do(t, http.MethodGet, apiPrefix+"/me", nil, token)

	require.Equal(t, http.StatusOK, rec.Code)
	user := decodeUser(t, rec)
	assert.Equal(t, "ann@x.com", user.Email)
	assert.Empty(t, user.PasswordHash)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestMeWithoutToken(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"no token", "", service.MsgNotLoggedIn},
		{"malformed header", "Token abc", middleware.MsgMalformedHeader},
		{"garbage token", "Bearer not-a-jwt", service.MsgInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, apiPrefix+"/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := env.serve(req)

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, "fail", body.Status)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}

func TestUpdateMeJSON(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "Ann", "ann@x.com", "secret123", "")

	rec := env.do(t, http.MethodPatch, apiPrefix+"/updateMe", map[string]any{
		"name":  "Ann <b>Lee</b>",
		"email": "Ann.Lee@X.com",
		"role":  "admin",
	}, token)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	user := decodeUser(t, rec)
	assert.Equal(t, "Ann Lee", user.Name)
	assert.Equal(t, "ann.lee@x.com", user.Email)
	assert.Equal(t, model.RoleUser, user.Role, "role must not change through updateMe")

	rec = env.do(t, http.MethodGet, apiPrefix+"/me", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ann Lee", decodeUser(t, rec).Name)
}

func TestUpdateMeRejectsPasswordFields(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "Ann", "ann@x.com", "secret123", "")

	for _, field := range passwordFields {
		t.Run(field, func(t *testing.T) {
			rec := env.do(t, http.MethodPatch, apiPrefix+"/updateMe", map[string]any{
				"name": "Eve",
				field:  "hijack123",
			}, token)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, service.MsgNotForPasswords, decodeError(t, rec).Message)
		})
	}

	rec := env.do(t, http.MethodGet, apiPrefix+"/me", nil, token)
	assert.Equal(t, "Ann", decodeUser(t, rec).Name)
}

func TestUpdateMeRejectsNonStringField(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "Ann", "ann@x.com", "secret123", "")

	rec := env.do(t, http.MethodPatch, apiPrefix+"/updateMe", map[string]any{"name": 42}, token)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name must be a string", decodeError(t, rec).Message)
}

// pngBytes returns a small encoded PNG.
func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: 120, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, fields map[string]string, photo []byte, token string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if photo != nil {
		part, err := mw.CreateFormFile("photo", "me.png")
		require.NoError(t, err)
		_, err = part.Write(photo)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPatch, apiPrefix+"/updateMe", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestUpdateMePhotoUpload(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "Ann", "ann@x.com", "secret123", "")

	rec := env.serve(multipartRequest(t, map[string]string{"name": "Ann Photo"}, pngBytes(t), token))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	user := decodeUser(t, rec)
	assert.Equal(t, "Ann Photo", user.Name)
	assert.True(t, strings.HasPrefix(user.Photo, "user-"+strconv.FormatInt(user.ID, 10)+"-"), user.Photo)
	assert.True(t, strings.HasSuffix(user.Photo, ".jpeg"), user.Photo)

	first := filepath.Join(env.photos.PhotoDir(), user.Photo)
	assert.FileExists(t, first)

	// Served under /img/users with caching headers
	rec = env.do(t, http.MethodGet, RouteUserPhotos+"/"+user.Photo, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=86400", rec.Header().Get("Cache-Control"))

	// A second upload replaces the first file
	rec = env.serve(multipartRequest(t, nil, pngBytes(t), token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := decodeUser(t, rec)
	assert.NotEqual(t, user.Photo, second.Photo)
	assert.FileExists(t, filepath.Join(env.photos.PhotoDir(), second.Photo))
	_, err := os.Stat(first)
	assert.True(t, os.IsNotExist(err), "old photo should be removed")
}

func TestPhotoReferenceCannotTargetAnotherUser(t *testing.T) {
	env := newTestEnv(t)
	bobToken := env.signup(t, "Bob", "bob@x.com", "secret123", "")
	eveToken := env.signup(t, "Eve", "eve@x.com", "secret123", "")

	rec := env.serve(multipartRequest(t, nil, pngBytes(t), bobToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	bobPhoto := filepath.Join(env.photos.PhotoDir(), decodeUser(t, rec).Photo)
	require.FileExists(t, bobPhoto)

	t.Run("updateMe", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, apiPrefix+"/updateMe",
			map[string]any{"photo": filepath.Base(bobPhoto)}, eveToken)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, service.MsgPhotoUploadOnly, decodeError(t, rec).Message)
	})

	t.Run("signup", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, apiPrefix+"/signup", map[string]string{
			"name":             "Mallory",
			"email":            "mallory@x.com",
			"password":         "secret123",
			"password_confirm": "secret123",
			"photo":            filepath.Base(bobPhoto),
		}, "")

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, service.MsgPhotoUploadOnly, decodeError(t, rec).Message)
	})

	// Eve's own upload replaces only her photo.
	rec = env.serve(multipartRequest(t, nil, pngBytes(t), eveToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.FileExists(t, bobPhoto)
}

func TestUpdateMeResetToDefaultRemovesUpload(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "Ann", "ann@x.com", "secret123", "")

	rec := env.serve(multipartRequest(t, nil, pngBytes(t), token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	uploaded := filepath.Join(env.photos.PhotoDir(), decodeUser(t, rec).Photo)

	rec = env.do(t, http.MethodPatch, apiPrefix+"/updateMe", map[string]any{"photo": model.DefaultPhoto}, token)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.DefaultPhoto, decodeUser(t, rec).Photo)
	_, err := os.Stat(uploaded)
	assert.True(t, os.IsNotExist(err), "replaced upload should be removed")
}

func TestUpdateMePhotoNotAnImage(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "Ann", "ann@x.com", "secret123", "")

	rec := env.serve(multipartRequest(t, nil, []byte("plain text, not pixels"), token))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MsgNotAnImage, decodeError(t, rec).Message)

	entries, _ := os.ReadDir(env.photos.PhotoDir())
	assert.Empty(t, entries)
}

func TestUpdateMeMultipartPasswordField(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "Ann", "ann@x.com", "secret123", "")

	rec := env.serve(multipartRequest(t, map[string]string{"password": "x"}, pngBytes(t), token))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.MsgNotForPasswords, decodeError(t, rec).Message)
}

func TestPhotoDirectoryListingHidden(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, RouteUserPhotos+"/", nil, "")

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	userToken := env.signup(t, "Ann", "ann@x.com", "secret123", "")
	adminToken := env.signup(t, "Root", "root@x.com", "secret123", "admin")
	env.signup(t, "Bob", "bob@x.com", "secret123", "lead_guide")

	t.Run("non-admin is forbidden", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, apiPrefix, nil, userToken)
		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, middleware.MsgForbidden, decodeError(t, rec).Message)

		rec = env.do(t, http.MethodGet, apiPrefix+"/1", nil, userToken)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("anonymous is unauthenticated", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, apiPrefix+"/1", nil, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("list", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, apiPrefix, nil, adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var body struct {
			Status  string `json:"status"`
			Results int    `json:"results"`
			Total   int64  `json:"total"`
			Data    struct {
				Users []model.User `json:"users"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, StatusSuccess, body.Status)
		assert.Equal(t, 3, body.Results)
		assert.Equal(t, int64(3), body.Total)
		require.Len(t, body.Data.Users, 3)
		assert.NotContains(t, rec.Body.String(), "$2a$")
	})

	t.Run("list paginated", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, apiPrefix+"?page=2&limit=2", nil, adminToken)
		require.Equal(t, http.StatusOK, rec.Code)

		var body usersResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 1, body.Results)
		assert.Equal(t, int64(3), body.Total)
		assert.Equal(t, 2, body.Page)
	})

	t.Run("list bad page", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, apiPrefix+"?page=zero", nil, adminToken)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, MsgInvalidPage, decodeError(t, rec).Message)
	})

	t.Run("list page out of range", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, apiPrefix+"?page=9223372036854775807&limit=100", nil, adminToken)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, service.MsgPageOutOfRange, decodeError(t, rec).Message)
	})

	t.Run("get", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, apiPrefix+"/1", nil, adminToken)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ann@x.com", decodeUser(t, rec).Email)
	})

	t.Run("get missing", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, apiPrefix+"/999", nil, adminToken)
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, service.MsgNoUser, decodeError(t, rec).Message)
	})

	t.Run("get bad id", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, apiPrefix+"/abc", nil, adminToken)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, MsgInvalidUserID, decodeError(t, rec).Message)
	})
}
