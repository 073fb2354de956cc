// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/olegiv/accounts-api/internal/apperr"
	"github.com/olegiv/accounts-api/internal/auth"
	"github.com/olegiv/accounts-api/internal/cache"
	"github.com/olegiv/accounts-api/internal/imaging"
	"github.com/olegiv/accounts-api/internal/metrics"
	"github.com/olegiv/accounts-api/internal/middleware"
	"github.com/olegiv/accounts-api/internal/service"
	"github.com/olegiv/accounts-api/internal/store"
	"github.com/olegiv/accounts-api/internal/testutil"
	"github.com/olegiv/accounts-api/internal/version"
)

const (
	testSecret = "handler-test-secret-with-32-plus-bytes!"
	apiPrefix  = "/api/v1/users"
)

// testEnv is a fully wired router over a temporary SQLite database.
type testEnv struct {
	handler http.Handler
	users   *store.Users
	metrics *metrics.Metrics
	photos  *imaging.Processor
}

// newTestEnv builds the router. opts may adjust the dependencies before
// the router is created.
func newTestEnv(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()

	db := testutil.TestDB(t)
	logger := testutil.TestLoggerSilent()

	users := store.NewUsers(db, store.DriverSQLite)
	tokens, err := auth.NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	accounts := service.NewAccounts(users, auth.NewHasher(bcrypt.MinCost), tokens, service.WithLogger(logger))

	mem := cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Hour, CleanupInterval: time.Minute})
	t.Cleanup(func() { _ = mem.Close() })

	errs := apperr.NewResponder(true, store.ErrorDetails, logger)
	uploads := t.TempDir()

	lpCfg := middleware.DefaultLoginProtectionConfig()
	lpCfg.IPRateLimit = 1000
	lpCfg.IPBurst = 1000

	d := Deps{
		Accounts:        accounts,
		Errors:          errs,
		DB:              db,
		LoginProtection: middleware.NewLoginProtection(lpCfg, mem, errs),
		APIRateLimiter:  middleware.NewRateLimiter(1000, 1000, errs),
		Metrics:         metrics.New("accounts"),
		Photos:          imaging.NewProcessor(uploads),
		Cache:           mem,
		Logger:          logger,
		Version:         version.Info{Version: "v1.0.0-test", GitCommit: "abc1234"},
		APIPrefix:       apiPrefix,
		CookieTTL:       90 * 24 * time.Hour,
		RequestTimeout:  10 * time.Second,
		CrossOriginKey:  []byte("12345678901234567890123456789012"),
		UploadsDir:      uploads,
	}
	for _, opt := range opts {
		opt(&d)
	}

	return &testEnv{
		handler: NewRouter(d),
		users:   users,
		metrics: d.Metrics,
		photos:  d.Photos,
	}
}

// do sends a JSON request. body may be nil; token, when set, is sent as a
// bearer token.
func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.serve(req)
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// signup creates a user and returns its token.
func (e *testEnv) signup(t *testing.T, name, email, password, role string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, apiPrefix+"/signup", map[string]string{
		"name":             name,
		"email":            email,
		"password":         password,
		"password_confirm": password,
		"role":             role,
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeSession(t, rec).Token
}

// sessionBody mirrors sessionResponse with a generic user.
type sessionBody struct {
	Status string `json:"status"`
	Token  string `json:"token"`
	Data   struct {
		User map[string]any `json:"user"`
	} `json:"data"`
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) sessionBody {
	t.Helper()
	var body sessionBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperr.Body {
	t.Helper()
	var body apperr.Body
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// tokenCookie returns the jwt cookie set by the response, or nil.
func tokenCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.TokenCookie {
			return c
		}
	}
	return nil
}

func stringsReader(s string) io.Reader {
	return strings.NewReader(s)
}

// scrapeMetrics returns the Prometheus text exposition of the router.
func scrapeMetrics(t *testing.T, e *testEnv) string {
	t.Helper()
	rec := e.do(t, http.MethodGet, RouteMetrics, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}
