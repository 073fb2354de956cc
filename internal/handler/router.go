// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/olegiv/accounts-api/internal/apperr"
	"github.com/olegiv/accounts-api/internal/cache"
	"github.com/olegiv/accounts-api/internal/geoip"
	"github.com/olegiv/accounts-api/internal/imaging"
	"github.com/olegiv/accounts-api/internal/metrics"
	"github.com/olegiv/accounts-api/internal/middleware"
	"github.com/olegiv/accounts-api/internal/model"
	"github.com/olegiv/accounts-api/internal/service"
	"github.com/olegiv/accounts-api/internal/version"
)

// Route paths outside the API prefix.
const (
	RouteHealth      = "/health"
	RouteHealthLive  = "/health/live"
	RouteHealthReady = "/health/ready"
	RouteMetrics     = "/metrics"
	RouteUserPhotos  = "/img/users"
)

// photoCacheMaxAge is the Cache-Control max-age of served photos, in seconds.
const photoCacheMaxAge = 86400

// Deps holds everything the router wires together. Optional fields may be nil.
type Deps struct {
	Accounts *service.Accounts
	Errors   *apperr.Responder
	DB       *sql.DB

	LoginProtection *middleware.LoginProtection // optional
	APIRateLimiter  *middleware.RateLimiter     // optional
	Metrics         *metrics.Metrics            // created when nil
	Photos          *imaging.Processor          // optional; disables uploads and /img/users
	GeoIP           *geoip.Lookup               // optional
	Cache           cache.Cache                 // optional; only reported by /health
	Logger          *slog.Logger
	Version         version.Info

	APIPrefix      string
	CookieTTL      time.Duration
	RequestTimeout time.Duration
	IsDevelopment  bool
	// CrossOriginKey enables cross-origin write protection on the API when set.
	CrossOriginKey []byte
	TrustedOrigins []string
	UploadsDir     string
	// AccessLog enables the chi request logger.
	AccessLog bool
}

// NewRouter builds the HTTP handler of the accounts API.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New("accounts")
	}
	if d.APIPrefix == "" {
		d.APIPrefix = "/api/v1/users"
	}
	if d.Errors == nil {
		d.Errors = apperr.NewResponder(!d.IsDevelopment, nil, d.Logger)
	}
	errs := d.Errors

	authHandler := NewAuthHandler(d.Accounts, d.LoginProtection, d.Metrics, d.GeoIP, errs, d.CookieTTL, d.Logger)
	usersHandler := NewUsersHandler(d.Accounts, d.Photos, errs, d.Logger)
	healthHandler := NewHealthHandler(d.DB, d.Cache, d.Accounts, d.UploadsDir, d.Version)

	r := chi.NewRouter()

	notFound := func(w http.ResponseWriter, r *http.Request) {
		errs.Write(w, r, apperr.NotFound(fmt.Sprintf("Can't find %s on this server!", r.URL.RequestURI())))
	}
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	// Middleware stack
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	if d.AccessLog {
		r.Use(chimw.Logger)
	}
	r.Use(recoverer(errs, d.Logger))
	r.Use(chimw.GetHead) // Handle HEAD requests for uptime monitoring
	r.Use(d.Metrics.Middleware)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(d.IsDevelopment, d.APIPrefix)))
	if d.RequestTimeout > 0 {
		r.Use(middleware.Timeout(d.RequestTimeout, errs))
	}

	// Health check routes
	r.Get(RouteHealth, healthHandler.Health)
	r.Get(RouteHealthLive, healthHandler.Liveness)
	r.Get(RouteHealthReady, healthHandler.Readiness)
	r.Handle(RouteMetrics, d.Metrics.Handler())

	// Uploaded user photos
	if d.Photos != nil {
		fileServer := http.StripPrefix(RouteUserPhotos+"/", http.FileServer(http.Dir(d.Photos.PhotoDir())))
		r.With(middleware.StaticCache(photoCacheMaxAge)).Get(RouteUserPhotos+"/*", func(w http.ResponseWriter, r *http.Request) {
			// No directory listings
			if strings.HasSuffix(r.URL.Path, "/") {
				notFound(w, r)
				return
			}
			fileServer.ServeHTTP(w, r)
		})
	}

	r.Route(d.APIPrefix, func(r chi.Router) {
		if len(d.CrossOriginKey) > 0 {
			r.Use(middleware.CrossOrigin(middleware.DefaultCrossOriginConfig(d.CrossOriginKey, d.IsDevelopment, d.TrustedOrigins), errs))
		}
		if d.APIRateLimiter != nil {
			r.Use(d.APIRateLimiter.Middleware)
		}

		r.Post("/signup", authHandler.Signup)
		if d.LoginProtection != nil {
			r.With(d.LoginProtection.Middleware()).Post("/login", authHandler.Login)
		} else {
			r.Post("/login", authHandler.Login)
		}
		r.Get("/logout", authHandler.Logout)
		r.Post("/forgotPassword", authHandler.ForgotPassword)
		r.Patch("/resetPassword/{token}", authHandler.ResetPassword)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Protect(d.Accounts, errs))

			r.Patch("/updateMyPassword", authHandler.UpdateMyPassword)
			r.Get("/me", usersHandler.Me)
			r.Patch("/updateMe", usersHandler.UpdateMe)
			r.Delete("/deleteMe", usersHandler.DeleteMe)

			// Admin routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.RestrictTo(errs, model.RoleAdmin))

				r.Get("/", usersHandler.List)
				r.Get("/{id}", usersHandler.Get)
			})
		})
	})

	return r
}

// recoverer turns handler panics into 500 responses written by errs.
func recoverer(errs middleware.ErrorWriter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic recovered",
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				errs.Write(w, r, apperr.Internal(fmt.Errorf("panic: %v", rec)))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
