// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/olegiv/accounts-api/internal/apperr"
	"github.com/olegiv/accounts-api/internal/auth"
	"github.com/olegiv/accounts-api/internal/cache"
	"github.com/olegiv/accounts-api/internal/config"
	"github.com/olegiv/accounts-api/internal/geoip"
	"github.com/olegiv/accounts-api/internal/handler"
	"github.com/olegiv/accounts-api/internal/imaging"
	"github.com/olegiv/accounts-api/internal/logging"
	"github.com/olegiv/accounts-api/internal/metrics"
	"github.com/olegiv/accounts-api/internal/middleware"
	"github.com/olegiv/accounts-api/internal/scheduler"
	"github.com/olegiv/accounts-api/internal/service"
	"github.com/olegiv/accounts-api/internal/store"
	"github.com/olegiv/accounts-api/internal/version"
)

// Build-time variables injected via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

// Public API throttle per client IP, in front of the login limiter.
const (
	apiRateLimit = 10.0
	apiBurst     = 20
	// maxTrackedIPs bounds the IP limiter caches between cleanups.
	maxTrackedIPs = 10000
)

func main() {
	// Parse CLI flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "accounts - user accounts and authentication API\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  JWT_SECRET               Token signing key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  JWT_EXPIRES_IN           Token lifetime, e.g. 90d or 12h (required)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  JWT_COOKIE_EXPIRES_IN    Cookie lifetime in days (default: 90)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  ACCOUNTS_ENV             Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  ACCOUNTS_SERVER_PORT     Server port (default: 5001)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  ACCOUNTS_DB_DRIVER       sqlite|postgres|mysql (default: sqlite)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  ACCOUNTS_DB_DSN          Database DSN or SQLite path (default: ./data/accounts.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  ACCOUNTS_REDIS_URL       Redis URL for shared login protection (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  ACCOUNTS_GEOIP_DB_PATH   GeoLite2-Country database for the login audit (optional)\n")
	}

	flag.Parse()

	versionInfo := version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	// Handle -h/-help flag
	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	// Handle -v/-version flag
	if *showVersion {
		_, _ = fmt.Printf("accounts %s\n", versionInfo)
		os.Exit(0)
	}

	if err := run(versionInfo); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(versionInfo version.Info) error {
	// Load .env file if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.IsProduction())
	slog.SetDefault(logger)
	slog.Info("starting accounts API", "version", versionInfo.Version, "commit", versionInfo.GitCommit)
	if !versionInfo.IsRelease() {
		slog.Warn("running a development build")
	}

	// Database
	driver, err := store.ParseDriver(cfg.DBDriver)
	if err != nil {
		return err
	}
	if driver == store.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.DBDSN), 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	slog.Info("initializing database", "driver", driver)
	db, err := store.Open(driver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}()

	if err := store.Migrate(db, driver); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("migrations completed")

	users := store.NewUsers(db, driver)
	hasher := auth.NewHasher(cfg.BcryptCost)

	if cfg.SeedAdmin() {
		if err := store.SeedAdmin(context.Background(), users, hasher, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("seeding admin user: %w", err)
		}
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL())
	if err != nil {
		return fmt.Errorf("creating token issuer: %w", err)
	}
	accounts := service.NewAccounts(users, hasher, tokens, service.WithLogger(logger))

	// Shared login protection state
	cacheCfg := cache.DefaultConfig()
	cacheCfg.RedisURL = cfg.RedisURL
	cacheCfg.Prefix = cfg.CachePrefix
	stateCache, backend, err := cache.New(cacheCfg)
	if err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}
	defer func() { _ = stateCache.Close() }()
	slog.Info("cache initialized", "backend", backend)

	errs := apperr.NewResponder(cfg.IsProduction(), store.ErrorDetails, logger)

	lpCfg := middleware.DefaultLoginProtectionConfig()
	lpCfg.MaxFailedAttempts = cfg.MaxFailedLogins
	lpCfg.LockoutDuration = cfg.LockoutDuration
	loginProtection := middleware.NewLoginProtection(lpCfg, stateCache, errs)
	slog.Info("login protection initialized",
		"ip_rate_limit", lpCfg.IPRateLimit,
		"max_failed_attempts", lpCfg.MaxFailedAttempts,
		"lockout_duration", lpCfg.LockoutDuration,
	)

	apiLimiter := middleware.NewRateLimiter(apiRateLimit, apiBurst, errs)

	// GeoIP for the login audit log
	geo, err := geoip.New(cfg.GeoIPDBPath)
	if err != nil {
		slog.Warn("GeoIP disabled", "error", err)
	} else if geo.Enabled() {
		slog.Info("GeoIP database loaded", "path", cfg.GeoIPDBPath)
	}
	defer func() { _ = geo.Close() }()

	// Background jobs
	sched := scheduler.New(logger, time.Minute)
	if err := sched.Add("rate-limiter-cleanup", "@every 10m", func(context.Context) error {
		loginProtection.Cleanup()
		if apiLimiter.Prune(maxTrackedIPs) {
			slog.Info("cleared API rate limiters due to size")
		}
		return nil
	}); err != nil {
		return fmt.Errorf("scheduling cleanup: %w", err)
	}
	if cfg.GeoIPEnabled() {
		if err := sched.Add("geoip-reload", "@daily", func(context.Context) error {
			return geo.Reload()
		}); err != nil {
			return fmt.Errorf("scheduling GeoIP reload: %w", err)
		}
	}
	sched.Start()
	defer sched.Stop()

	router := handler.NewRouter(handler.Deps{
		Accounts:        accounts,
		Errors:          errs,
		DB:              db,
		LoginProtection: loginProtection,
		APIRateLimiter:  apiLimiter,
		Metrics:         metrics.New("accounts"),
		Photos:          imaging.NewProcessor(cfg.UploadsDir),
		GeoIP:           geo,
		Cache:           stateCache,
		Logger:          logger,
		Version:         versionInfo,
		APIPrefix:       cfg.APIPrefix,
		CookieTTL:       cfg.CookieTTL(),
		RequestTimeout:  cfg.RequestTimeout,
		IsDevelopment:   cfg.IsDevelopment(),
		CrossOriginKey:  []byte(cfg.JWTSecret),
		TrustedOrigins:  cfg.TrustedOrigins,
		UploadsDir:      cfg.UploadsDir,
		AccessLog:       cfg.IsDevelopment(),
	})

	// Create server with appropriate timeouts
	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second, // Longer to allow for photo uploads
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB max header size
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "prefix", cfg.APIPrefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
