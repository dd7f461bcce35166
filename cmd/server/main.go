// Copyright 2026 The Parishauth Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/horaires-messes/parishauth/internal/audit"
	"github.com/horaires-messes/parishauth/internal/config"
	"github.com/horaires-messes/parishauth/internal/identity"
	"github.com/horaires-messes/parishauth/internal/notify"
	"github.com/horaires-messes/parishauth/internal/observability/logger"
	"github.com/horaires-messes/parishauth/internal/observability/metrics"
	"github.com/horaires-messes/parishauth/internal/observability/tracing"
	"github.com/horaires-messes/parishauth/internal/store/postgres"
	"github.com/horaires-messes/parishauth/internal/token"
	transportHTTP "github.com/horaires-messes/parishauth/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:          cfg.Observability.LogLevel,
		Format:         cfg.Observability.LogFormat,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		OTelEnabled:    cfg.Observability.OTELEnabled,
	})

	// CLI commands
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			if err := runMigrate(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
				os.Exit(1)
			}
			return
		case "bootstrap":
			if err := runBootstrap(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "Bootstrap failed: %v\n", err)
				os.Exit(1)
			}
			return
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q (expected migrate or bootstrap)\n", os.Args[1])
			os.Exit(2)
		}
	}

	slog.Info("starting parishauth")
	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   cfg.Observability.SamplingRate,
		Endpoint:       cfg.Observability.OTELEndpoint,
		Insecure:       cfg.Observability.OTELInsecure,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
		os.Exit(1)
	}
	defer func() { _ = tracer.Shutdown(context.Background()) }()

	// Initialize metrics. Auth counters share the registry served on /metrics.
	var (
		httpMetrics *metrics.HTTPMetrics
		authMetrics *metrics.AuthMetrics
	)
	if cfg.Observability.MetricsEnabled {
		httpMetrics = metrics.NewHTTPMetrics()
		authMetrics, err = metrics.NewAuthMetrics(httpMetrics.Registry())
		if err != nil {
			slog.Error("failed to register auth metrics", logger.Error(err))
			os.Exit(1)
		}
	}

	// Initialize database
	db, err := openDB(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	// Initialize helpers
	store := postgres.NewIdentityRepository(db.SQL())
	auditLogger := audit.NewSlogLogger()
	passwordHasher := newHasher(cfg)

	issuer, err := token.NewIssuer(token.Config{
		SigningKey: []byte(cfg.Token.SigningKey),
		TTL:        cfg.Token.TTL,
		Issuer:     cfg.Token.Issuer,
	})
	if err != nil {
		slog.Error("failed to initialize token issuer", logger.Error(err))
		os.Exit(1)
	}

	var sender notify.Sender = notify.LogSender{}
	if cfg.Notification.Enabled() {
		sender = notify.NewResendSender(notify.ResendConfig{
			APIKey:  cfg.Notification.ResendAPIKey,
			From:    cfg.Notification.FromEmail,
			BaseURL: cfg.Notification.ResendURL,
			Timeout: cfg.Notification.Timeout,
		})
	} else {
		slog.Warn("email delivery disabled, notifications will only be logged")
	}
	mailer := notify.NewMailer(sender, notify.MailerConfig{
		AdminContact: cfg.Notification.AdminContact,
		FrontendURL:  cfg.Notification.FrontendURL,
	})

	// Initialize services
	identityService := identity.NewService(
		store,
		passwordHasher,
		issuer,
		mailer,
		auditLogger,
		identity.WithMinPasswordLength(cfg.Security.PasswordMinLength),
		identity.WithMetrics(authMetrics),
	)

	// Run bootstrap (ENV driven)
	if _, err := newBootstrap(cfg, store, passwordHasher, auditLogger).Bootstrap(ctx); err != nil {
		slog.Error("bootstrap failed", logger.Error(err))
		os.Exit(1)
	}

	// Rate limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer rateLimiter.Stop()

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(
		identityService,
		issuer,
		auditLogger,
		transportHTTP.WithAccessRecorder(authMetrics),
		transportHTTP.WithHealthCheck(db),
	)

	routerCfg := transportHTTP.RouterConfig{
		RateLimiter:    rateLimiter,
		RequestTimeout: cfg.Server.RequestTimeout,
		HTTPMetrics:    httpMetrics,
	}
	router := transportHTTP.NewRouter(handler, routerCfg)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		slog.Info("starting http server",
			logger.Component("server"),
			logger.Operation("listen"),
			logger.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

func openDB(ctx context.Context, cfg *config.Config) (*postgres.DB, error) {
	return postgres.New(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
}

func newHasher(cfg *config.Config) *identity.PasswordHasher {
	return identity.NewPasswordHasher(
		uint32(cfg.Security.Argon2Memory),
		uint32(cfg.Security.Argon2Iterations),
		uint8(cfg.Security.Argon2Parallelism),
		uint32(cfg.Security.Argon2SaltLength),
		uint32(cfg.Security.Argon2KeyLength),
	)
}

func newBootstrap(cfg *config.Config, store identity.Store, hasher *identity.PasswordHasher, auditLogger audit.Logger) *identity.BootstrapService {
	return identity.NewBootstrapService(store, hasher, auditLogger, identity.BootstrapConfig{
		Email:    cfg.Bootstrap.SuperAdminEmail,
		Password: cfg.Bootstrap.SuperAdminPassword,
		Name:     cfg.Bootstrap.SuperAdminName,
	})
}

func runBootstrap(cfg *config.Config) error {
	ctx := context.Background()
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	store := postgres.NewIdentityRepository(db.SQL())
	created, err := newBootstrap(cfg, store, newHasher(cfg), audit.NewSlogLogger()).Bootstrap(ctx)
	if err != nil {
		return err
	}
	if created == nil {
		fmt.Println("Nothing to do: super admin already present or not configured.")
		return nil
	}
	fmt.Printf("Super admin %s created.\n", created.Email)
	return nil
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying initial schema...")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}
