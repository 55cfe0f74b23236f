// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/danielhkuo/taiyo/cliparse"
	"github.com/danielhkuo/taiyo/db"
	"github.com/danielhkuo/taiyo/handlers"
	"github.com/danielhkuo/taiyo/logging"
	"github.com/danielhkuo/taiyo/mailer"
	"github.com/danielhkuo/taiyo/rankcache"
	"github.com/danielhkuo/taiyo/release"
	"github.com/danielhkuo/taiyo/router"
)

// memoryCacheCleanup is how often the in-process rank cache sweeps
// expired entries.
const memoryCacheCleanup = 10 * time.Minute

func main() {
	var err error

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	logCloser, err := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		slog.Error("logger setup failed", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	// Connect to PostgreSQL
	dbConn, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Verify connection
	if err := dbConn.Ping(); err != nil {
		slog.Error("database ping failed", "error", err)
		os.Exit(1)
	}

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready")

	deps, err := handlers.NewDeps(dbConn, cfg)
	if err != nil {
		slog.Error("service setup failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	var cache rankcache.Cache = rankcache.NewMemory(memoryCacheCleanup)
	if cfg.RedisURL != "" {
		rc, err := rankcache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("redis unavailable", "error", err)
			os.Exit(1)
		}
		defer rc.Close()
		cache = rc
		slog.Info("Rank cache on redis")
	}

	tracker := release.NewTracker(cfg.VersionFile, cfg.ChangelogURL)
	if err := tracker.Refresh(ctx); err != nil {
		slog.Warn("release info incomplete", "error", err)
	}

	m, err := mailer.New(cfg.Mailer())
	if errors.Is(err, mailer.ErrNotConfigured) {
		slog.Info("SMTP not configured, email binds disabled")
	} else if err != nil {
		slog.Error("mailer setup failed", "error", err)
		os.Exit(1)
	}

	// Create router
	handler := router.NewRouter(router.Services{
		Deps:    deps,
		Cache:   cache,
		Release: tracker,
		Mailer:  m,
	})

	// Create server
	server := http.Server{
		Handler:           handler,
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			server.Close()
		}
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port, "auth_mode", deps.Policy.Config().Mode.String(), "tls", cfg.CertFile != "")
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		err = server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
	} else {
		err = server.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}
