// Package main provides the patterngate HTTP query API for the pattern store.
//
// It exposes the read surface over patterns and decision records that
// accumulate as the learner consumes dispatch events: pattern listing and
// lineage lookup, and decision replay for auditing automated agent choices.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/onex-learning/patternd/internal/api"
	"github.com/onex-learning/patternd/internal/api/middleware"
	"github.com/onex-learning/patternd/internal/patternstore"
	"github.com/onex-learning/patternd/internal/storage"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "patterngate"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	serverConfig := api.LoadServerConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: serverConfig.LogLevel,
	}))

	logger.Info("Starting patterngate service",
		slog.String("service", name),
		slog.String("version", version),
	)

	logger.Info("Loaded server configuration",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.Duration("read_timeout", serverConfig.ReadTimeout),
		slog.Duration("write_timeout", serverConfig.WriteTimeout),
		slog.Duration("shutdown_timeout", serverConfig.ShutdownTimeout),
		slog.String("log_level", serverConfig.LogLevel.String()),
	)

	storageConfig := storage.LoadConfig()
	if err := storageConfig.Validate(); err != nil {
		logger.Error("Invalid database configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	conn, err := storage.NewConnection(storageConfig)
	if err != nil {
		logger.Error("Failed to connect to database",
			slog.String("database", storageConfig.MaskDatabaseURL()),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Error("Failed to close database connection", slog.String("error", err.Error()))
		}
	}()

	store, err := patternstore.New(conn)
	if err != nil {
		logger.Error("Failed to initialize pattern store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	keyStore, err := storage.NewPersistentKeyStore(conn)
	if err != nil {
		logger.Error("Failed to initialize API key store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := keyStore.Close(); err != nil {
			logger.Error("Failed to close API key store", slog.String("error", err.Error()))
		}
	}()

	rateLimiterConfig := middleware.LoadConfig()
	rateLimiter := middleware.NewInMemoryRateLimiter(rateLimiterConfig)
	defer rateLimiter.Close()

	server := api.NewServer(serverConfig, keyStore, rateLimiter, store)

	if err := server.Start(); err != nil {
		logger.Error("Server failed to start",
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	logger.Info("patterngate service stopped")
}
