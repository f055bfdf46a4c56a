// Package main provides the learner Kafka consumer for the pattern store.
//
// It hosts the dispatch engine: one reader per subscribed topic, each bound
// to the node effect or orchestrator that assembles patterns from observed
// executions, attributes session outcomes back onto the patterns that
// contributed to them, and re-evaluates the promotion/demotion gates as
// fresh evidence arrives.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/onex-learning/patternd/internal/config"
	"github.com/onex-learning/patternd/internal/dispatch"
	"github.com/onex-learning/patternd/internal/dispatch/node"
	"github.com/onex-learning/patternd/internal/dispatch/wiring"
	"github.com/onex-learning/patternd/internal/patternstore"
	"github.com/onex-learning/patternd/internal/storage"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "learner"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	logger.Info("Starting learner service",
		slog.String("service", name),
		slog.String("version", version),
	)

	env := config.GetEnvStr("ENV_PREFIX", "")
	if env == "" {
		logger.Error("ENV_PREFIX is required and was not set")
		os.Exit(1)
	}

	brokersRaw := config.GetEnvStr("KAFKA_BROKERS", "")
	if brokersRaw == "" {
		logger.Error("KAFKA_BROKERS is required and was not set")
		os.Exit(1)
	}

	brokers := strings.Split(brokersRaw, ",")

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

	nodeSourceDir := config.GetEnvStr("NODE_PURITY_AUDIT_DIR", "internal/dispatch/node")

	violations, err := node.AuditPurity(nodeSourceDir)
	if err != nil {
		logger.Error("Failed to run node purity audit", slog.String("dir", nodeSourceDir), slog.String("error", err.Error()))
		os.Exit(1)
	}

	if len(violations) > 0 {
		for _, v := range violations {
			logger.Error("node purity violation", slog.String("file", v.File), slog.String("import", v.Import))
		}

		os.Exit(1)
	}

	registry, err := wiring.BuildRegistry(env)
	if err != nil {
		logger.Error("Failed to build envelope registry", slog.String("error", err.Error()))
		os.Exit(1)
	}

	subs := wiring.BuildSubscriptions(store, env)

	engine, err := dispatch.NewEngine(conn, registry, brokers, subs, dispatch.WithLogger(logger))
	if err != nil {
		logger.Error("Failed to construct dispatch engine", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error("Failed to close dispatch engine", slog.String("error", err.Error()))
		}
	}()

	logger.Info("learner service ready",
		slog.String("env", env),
		slog.Int("broker_count", len(brokers)),
		slog.Int("subscription_count", len(subs)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Dispatch engine stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("learner service stopped")
}
