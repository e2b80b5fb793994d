package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/moodmart/internal/config"
	"github.com/hpungsan/moodmart/internal/db"
	"github.com/hpungsan/moodmart/internal/history"
	"github.com/hpungsan/moodmart/internal/logging"
	"github.com/hpungsan/moodmart/internal/observe"
	"github.com/hpungsan/moodmart/internal/ops"
	"github.com/hpungsan/moodmart/internal/speech"
)

// env is everything a command runs against.
type env struct {
	deps   *ops.Deps
	logger *zap.Logger

	closers []func()
}

// defaultBaseDir returns ~/.moodmart.
func defaultBaseDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".moodmart"
	}
	return filepath.Join(homeDir, ".moodmart")
}

// openEnv loads config from baseDir and wires the mood log, index, speech
// backends and logger. With telemetry set it also installs the OTel
// providers that back /metrics.
func openEnv(ctx context.Context, baseDir string, telemetry bool) (*env, error) {
	cfg, err := config.Load(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Level:   cfg.AppLogLevel,
		File:    config.ResolvePath(baseDir, cfg.AppLogFile),
		Console: os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	e := &env{logger: logger}
	e.closers = append(e.closers, func() { _ = logger.Sync() })

	var metrics *observe.Metrics
	if telemetry {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: Version})
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("failed to init telemetry: %w", err)
		}
		e.closers = append(e.closers, func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				logger.Warn("telemetry shutdown failed", zap.Error(err))
			}
		})
		metrics = observe.DefaultMetrics()
	}

	database, err := db.Init(baseDir)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	db.ConfigurePool(database, cfg)
	e.closers = append(e.closers, func() { database.Close() })

	e.deps = newDeps(baseDir, cfg, database, logger)
	e.deps.Metrics = metrics

	rebuilt, err := ops.SyncIndex(ctx, e.deps)
	if err != nil {
		logger.Warn("mood index sync failed", zap.Error(err))
	} else if rebuilt {
		logger.Info("mood index rebuilt from log", zap.String("log", e.deps.Log.Path()))
	}

	return e, nil
}

// newDeps builds the ops dependencies for an initialized base dir.
func newDeps(baseDir string, cfg *config.Config, database *sql.DB, logger *zap.Logger) *ops.Deps {
	return &ops.Deps{
		BaseDir:     baseDir,
		Log:         history.Open(config.ResolvePath(baseDir, cfg.LogFile), history.WithLogger(logger)),
		Index:       database,
		Config:      cfg,
		Transcriber: speech.New(cfg, logger),
		Logger:      logger,
	}
}

// Close releases resources in reverse order of acquisition.
func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}
