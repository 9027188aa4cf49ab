package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/chatindex/internal/config"
	"github.com/fyrsmithlabs/chatindex/internal/logging"
	"github.com/fyrsmithlabs/chatindex/internal/search"
	"github.com/fyrsmithlabs/chatindex/internal/store"
	"github.com/fyrsmithlabs/chatindex/internal/telemetry"
)

// app carries what every command needs: configuration, a logger writing to
// stderr, telemetry and the resolved database path.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	tel    *telemetry.Telemetry
	dbPath string
}

func newApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()

	cfg, err := config.LoadWithFile(configFlag)
	if err != nil {
		return nil, err
	}

	telCfg := telemetry.NewDefaultConfig()
	telCfg.ServiceVersion = version
	if err := cfg.Section("telemetry", telCfg); err != nil {
		return nil, err
	}
	tel, err := telemetry.New(ctx, telCfg)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	logCfg := logging.NewDefaultConfig()
	if err := cfg.Section("logging", logCfg); err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}
	if logLevelFlag != "" {
		logCfg.Level = logLevelFlag
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	dbPath := dbFlag
	if dbPath == "" {
		dbPath = cfg.Index.DBPath
	}
	if dbPath, err = config.ExpandHome(dbPath); err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	logger.Debug(ctx, "configuration loaded",
		zap.String("db", dbPath),
		zap.Bool("telemetry", tel.IsEnabled()))
	if h := tel.Health(); h.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.Strings("reasons", h.Reasons))
	}

	return &app{cfg: cfg, logger: logger, tel: tel, dbPath: dbPath}, nil
}

// close flushes telemetry and the logger. It runs on a fresh context so an
// interrupted command still exports what it recorded.
func (a *app) close() {
	if err := a.tel.Shutdown(context.Background()); err != nil {
		a.logger.Warn(context.Background(), "telemetry shutdown failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// openSearcher opens an existing index for reading. The store's errors for a
// missing or invalid file already name the command that recreates it.
func (a *app) openSearcher(ctx context.Context) (*store.Store, *search.Searcher, error) {
	st, err := store.OpenExisting(ctx, a.dbPath, a.cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	s, err := search.New(st, search.WithTelemetry(a.tel))
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return st, s, nil
}
