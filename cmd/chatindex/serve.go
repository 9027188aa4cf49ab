package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/chatindex/internal/http"
	"github.com/fyrsmithlabs/chatindex/internal/indexer"
	"github.com/fyrsmithlabs/chatindex/internal/logging"
	"github.com/fyrsmithlabs/chatindex/internal/mcp"
	"github.com/fyrsmithlabs/chatindex/internal/watch"
)

var (
	serveHost string
	servePort int

	watchExport      string
	watchNoInitial   bool
	watchDebounceArg string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the search API over HTTP",
	Long: `Serve a read-only JSON API over the index:

  GET /health
  GET /metrics
  GET /api/v1/search?q=...&role=&model=&since=&until=&lang=&limit=
  GET /api/v1/conversations/:id
  GET /api/v1/conversations/:id/keywords
  GET /api/v1/keywords?limit=
  GET /api/v1/stats`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the index to MCP clients over stdio",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild the index whenever the export file changes",
	Long: `Watch conversations.json and rebuild the index after it changes. A fresh
export replaces the old file wholesale, so every rebuild starts from scratch.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (default: server.host from config, 127.0.0.1)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default: server.port from config, 8765)")

	watchCmd.Flags().StringVar(&watchExport, "export", "", "path to conversations.json (default: index.export_path from config)")
	watchCmd.Flags().BoolVar(&watchNoInitial, "no-initial-build", false, "wait for the first change instead of building on start")
	watchCmd.Flags().StringVar(&watchDebounceArg, "debounce", "", "quiet period before rebuilding, e.g. 5s (default: watch.debounce from config)")

	rootCmd.AddCommand(serveCmd, mcpCmd, watchCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	st, s, err := a.openSearcher(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	cfg := &http.Config{
		Host:        a.cfg.Server.Host,
		Port:        a.cfg.Server.Port,
		SearchRate:  a.cfg.Server.SearchRate,
		SearchBurst: a.cfg.Server.SearchBurst,
		AuthToken:   a.cfg.Server.AuthToken.Value(),
	}
	if serveHost != "" {
		cfg.Host = serveHost
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	srv, err := http.NewServer(s, a.logger, cfg)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info(ctx, "http server listening",
			zap.String("addr", cfg.Addr()),
			zap.String("db", a.dbPath),
			logging.Secret("auth_token", a.cfg.Server.AuthToken))
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return <-errCh
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	st, s, err := a.openSearcher(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	cfg := mcp.DefaultConfig()
	cfg.Version = version
	cfg.MaxLimit = a.cfg.MCP.MaxLimit
	cfg.Telemetry = a.tel

	srv, err := mcp.NewServer(cfg, s, a.logger)
	if err != nil {
		return err
	}
	a.logger.Info(ctx, "mcp server starting on stdio", zap.String("db", a.dbPath))
	return srv.Run(ctx)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	export, err := a.exportPath(watchExport)
	if err != nil {
		return err
	}

	debounce := a.cfg.Watch.Debounce
	if watchDebounceArg != "" {
		if err := debounce.UnmarshalText([]byte(watchDebounceArg)); err != nil {
			return fmt.Errorf("--debounce: %w", err)
		}
	}

	ix, err := a.newIndexer(true)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	w, err := watch.New(watch.Config{
		ExportPath:   export,
		DBPath:       a.dbPath,
		Debounce:     debounce.Duration(),
		BuildOnStart: !watchNoInitial,
		OnBuild: func(stats *indexer.Stats, err error) {
			if err == nil {
				renderBuild(out, stats)
			}
		},
	}, ix, a.logger)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
