package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/salesiq/internal/api"
	"github.com/kalambet/salesiq/internal/composer"
	"github.com/kalambet/salesiq/internal/config"
	"github.com/kalambet/salesiq/internal/executor"
	"github.com/kalambet/salesiq/internal/pipeline"
	"github.com/kalambet/salesiq/internal/plan"
	"github.com/kalambet/salesiq/internal/retention"
	"github.com/kalambet/salesiq/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the salesiq server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show salesiq server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func setupLogging(level string) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

func openStore(cfg config.Config) (*storage.Store, error) {
	store, err := storage.OpenDriver(cfg.Storage.Driver, cfg.Storage.DataDir, cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	return store, nil
}

func newAnalyzer(cfg config.Config, store *storage.Store) *pipeline.Analyzer {
	gen := plan.NewGenerator(plan.DialectFor(store.Driver()))
	exec := executor.NewSQLExecutor(store.DB(), cfg.QueryTimeout())
	return pipeline.NewAnalyzer(gen, exec, composer.New("$"), store, cfg.Query.BatchConcurrency)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "salesiq version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	counts, err := store.SalesCounts(ctx)
	if err != nil {
		return fmt.Errorf("reading sales tables: %w", err)
	}
	if counts["orders"] == 0 {
		slog.Warn("sales database has no orders; every question will return an empty answer", "driver", store.Driver())
	}
	slog.Info("storage ready", "driver", store.Driver(), "orders", counts["orders"], "products", counts["products"])

	analyzer := newAnalyzer(cfg, store)

	go retention.NewPruner(store, cfg.AskRetention(), time.Hour).Run(ctx)

	if cfg.API.Token == "" {
		slog.Warn("no API token configured; /v1 endpoints are unauthenticated")
	}
	handler := api.NewHandler(api.Deps{
		Analyzer: analyzer,
		Asks:     store,
		Stats:    store,
		Token:    cfg.API.Token,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Server.MCPStdio {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Analyzer: analyzer, Asks: store}, version)
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "salesiq listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}
	client.httpClient.Timeout = 2 * time.Second

	running := false
	resp, err := client.get(ctx, "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if running {
		if resp, err := client.get(ctx, "/v1/stats"); err == nil {
			var counts map[string]int64
			if err := decodeJSON(resp, &counts); err != nil {
				printWarning("could not read row counts: %v", err)
			} else {
				printStatus("Products", "%d", counts["products"])
				printStatus("Customers", "%d", counts["customers"])
				printStatus("Orders", "%d", counts["orders"])
			}
		}
	}

	printStatus("Driver", "%s", cfg.Storage.Driver)
	if cfg.Storage.Driver == storage.DriverSQLite {
		printStatus("Data dir", "%s", cfg.Storage.DataDir)
	}
	printStatus("Query timeout", "%s", cfg.QueryTimeout())
	if r := cfg.AskRetention(); r > 0 {
		printStatus("Ask retention", "%s", r)
	} else {
		printStatus("Ask retention", "forever")
	}
	return nil
}
