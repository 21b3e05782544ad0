package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/memviz/memviz/server/internal/api"
	"github.com/memviz/memviz/server/internal/backend"
	"github.com/memviz/memviz/server/internal/config"
	"github.com/memviz/memviz/server/internal/directory"
	"github.com/memviz/memviz/server/internal/health"
	"github.com/memviz/memviz/server/internal/metrics"
	"github.com/memviz/memviz/server/internal/store"
	"github.com/memviz/memviz/server/internal/ws"
)

// version can be overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

type flags struct {
	configPath string
	logLevel   string
	noBanner   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("memviz stopped", "err", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:     "memviz [port] [directory]",
		Short:   "Serve the knowledge visualizer and its team API",
		Long:    "memviz serves the memory visualizer's static files, a JSON API for\nselecting the active team knowledge-view, and proxies data queries to the\nknowledge backend executable.",
		Version: version,
		Args:    cobra.MaximumNArgs(2),

		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f, args)
		},
	}
	cmd.Flags().StringVar(&f.configPath, "config", "", "path to an optional YAML config file")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&f.noBanner, "no-banner", false, "do not print the startup banner")
	return cmd
}

func run(ctx context.Context, f flags, args []string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(f.logLevel)); err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if err := applyArgs(cfg, args); err != nil {
		return err
	}

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"serve_dir", cfg.Server.ServeDir,
		"project_root", cfg.ProjectRoot(),
		"export_dir", cfg.ExportDir(),
		"data_source", cfg.Server.DataSource,
		"listing", cfg.Listing(),
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	// A closed terminal must not take the server down.
	signal.Ignore(syscall.SIGHUP)

	reg := metrics.New()

	proxy := backend.New(backend.Options{
		Interpreter:    cfg.Backend.Interpreter,
		QueryScript:    cfg.QueryScriptPath(),
		ProcessCLI:     cfg.ProcessCLIPath(),
		ProjectRoot:    cfg.ProjectRoot(),
		ExportDir:      cfg.ExportDir(),
		QueryTimeout:   cfg.Backend.QueryTimeout,
		ProcessTimeout: cfg.Backend.ProcessTimeout,
		Markers:        cfg.Backend.LogMarkers,
		Observe: func(op string, outcome backend.Outcome) {
			reg.ObserveBackend(op, outcome.String())
		},
	})

	st := store.New(store.Options{
		Default:      cfg.Teams.Default,
		Initial:      cfg.Teams.Initial,
		ArtifactPath: cfg.ArtifactPath(),
		Reprocessor: store.ReprocessorFunc(func(ctx context.Context, teams []string) error {
			return proxy.Reprocess(ctx, teams).Err()
		}),
	})

	teams := directory.New(directory.Options{
		Mode:         cfg.Listing(),
		ExportDir:    cfg.ExportDir(),
		Default:      cfg.Teams.Default,
		InsightTypes: cfg.Teams.InsightTypes,
		Querier:      proxy,
	})
	if teams.Mode() == directory.ModeLocalScan {
		go func() {
			if err := teams.Watch(ctx); err != nil {
				slog.Warn("export directory not watched, listing uncached", "dir", cfg.ExportDir(), "err", err)
			}
		}()
	}

	// Selection push to open browser tabs.
	hub := ws.New(st, cfg.Server.PushInterval)
	go hub.Run(ctx)

	handler := api.New(api.Options{
		Store:   st,
		Backend: proxy,
		Teams:   teams,
		Health: health.New(health.Options{
			Port:      cfg.Server.Port,
			KBPath:    cfg.KnowledgeBasePath(),
			ExportDir: cfg.ExportDir(),
			Sampler:   health.HostSampler{},
		}),
		Metrics:     reg,
		Push:        hub,
		DataSource:  cfg.Server.DataSource,
		ServeDir:    cfg.Server.ServeDir,
		ProjectRoot: cfg.ProjectRoot(),
	})

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			printPortInUse(cfg.Server.Port)
		}
		return fmt.Errorf("listen on port %d: %w", cfg.Server.Port, err)
	}

	if !f.noBanner {
		printBanner(cfg, st.Get().Raw)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.Port)
		serveErr <- srv.Serve(lis)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("memviz shutting down")
	// In-flight team switches may still be waiting on the reprocess run.
	shutdownCtx, done := context.WithTimeout(context.Background(), cfg.Backend.ProcessTimeout+5*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP server did not shut down cleanly", "err", err)
	}
	return nil
}

// applyArgs applies the positional [port] [directory] arguments.
func applyArgs(cfg *config.Config, args []string) error {
	if len(args) > 0 {
		port, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("port %q is not a number", args[0])
		}
		cfg.Server.Port = port
	}
	if len(args) > 1 {
		info, err := os.Stat(args[1])
		if err != nil {
			return fmt.Errorf("serving directory: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("serving directory %q is not a directory", args[1])
		}
		cfg.Server.ServeDir = args[1]
	}
	return cfg.Validate()
}
