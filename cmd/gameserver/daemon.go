package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/foldnet/gameserver/internal/action"
	"github.com/foldnet/gameserver/internal/fold"
	"github.com/foldnet/gameserver/internal/logging"
	"github.com/foldnet/gameserver/internal/metrics"
	"github.com/foldnet/gameserver/internal/observability"
	"github.com/foldnet/gameserver/internal/rpcfront"
	"github.com/foldnet/gameserver/internal/sandbox"
)

func daemonCmd() *cobra.Command {
	var (
		httpAddr string
		logLevel string
		rpcAddr  string
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the gameserver daemon",
		Long:  "Runs the action log, fold pipeline, and gRPC front end as a long-lived process.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("http") {
				cfg.Daemon.HTTPAddr = httpAddr
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Daemon.LogLevel = logLevel
			}
			if cmd.Flags().Changed("rpc-addr") {
				cfg.RPCFront.Addr = rpcAddr
			}

			logging.SetLevelFromString(cfg.Daemon.LogLevel)
			logging.InitStructured(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)

			if err := observability.Init(context.Background(), observability.Config{
				Enabled:     cfg.Observability.Tracing.Enabled,
				Exporter:    cfg.Observability.Tracing.Exporter,
				Endpoint:    cfg.Observability.Tracing.Endpoint,
				ServiceName: cfg.Observability.Tracing.ServiceName,
				SampleRate:  cfg.Observability.Tracing.SampleRate,
			}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer observability.Shutdown(context.Background())

			if cfg.Observability.Metrics.Enabled {
				metrics.InitPrometheus(
					cfg.Observability.Metrics.Namespace,
					cfg.Observability.Metrics.HistogramBuckets,
				)
			}

			if cfg.Observability.OutputCapture.Enabled {
				if err := logging.InitOutputStore(
					cfg.Observability.OutputCapture.StorageDir,
					cfg.Observability.OutputCapture.MaxSize,
					cfg.Observability.OutputCapture.RetentionS,
				); err != nil {
					logging.Op().Warn("failed to init output capture", "error", err)
				}
			}

			ctx := context.Background()

			log, err := buildActionLog(ctx, cfg.ActionLog)
			if err != nil {
				return fmt.Errorf("build action log: %w", err)
			}
			defer log.Close()

			provider, err := buildModuleProvider(ctx, cfg.ModuleProvider)
			if err != nil {
				return fmt.Errorf("build module provider: %w", err)
			}
			defer func() {
				if err := provider.Close(); err != nil {
					logging.Op().Warn("module provider close failed", "error", err)
				}
			}()

			var outputs *sandbox.OutputSink
			if cfg.Observability.OutputCapture.Enabled {
				outputs = sandbox.NewOutputSink(logging.GetOutputStore())
			}
			runner := buildSandboxRunner(cfg.Sandbox, provider, outputs)

			tokens, err := buildTokenSource(ctx, cfg.TokenSource)
			if err != nil {
				return fmt.Errorf("build token source: %w", err)
			}

			manager := fold.NewManager(log, runner)
			handler := action.New(log, provider, manager.Join)

			var rpcServer *rpcfront.Server
			if cfg.RPCFront.Enabled {
				rpcServer = rpcfront.New(handler, runner, manager.Join, rpcfront.WithAuthenticator(tokens))
				if err := rpcServer.Start(cfg.RPCFront.Addr); err != nil {
					return fmt.Errorf("start rpc front: %w", err)
				}
			}

			if cfg.Observability.Metrics.Enabled {
				go serveMetricsHTTP(cfg.Daemon.HTTPAddr)
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			ticker := time.NewTicker(10 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-sigCh:
					logging.Op().Info("shutdown signal received")
					if rpcServer != nil {
						rpcServer.Stop()
					}
					return nil
				case <-ticker.C:
					snapshot := metrics.Global().Snapshot()
					logging.Op().Debug("daemon status", "sandbox", snapshot["sandbox"])
				}
			}
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "HTTP metrics address")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level")
	cmd.Flags().StringVar(&rpcAddr, "rpc-addr", "", "gRPC front end address")

	return cmd
}

// serveMetricsHTTP exposes the JSON and Prometheus metrics endpoints. It
// runs for the daemon's lifetime; errors are logged, not fatal, since
// metrics serving is not on the critical path of serving actions.
func serveMetricsHTTP(addr string) {
	if addr == "" {
		return
	}
	mux := newMetricsMux()
	logging.Op().Info("metrics server started", "addr", addr)
	if err := httpListenAndServe(addr, mux); err != nil {
		logging.Op().Error("metrics server error", "error", err)
	}
}
