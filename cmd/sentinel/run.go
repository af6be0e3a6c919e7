package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/miradorstack/mirador-sentinel/internal/api"
	"github.com/miradorstack/mirador-sentinel/internal/bridge"
	"github.com/miradorstack/mirador-sentinel/internal/config"
	"github.com/miradorstack/mirador-sentinel/internal/engine"
	"github.com/miradorstack/mirador-sentinel/internal/extractors"
	"github.com/miradorstack/mirador-sentinel/internal/ledger"
	"github.com/miradorstack/mirador-sentinel/internal/metrics"
	"github.com/miradorstack/mirador-sentinel/internal/models"
	"github.com/miradorstack/mirador-sentinel/internal/services"
	"github.com/miradorstack/mirador-sentinel/internal/utils"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the monitor loop and the feedback control surface",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg)
	},
}

func init() {
	runCmd.Flags().String("config", "", "Path to configuration file")
	rootCmd.AddCommand(runCmd)
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting sentinel",
		slog.String("address", cfg.Server.Address),
		slog.String("bridge", cfg.Bridge.Address),
		slog.String("ledger", cfg.Ledger.Path))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	thresholds := models.Thresholds{
		Suspicious: cfg.Alerts.SuspiciousThreshold,
		High:       cfg.Alerts.HighThreshold,
	}

	feedbackLedger := ledger.New(cfg.Ledger.Path, logger)
	alertEngine := engine.New(logger, feedbackLedger, engine.Config{
		Thresholds:     thresholds,
		FeedbackWindow: cfg.Alerts.FeedbackWindow,
	})
	bridgeClient := bridge.NewClient(bridge.Config{
		Address:         cfg.Bridge.Address,
		Token:           cfg.Bridge.Token,
		DialTimeout:     cfg.Bridge.DialTimeout,
		ReadTimeout:     cfg.Bridge.ReadTimeout,
		MaxPayloadBytes: cfg.Bridge.MaxPayloadBytes,
		RequiredFields:  cfg.Bridge.RequiredFields,
	})

	board := services.NewBoard()
	feedbackService := services.NewFeedbackService(logger, alertEngine, board)

	server, err := api.NewServer(cfg.Server, feedbackService)
	if err != nil {
		return fmt.Errorf("create gRPC server: %w", err)
	}

	monitor := services.NewMonitor(
		logger,
		bridgeClient,
		extractors.NewSampleExtractor(thresholds),
		alertEngine,
		services.Sinks{board, api.NewHealthSink(server)},
		cfg.Bridge.PollInterval,
	)

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return monitor.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("gRPC server listening", slog.String("address", server.Address()))
		if err := server.Start(); err != nil {
			return fmt.Errorf("gRPC server exited: %w", err)
		}
		return nil
	})

	if metricsServer != nil {
		g.Go(func() error {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server exited: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.GracefulTimeout())
		defer cancel()
		server.Shutdown(shutdownCtx)

		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server shutdown", slog.Any("error", err))
			}
		}
		return nil
	})

	err = g.Wait()
	logger.Info("sentinel stopped")
	return err
}
