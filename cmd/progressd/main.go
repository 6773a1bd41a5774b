package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/inspection-tracker/internal/app"
	"github.com/joseph-ayodele/inspection-tracker/internal/async"
	"github.com/joseph-ayodele/inspection-tracker/internal/common"
	"github.com/joseph-ayodele/inspection-tracker/internal/ingest"
	"github.com/joseph-ayodele/inspection-tracker/internal/progress"
)

const (
	watchDebounce   = 2 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	cfg := common.LoadConfig()
	logger := app.NewLogger(os.Stdout, cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.New(ctx, cfg, logger, app.Options{RequireProviders: true})
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	if err := svc.DB.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	// Progress weights hot reload
	if _, err := os.Stat(cfg.ProgressConfigPath); err != nil {
		logger.Warn("progress config file missing, hot reload disabled", "path", cfg.ProgressConfigPath)
	} else {
		mgr, err := progress.NewConfigManager(cfg.ProgressConfigPath, logger)
		if err != nil {
			logger.Error("failed to load progress config", "error", err)
			os.Exit(1)
		}
		mgr.OnChange(func(c progress.Config) {
			if err := svc.Progress.SetConfig(c); err != nil {
				logger.Warn("progress.config.apply_failed", "error", err)
			}
		})
		mgr.WatchConfig()
	}

	// Single worker keeps ingestions sequential
	w := newWorker(svc, logger)
	queue := async.NewQueue(w.handle, logger,
		async.WithWorkers(1),
		async.WithQueueSize(512),
		async.WithProcessTimeout(15*time.Minute),
	)

	events, watchErrs, err := ingest.Watch(ctx, ingest.WatchConfig{
		Roots:       []string{cfg.Ingest.InboxDir},
		InitialScan: true,
		Debounce:    watchDebounce,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to watch inbox", "dir", cfg.Ingest.InboxDir, "error", err)
		os.Exit(1)
	}
	go func() {
		for path := range events {
			if err := queue.Enqueue(ctx, async.Job{Path: path}); err != nil && !errors.Is(err, async.ErrClosed) {
				logger.Warn("inbox.enqueue.failed", "path", path, "error", err)
			}
		}
	}()
	go func() {
		for err := range watchErrs {
			logger.Warn("inbox.watch.error", "error", err)
		}
	}()

	go w.cron(ctx, queue, cfg.Ingest.CronInterval, cfg.Ingest.CronBatchSize)

	// gRPC health + reflection
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	go watchHealth(ctx, svc, healthServer, cfg.Server.HealthCheckInterval, logger)

	logger.Info("progressd listening",
		"addr", cfg.Server.GRPCAddr,
		"inbox", cfg.Ingest.InboxDir,
		"documents", cfg.Ingest.DocumentsDir,
		"project", svc.Project.Name,
	)
	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("grpc serve failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	queue.Shutdown(shutdownCtx)
	logger.Info("stopped")
}

// watchHealth mirrors database reachability into the gRPC health status.
func watchHealth(ctx context.Context, svc *app.Services, hs *health.Server, every time.Duration, logger *slog.Logger) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		err := svc.DB.HealthCheck(ctx, every/2)
		switch {
		case err != nil && serving:
			logger.Warn("health.db.down", "error", err)
			hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
			serving = false
		case err == nil && !serving:
			logger.Info("health.db.up")
			hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
			serving = true
		}
	}
}
