package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wealthsync/internal/app"
	"wealthsync/internal/config"
	"wealthsync/internal/database"
	"wealthsync/internal/logger"
	"wealthsync/internal/scheduler"
)

func main() {
	runJob := flag.String("run", "", "run a single job once and exit (networth_snapshot, holding_price_refresh, connection_sync, fund_price_fetch)")
	flag.Parse()

	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(*runJob); err != nil {
		logger.Get().Fatalf("Worker error: %v", err)
	}
}

func run(runJob string) error {
	log := logger.Get()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbManager, err := database.NewManager(database.NewConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() { _ = dbManager.Close() }()

	svc := app.NewServices(cfg, dbManager.DB())
	jobs := scheduler.BuildJobs(svc.Services, cfg.Jobs, time.Now)
	sched := scheduler.New(cfg.Jobs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runJob != "" {
		job, err := scheduler.Find(jobs, runJob)
		if err != nil {
			return err
		}
		return sched.RunJob(ctx, job)
	}

	for _, job := range jobs {
		if err := sched.Register(job); err != nil {
			return err
		}
	}

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("metrics server failed", "error", err)
		}
	}()

	sched.Start()
	log.Infow("worker started", "jobs", len(jobs), "metrics_port", cfg.MetricsPort)

	<-ctx.Done()
	log.Info("Shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	return sched.Stop(shutdownCtx)
}
