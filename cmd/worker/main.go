package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pwa-builder/PWABuilder-sub006/internal/component"
	"github.com/pwa-builder/PWABuilder-sub006/internal/config"
	"github.com/pwa-builder/PWABuilder-sub006/internal/job_tracer"
	jobservice "github.com/pwa-builder/PWABuilder-sub006/internal/service/job_service"
	"github.com/pwa-builder/PWABuilder-sub006/internal/service/logger"
	"github.com/pwa-builder/PWABuilder-sub006/internal/worker"
)

// drainTimeout bounds how long shutdown waits for builds already running.
const drainTimeout = 15 * time.Minute

func main() {
	_ = godotenv.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatalf("Initialization error: %v", err)
	}
	logger.InitWithLevel(cfg.SERVICE_NAME, cfg.LOG_LEVEL)

	if cfg.TRACE_URL != "" {
		tp, err := job_tracer.InitTracer(ctx, cfg.SERVICE_NAME, cfg.TRACE_URL, cfg.ENVIRONMENT)
		if err != nil {
			log.Fatalf("error initialising trace: %v", err)
		}
		defer tp.Shutdown(context.Background())
	}

	workerCfg, err := config.GetWorkerConfig()
	if err != nil {
		log.Fatalf("worker config error: %v", err)
	}

	store, err := component.GetStore(ctx, cfg.STORE_TYPE)
	if err != nil {
		log.Fatalf("store initialization error: %v", err)
	}
	storage, err := component.GetStorage(cfg.STORAGE_TYPE)
	if err != nil {
		log.Fatalf("storage initialization error: %v", err)
	}
	tel, err := component.GetTelemetry(cfg.TELEMETRY_TYPE)
	if err != nil {
		log.Fatalf("telemetry initialization error: %v", err)
	}
	jobs, err := jobservice.NewJobService(store)
	if err != nil {
		log.Fatalf("job service initialization error: %v", err)
	}
	packager, lm, err := component.GetPackager()
	if err != nil {
		log.Fatalf("packager initialization error: %v", err)
	}

	opts := []worker.Option{worker.WithConfig(workerCfg)}
	var closeAudit func()
	if cfg.AUDIT_ENABLED {
		repo, d, err := component.GetAuditRepository(ctx)
		if err != nil {
			log.Fatalf("audit initialization error: %v", err)
		}
		closeAudit = d.Close
		opts = append(opts, worker.WithAuditor(repo))
	}

	if err := lm.Start(ctx); err != nil {
		log.Fatalf("cleanup initialization error: %v", err)
	}

	w := worker.New(jobs, packager, storage, tel, opts...)
	w.Start(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Log.Info().Msg("trying to shut down worker gracefully..")
	cancel()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), drainTimeout)
	defer drainCancel()
	if err := w.Wait(drainCtx); err != nil {
		logger.Log.Warn().Err(err).Msg("in-flight jobs did not finish before shutdown")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var wg sync.WaitGroup
	shutdown := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(shutdownCtx)
		}()
	}
	shutdown(lm.ShutDown)
	shutdown(store.ShutDown)
	shutdown(storage.ShutDown)
	shutdown(tel.ShutDown)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Log.Info().Msg("worker shutdown gracefully.")
	case <-shutdownCtx.Done():
		logger.Log.Info().Msg("worker graceful shutdown timedout..")
	}
	if closeAudit != nil {
		closeAudit()
	}
}
