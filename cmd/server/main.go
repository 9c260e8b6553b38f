package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pwa-builder/PWABuilder-sub006/internal/component"
	"github.com/pwa-builder/PWABuilder-sub006/internal/config"
	"github.com/pwa-builder/PWABuilder-sub006/internal/job_tracer"
	"github.com/pwa-builder/PWABuilder-sub006/internal/lifecycle"
	jobservice "github.com/pwa-builder/PWABuilder-sub006/internal/service/job_service"
	"github.com/pwa-builder/PWABuilder-sub006/internal/service/logger"
	"github.com/pwa-builder/PWABuilder-sub006/internal/web"
)

func main() {
	_ = godotenv.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger.InitWithLevel(cfg.SERVICE_NAME, cfg.LOG_LEVEL)

	if cfg.TRACE_URL != "" {
		tp, err := job_tracer.InitTracer(ctx, cfg.SERVICE_NAME, cfg.TRACE_URL, cfg.ENVIRONMENT)
		if err != nil {
			log.Fatalf("error initialising trace: %v", err)
		}
		defer tp.Shutdown(context.Background())
	}

	serverCfg, err := config.GetServerConfig()
	if err != nil {
		log.Fatalf("server config error: %v", err)
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

	opts := []web.Option{web.WithServerConfig(serverCfg)}

	// synchronous packaging is only served where the toolchain is installed
	var lm *lifecycle.Manager
	if os.Getenv("PROJECT_GENERATOR") != "" {
		packager, m, err := component.GetPackager()
		if err != nil {
			log.Fatalf("packager initialization error: %v", err)
		}
		if err := m.Start(ctx); err != nil {
			log.Fatalf("cleanup initialization error: %v", err)
		}
		lm = m
		opts = append(opts, web.WithPackager(packager))
	}

	server := web.NewServer(jobs, storage, tel, opts...)

	srv := &http.Server{
		Addr:              serverCfg.ADDR,
		Handler:           server.Router(),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Minute,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Log.Info().Str("addr", serverCfg.ADDR).Msg("HTTP server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Log.Info().Msg("trying to shutdown server gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("graceful shutdown failed")
	}

	var wg sync.WaitGroup
	shutdown := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(shutdownCtx)
		}()
	}
	shutdown(store.ShutDown)
	shutdown(storage.ShutDown)
	shutdown(tel.ShutDown)
	if lm != nil {
		shutdown(lm.ShutDown)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Log.Info().Msg("server shutdown gracefully.")
	case <-shutdownCtx.Done():
		logger.Log.Info().Msg("server graceful shutdown timedout..")
	}
}
