package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/himanishpuri/barricade/internal/config"
	"github.com/himanishpuri/barricade/pkg/barricade"
	"github.com/himanishpuri/barricade/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	log := cfg.Logger()
	logger.SetDefault(log)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts, err := cfg.Options(ctx, log)
	if err != nil {
		log.Fatalf("Failed to configure service: %v", err)
	}
	service, err := barricade.NewService(append(opts, barricade.WithRegisterer(reg))...)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	server := NewServer(service, cfg.Server, cfg.Clips.TempDir, reg, log)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Infof("🚀 Barricade server starting on %s", cfg.Server.Addr)
		log.Infof("   Database: %s (%s)", cfg.Database.Path, cfg.Database.Driver)
		log.Infof("   CORS Origins: %v", cfg.Server.Origins)
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Server failed: %v", err)
		}
	case <-ctx.Done():
		log.Infof("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Shutdown: %v", err)
	}
}
