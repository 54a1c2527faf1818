// queue-simulator serves the analysis queue's 202 ladder locally so client
// work does not depend on the production queue.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/medancode420/PetPlantr/pkg/config"
	"github.com/medancode420/PetPlantr/pkg/jobstore"
	"github.com/medancode420/PetPlantr/pkg/simulator"
	"github.com/medancode420/PetPlantr/pkg/telemetry"
)

func main() {
	cfg, err := config.LoadSimulator()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer := telemetry.InitTracer(ctx, "queue-simulator")
	defer func() { _ = shutdownTracer(context.Background()) }()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("failed to open %s store: %v", cfg.Store, err)
	}
	defer closeStore()

	srv := simulator.New(store, simulator.Config{
		BaseURL:            cfg.BaseURL,
		RetryAfterSeconds:  cfg.RetryAfterSeconds,
		CompleteAfterPolls: cfg.CompleteAfterPolls,
	})

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("simulator shutdown error: %v", err)
		}
	}()

	log.Printf("queue simulator listening on %s (store: %s)", cfg.ListenAddr, cfg.Store)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("simulator listen failed: %v", err)
	}

	<-ctx.Done()
	log.Println("queue simulator stopped")
}

func openStore(cfg config.SimulatorConfig) (jobstore.Store, func(), error) {
	switch cfg.Store {
	case "memory":
		return jobstore.NewMemStore(), func() {}, nil
	case "redis":
		store, err := jobstore.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case "postgres":
		store, err := jobstore.NewPostgresStore(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store)
	}
}
