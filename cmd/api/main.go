package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanwahyu/automaton-review/internal/bootstrap"
	"github.com/bryanwahyu/automaton-review/internal/config"
	"github.com/bryanwahyu/automaton-review/internal/infra/ai"
	"github.com/bryanwahyu/automaton-review/internal/infra/httpserver"
	"github.com/bryanwahyu/automaton-review/internal/middleware"
)

func main() {
	// path config.yaml; an explicit CONFIG_PATH must exist
	path, required := "config.yaml", false
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path, required = v, true
	}

	cfg, err := config.Load(path, required)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// one client for the process, shared by every request
	svc := bootstrap.NewReviewService(ctx, cfg)
	log.Printf("ai provider=%s configured=%t", svc.Client.Name(), ai.Configured(svc.Client))

	opts := httpserver.Options{
		MaxUploadBytes: cfg.Limits.MaxUploadBytes,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Readiness: map[string]middleware.HealthChecker{
			"scratch_dir": middleware.ScratchDirChecker{Dir: cfg.Limits.ScratchDir},
			"ai_provider": middleware.ProviderChecker{Configured: func() bool { return ai.Configured(svc.Client) }},
		},
	}
	if cfg.RateLimit.Enabled {
		rl, err := middleware.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSecond, cfg.RateLimit.MaxClients)
		if err != nil {
			log.Fatalf("rate limiter init error: %v", err)
		}
		opts.RateLimiter = rl
	}

	addr := cfg.Addr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpserver.NewRouter(svc, opts),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	// in-flight analyses wait on the model, give them time to finish
	ctx2, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
