package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kense.org/internal/audit"
	"kense.org/internal/auth"
	"kense.org/internal/config"
	"kense.org/internal/httpapi"
	"kense.org/internal/obs"
	"kense.org/internal/store/pg"
)

var version = "0.3.1"

func main() {
	// .env удобен локально; в проде переменные приходят из окружения
	_ = godotenv.Load()

	// Инициализация observability (регистрация метрик, JSON-логгер и т.п.)
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("KENSE_COMMIT"))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.PGDSN == "" {
		log.Fatal("missing KENSE_PG_DSN: the directory store is required")
	}

	store, err := pg.Open(cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	tracker := auth.NewTracker(cfg.TrackerConfig())
	defer tracker.Stop()

	issuer, err := auth.NewIssuer(cfg.TokenSecret, cfg.TokenTTL())
	if err != nil {
		log.Fatalf("issuer: %v", err)
	}

	sink := audit.NewSink()
	svc, err := auth.NewService(store, tracker, issuer, auth.WithAuditSink(sink))
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	admin, err := auth.NewAdminService(store, tracker, sink)
	if err != nil {
		log.Fatalf("admin service: %v", err)
	}

	api := httpapi.New(httpapi.Options{
		Service:    svc,
		Admin:      admin,
		Guard:      auth.NewGuard(store, issuer),
		ReadyProbe: httpapi.ReadyProbe{DB: store.DB()},
		Version:    version,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting kense-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = store.Close()
	log.Println("Stopped")
}
