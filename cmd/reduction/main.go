package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/terminal-bench/noticeflow/internal/config"
	"github.com/terminal-bench/noticeflow/internal/notices"
	"github.com/terminal-bench/noticeflow/internal/reduction"
	"github.com/terminal-bench/noticeflow/internal/rules"
	"github.com/terminal-bench/noticeflow/internal/suspension"
	"github.com/terminal-bench/noticeflow/pkg/messaging"
)

func main() {
	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		cache = redis.NewClient(opts)
	}

	var events *messaging.Client
	if cfg.NATSURL != "" {
		events, err = messaging.NewClient(messaging.Config{
			URL:           cfg.NATSURL,
			Name:          "reduction-service",
			ReconnectWait: time.Second,
			MaxReconnects: 5,
		})
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
	}

	ruleService := rules.NewService(db, cache, cfg.RuleCacheTTL)
	ledger := suspension.NewLedger(db)
	noticeStore := notices.NewStore(db)

	validator := reduction.NewValidator(ruleService, time.Now)
	persistence := reduction.NewPersistenceService(db, ledger)
	audit := reduction.NewAuditService(nil)
	if events != nil {
		audit = reduction.NewAuditService(events)
	}
	service := reduction.NewService(noticeStore, validator, persistence, audit, cfg.ReductionRetryAttempts)

	r := gin.Default()
	reduction.NewHandler(service).RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("reduction service listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if events != nil {
		events.Close()
	}
	if cache != nil {
		cache.Close()
	}
	db.Close()
}
