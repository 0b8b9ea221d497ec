package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/terminal-bench/noticeflow/internal/config"
	"github.com/terminal-bench/noticeflow/internal/notices"
	"github.com/terminal-bench/noticeflow/internal/revival"
	"github.com/terminal-bench/noticeflow/internal/suspension"
	"github.com/terminal-bench/noticeflow/pkg/messaging"
	"github.com/terminal-bench/noticeflow/pkg/suspensionapi"
)

func main() {
	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	var events *messaging.Client
	if cfg.NATSURL != "" {
		events, err = messaging.NewClient(messaging.Config{
			URL:           cfg.NATSURL,
			Name:          "revival-batch",
			ReconnectWait: time.Second,
			MaxReconnects: 5,
		})
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer events.Close()
	}

	api := suspensionapi.NewClient(suspensionapi.Config{
		BaseURL: cfg.SuspensionAPIURL,
		Timeout: cfg.SuspensionAPITimeout,
	})

	var publisher revival.EventPublisher
	if events != nil {
		publisher = events
	}
	engine := revival.NewEngine(
		suspension.NewLedger(db),
		notices.NewStore(db),
		api,
		publisher,
		cfg.BatchParallelism,
		cfg.InvestigationHoldDays,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("revival batch interrupted, cancelling")
		cancel()
	}()

	start := time.Now()
	results := engine.Run(ctx)

	var failed int
	for _, r := range results {
		failed += r.Failed
	}
	log.Printf("revival batch complete in %s, %d pass(es), %d failure(s)",
		time.Since(start).Round(time.Millisecond), len(results), failed)
	if failed > 0 {
		os.Exit(1)
	}
}
