package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nutreterra/api/internal/auth"
	"github.com/nutreterra/api/internal/config"
	"github.com/nutreterra/api/internal/database"
	"github.com/nutreterra/api/internal/notify"
	"github.com/nutreterra/api/internal/router"
	"github.com/nutreterra/api/internal/session"
	"github.com/nutreterra/api/internal/ws"
	"github.com/redis/go-redis/v9"
)

func main() {
	// .env is a development convenience; absence is fine.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("WARN: load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping database: %v", err)
	}
	queries := database.New(pool)

	// Redis backs cookie sessions. Without it the API still works in
	// JWT-only mode.
	var sessions *session.Store
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("WARN: redis unavailable, cookie sessions disabled: %v", err)
	} else {
		sessions = session.NewStore(rdb, auth.TokenTTL)
	}

	hub := ws.NewHub()
	go hub.Run()

	var publisher *notify.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = notify.NewPublisher(cfg.AMQPURL)
		if err != nil {
			log.Printf("WARN: rabbitmq unavailable, broker events disabled: %v", err)
		} else {
			defer publisher.Close()
		}
	}
	notifier := notify.NewNotifier(hub, publisher)

	r := router.New(cfg, queries, pool, sessions, hub, notifier)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: shutdown: %v", err)
	}
}
