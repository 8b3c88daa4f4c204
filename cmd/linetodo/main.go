package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/yanoazi/line-todo-bot/internal/database"
	"github.com/yanoazi/line-todo-bot/internal/line"
	"github.com/yanoazi/line-todo-bot/internal/logging"
	"github.com/yanoazi/line-todo-bot/internal/server"
)

func main() {
	// Missing .env is fine; real deployments use environment variables.
	_ = godotenv.Load()

	logger := logging.Setup(os.Getenv("LOG_LEVEL"))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "linetodo.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	lineClient := line.NewClient(os.Getenv("LINE_CHANNEL_ACCESS_TOKEN"))
	if !lineClient.Configured() {
		slog.Warn("LINE_CHANNEL_ACCESS_TOKEN not set, outgoing messages disabled")
	}

	cfg := server.Config{
		ChannelSecret:  os.Getenv("LINE_CHANNEL_SECRET"),
		APIKey:         os.Getenv("API_KEY"),
		DefaultGroupID: os.Getenv("LINE_GROUP_ID"),
	}
	if cfg.ChannelSecret == "" {
		slog.Warn("LINE_CHANNEL_SECRET not set, webhook signatures will be rejected")
	}

	srv := server.New(db, lineClient, cfg, logger)

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Periodic rate limiter cleanup.
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("line-todo-bot starting", "addr", ":"+port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cleanupCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
