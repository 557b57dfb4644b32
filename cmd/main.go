package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"chat-hub/auth"
	"chat-hub/moderation"
	"chat-hub/repositories"
	"chat-hub/runtime"
	"chat-hub/runtime/workers"
	"chat-hub/search"
	"chat-hub/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes every component and centralizes error reporting, so
// deferred cleanups (database close in particular) always execute
// before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := newLogger(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Domain services
	censored, err := moderation.LoadCensoredWords()
	if err != nil {
		return fmt.Errorf("censored words loading failed: %w", err)
	}
	log.Info("Censored words loaded", "count", len(censored.Words), "languages", censored.Languages)

	filter, err := moderation.NewFilter(censored.Words, config.ModerationCharReplacement)
	if err != nil {
		return fmt.Errorf("moderation filter build failed: %w", err)
	}

	index, err := search.Open(config.BlugeFilepath, log)
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = index.Close()
	}()

	store := repositories.NewStore(db, log, config.LimitMessages)
	notifications := repositories.NewNotificationRepository(db, log)
	verifier := auth.NewVerifier(config.JWTSecret)

	engine := runtime.NewEngine(log, verifier, store, notifications,
		config.ConnectionBufferSize, config.BufferSize).
		WithModeration(filter).
		WithIndexer(index)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Supervision: the dispatcher is the one long-lived worker.
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(engine.Dispatcher(), workers.NewTelemetryWorker(log, engine, config.MetricInterval))
	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 6. HTTP & websocket server
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	srv := server.New(log, engine, verifier, store, notifications, index, address)
	if err := srv.Run(ctx); err != nil {
		sup.Stop()
		<-supDone
		return err
	}

	// 7. Final cleanup
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")
	return nil
}

func newLogger(level string) *slog.Logger {
	var slogLevel slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		slogLevel = slog.LevelDebug
	case "WARN":
		slogLevel = slog.LevelWarn
	case "ERROR":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel}))
}
