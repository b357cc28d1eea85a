// Package cli provides common CLI initialization utilities shared by the
// apbn subcommands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"apbn/internal/amqp"
	"apbn/internal/config"
	"apbn/internal/loader"
	"apbn/internal/log"
	"apbn/internal/sheets"
	"apbn/internal/sheets/google"
	"apbn/internal/sheets/memory"
	"apbn/internal/sheets/object"
	"apbn/internal/sheets/xlsx"
	"apbn/internal/storage"
)

// SetupLogger initializes structured logging for the given level and format
// and installs it as the default logger.
func SetupLogger(w io.Writer, level, format string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Component: log.ComponentApp,
		Handler:   log.NewHandler(w, format, level),
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// InitSQLite opens the load log, or returns nil when it is disabled.
func InitSQLite(logger *log.Logger, dbPath string) (*storage.SQLiteRepository, error) {
	if dbPath == "" {
		logger.Info("Load log disabled", log.FieldComponent, log.ComponentStorage)
		return nil, nil
	}
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initialize load log at %s: %w", dbPath, err)
	}
	version, dirty, err := storage.SchemaVersion(dbPath)
	if err != nil {
		logger.Warn("Could not read load log schema version", log.FieldComponent, log.ComponentStorage, log.FieldError, err)
	}
	logger.Info("Load log ready", log.FieldComponent, log.ComponentStorage,
		"path", dbPath, "schema_version", version, "dirty", dirty)
	return repo, nil
}

// InitAMQP connects the load notifier, or returns nil when AMQP_URL is unset.
// A broker that stays unreachable is logged and notifications are skipped.
func InitAMQP(ctx context.Context, logger *log.Logger, cfg *config.Config) *amqp.Client {
	if cfg.AMQPURL == "" {
		return nil
	}
	client, err := amqp.Connect(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger, 5)
	if err != nil {
		logger.Warn("Load notifications disabled: broker unreachable",
			log.FieldComponent, log.ComponentAMQP, log.FieldError, err)
		return nil
	}
	return client
}

// NewReader wires the spreadsheet readers: local xlsx files by default,
// gsheets:// when Google sources are configured, gs:// and s3:// for object
// store sources, and mem:// for the demo store when one is given. The
// returned func releases the object store clients.
func NewReader(ctx context.Context, cfg *config.Config, demo *memory.Store) (*sheets.Router, func() error, error) {
	router := sheets.NewRouter(xlsx.NewReader(cfg.DataDir))
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	if cfg.UsesGoogleSheets() {
		client, err := google.NewFromEnv(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("google sheets reader: %w", err)
		}
		router.Handle(google.Scheme, client)
	}
	if cfg.UsesScheme(object.SchemeGCS) {
		r, err := object.NewGCS(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("cloud storage reader: %w", err)
		}
		router.Handle(r.Scheme(), r)
		closers = append(closers, r.Close)
	}
	if cfg.UsesScheme(object.SchemeS3) {
		r, err := object.NewS3(ctx)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("s3 reader: %w", err)
		}
		router.Handle(r.Scheme(), r)
		closers = append(closers, r.Close)
	}
	if demo != nil {
		router.Handle(memory.Scheme, demo)
	}
	return router, closeAll, nil
}

// DemoSources addresses the demo store for the configured years.
func DemoSources(sources []loader.Source) []loader.Source {
	out := make([]loader.Source, len(sources))
	for i, s := range sources {
		out[i] = loader.Source{Year: s.Year, Location: memory.Scheme + "://" + s.Year}
	}
	return out
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when cleanup is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}
