package main

import (
	"context"
	"fmt"
	"io"

	"apbn/internal/cli"
	"apbn/internal/config"
	"apbn/internal/loader"
	"apbn/internal/log"
	"apbn/internal/services"
	"apbn/internal/sheets/memory"
	"apbn/internal/storage"
)

// app holds what every subcommand needs to run the load pipeline.
type app struct {
	cfg          *config.Config
	logger       *log.Logger
	sources      []loader.Source
	loader       *loader.Loader
	closeReaders func() error
}

func newApp(ctx context.Context, opts *rootOptions, logOut io.Writer) (*app, error) {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return nil, err
	}
	logger := cli.SetupLogger(logOut, cfg.LogLevel, cfg.LogFormat)

	sources, err := cfg.Sources()
	if err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}

	var demo *memory.Store
	if opts.demo {
		sources = cli.DemoSources(sources)
		demo = memory.Demo(loader.Years(sources), opts.demoRows)
		logger.Info("Demo mode enabled", "rows_per_year", opts.demoRows)
	}

	reader, closeReaders, err := cli.NewReader(ctx, cfg, demo)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		sources: sources,
		loader: loader.New(reader, loader.Options{
			StrictColumns: cfg.StrictFileColumns,
			Concurrency:   cfg.LoadConcurrency,
		}, logger),
		closeReaders: closeReaders,
	}, nil
}

func (a *app) Close() {
	if err := a.closeReaders(); err != nil {
		a.logger.Warn("Failed to close source readers", log.FieldError, err)
	}
}

func (a *app) service(opts ...services.Option) *services.DatasetService {
	return services.NewDatasetService(a.loader, a.sources, a.logger, opts...)
}

// loadOnce runs a single CLI load, recording it in the load log when one is
// configured.
func (a *app) loadOnce(ctx context.Context) (*services.Dataset, error) {
	repo, err := cli.InitSQLite(a.logger, a.cfg.SQLiteDBPath)
	if err != nil {
		return nil, err
	}

	var opts []services.Option
	if repo != nil {
		defer closeRepo(a.logger, repo)
		opts = append(opts, services.WithRecorder(repo))
	}
	return a.service(opts...).Load(ctx, services.TriggerCLI), nil
}

func closeRepo(logger *log.Logger, repo *storage.SQLiteRepository) {
	if err := repo.Close(); err != nil {
		logger.Error("Failed to close load log", log.FieldComponent, log.ComponentStorage, log.FieldError, err)
		return
	}
	logger.Info("Load log closed", log.FieldComponent, log.ComponentStorage)
}
