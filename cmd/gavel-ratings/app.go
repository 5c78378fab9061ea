package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/ahrav/go-gavel-ratings/infrastructure/extraction"
	"github.com/ahrav/go-gavel-ratings/infrastructure/observability"
	"github.com/ahrav/go-gavel-ratings/infrastructure/persistence/sqlite"
	"github.com/ahrav/go-gavel-ratings/infrastructure/persistence/sqlite/repository"
	"github.com/ahrav/go-gavel-ratings/infrastructure/persistence/sqlite/uow"
	"github.com/ahrav/go-gavel-ratings/internal/application"
	"github.com/ahrav/go-gavel-ratings/internal/logging"
)

// generatorMode says whether a command needs the text generator.
type generatorMode int

const (
	noGenerator generatorMode = iota
	// optionalGenerator wires the analyzer when an API key is configured.
	optionalGenerator
	requiredGenerator
)

// app is the wired service graph for one command invocation.
type app struct {
	cfg     *application.AppConfig
	logger  zerolog.Logger
	db      *gorm.DB
	metrics *observability.PrometheusMetrics

	driver       *application.Driver
	consolidator *application.Consolidator
	maintenance  *application.Maintenance
	// analyzer is nil unless a generator was wired.
	analyzer *application.Analyzer
}

func newApp(ctx context.Context, opts *rootOptions, logOut io.Writer, mode generatorMode) (*app, error) {
	cfg, err := application.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	logging.Configure(logging.Config{
		Level:  logging.Level(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
		Output: logOut,
	})
	logger := logging.Logger()

	db, err := sqlite.Open(ctx, sqlite.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN}, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, db: db, metrics: observability.NewPrometheusMetrics()}
	if err := a.wire(mode); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(mode generatorMode) error {
	store := application.Store{
		Faculty:    repository.NewFacultyRepository(a.db),
		Reviews:    repository.NewReviewRepository(a.db),
		UnitOfWork: uow.NewUnitOfWork(a.db),
	}
	opts := []application.Option{application.WithLogger(a.logger), application.WithMetrics(a.metrics)}

	var err error
	if a.driver, err = application.NewDriver(store, opts...); err != nil {
		return err
	}
	if a.consolidator, err = application.NewConsolidator(store, opts...); err != nil {
		return err
	}
	if a.maintenance, err = application.NewMaintenance(store, opts...); err != nil {
		return err
	}
	if mode == noGenerator {
		return nil
	}

	gen, err := newGenerator(a.cfg.LLM, a.metrics)
	if err != nil {
		if mode == optionalGenerator {
			a.logger.Warn().Err(err).Str("provider", a.cfg.LLM.Provider).Msg("analysis disabled")
			return nil
		}
		return fmt.Errorf("configure %s generator: %w", a.cfg.LLM.Provider, err)
	}
	a.analyzer, err = application.NewAnalyzer(application.AnalyzerDeps{
		Driver:       a.driver,
		Consolidator: a.consolidator,
		Generator:    gen,
		Extractor:    extraction.New(),
	}, a.cfg.Analysis, opts...)
	return err
}

// Close releases the database.
func (a *app) Close() error {
	if a.db == nil {
		return nil
	}
	return sqlite.Close(a.db)
}

// withApp wires an app for the command, runs fn and tears the app down.
func withApp(opts *rootOptions, mode generatorMode, fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd.Context(), opts, cmd.ErrOrStderr(), mode)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.Close(); cerr != nil {
				err = errors.Join(err, fmt.Errorf("close database: %w", cerr))
			}
		}()

		log := a.logger.With().Str("command", cmd.CommandPath()).Logger()
		if err := fn(cmd, args, a); err != nil {
			log.Error().Err(err).Msg("command failed")
			return err
		}
		return nil
	}
}

// printJSON writes v to the command's output as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
