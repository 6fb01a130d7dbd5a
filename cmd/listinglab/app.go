package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/alejandrodnm/listinglab/config"
	"github.com/alejandrodnm/listinglab/internal/adapters/marketplace"
	"github.com/alejandrodnm/listinglab/internal/adapters/notify"
	"github.com/alejandrodnm/listinglab/internal/adapters/storage"
	"github.com/alejandrodnm/listinglab/internal/application/engine"
)

// app contiene las dependencias compartidas por todos los comandos.
type app struct {
	cfg     *config.Config
	engine  *engine.Engine
	store   *storage.SQLiteStorage
	console *notify.Console
}

type appOptions struct {
	simulate bool
	table    bool
}

// openApp carga la configuración, prepara el logging y conecta el engine con
// el client del marketplace y el storage SQLite.
func openApp(g *globalOptions, out io.Writer, opts appOptions) (*app, error) {
	cfg, err := config.Load(g.resolveConfigPath())
	if err != nil {
		return nil, err
	}
	if g.verbose {
		cfg.Log.Level = "debug"
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}
	setupLogger(cfg.Log)

	client := marketplace.NewClient(cfg.API.BaseURL, cfg.API.Token)
	eng := engine.New(client, client, engine.Options{
		MinimumSampleSize:       cfg.Engine.MinimumSampleSize,
		MinimumConversionEvents: cfg.Engine.MinimumConversionEvents,
		MaximumDurationDays:     cfg.Engine.MaximumDurationDays,
		EarlyStoppingThreshold:  cfg.Engine.EarlyStoppingThreshold,
		SimulateMetrics:         cfg.Engine.SimulateMetrics || opts.simulate,
	})
	if eng.Options().SimulateMetrics {
		slog.Warn("metrics simulation enabled: failed fetches are replaced by synthetic counters")
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("open storage %q: %w", cfg.Storage.DSN, err)
	}

	return &app{
		cfg:     cfg,
		engine:  eng,
		store:   store,
		console: notify.NewConsoleWriter(out, opts.table),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("closing storage", "err", err)
	}
}

// resolveConfigPath devuelve el valor de --config, o "" si el archivo por
// defecto no existe, y entonces bastan env y defaults.
func (g *globalOptions) resolveConfigPath() string {
	if g.configPath != defaultConfigPath {
		return g.configPath
	}
	if _, err := os.Stat(defaultConfigPath); errors.Is(err, fs.ErrNotExist) {
		return ""
	}
	return defaultConfigPath
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Los logs van a stderr; stdout queda para la salida del comando.
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
