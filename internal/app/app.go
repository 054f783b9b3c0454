// Package app assembles the predictor from its configuration.
package app

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/IlyassOtmani/car-price-ml/internal/api"
	"github.com/IlyassOtmani/car-price-ml/internal/audit"
	"github.com/IlyassOtmani/car-price-ml/internal/config"
	"github.com/IlyassOtmani/car-price-ml/internal/form"
	"github.com/IlyassOtmani/car-price-ml/internal/metric"
	"github.com/IlyassOtmani/car-price-ml/internal/predict"
	"github.com/IlyassOtmani/car-price-ml/internal/presets"
	"github.com/IlyassOtmani/car-price-ml/internal/server"
)

// App owns the server and every resource opened for it
type App struct {
	Server *server.Server

	closers []func() error
}

// Open loads the model and builds the server. On error everything opened so
// far has already been closed.
func Open(cfg config.Config) (*App, error) {
	a := &App{}
	if err := a.open(cfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) open(cfg config.Config) error {
	if err := metric.Init(cfg.StatsdAddr, cfg.AppName); err != nil {
		log.Warn().Err(err).Msg("Metrics disabled")
	}
	a.closers = append(a.closers, func() error {
		metric.Close()
		return nil
	})

	model, err := predict.LoadModel(cfg.ModelPath, cfg.TrustedTypes)
	if err != nil {
		return fmt.Errorf("failed to load model %s: %w", cfg.ModelPath, err)
	}
	info := model.Info()
	log.Info().
		Str("path", info.Source).
		Str("fingerprint", info.Fingerprint).
		Str("algorithm", info.Metadata.Algorithm).
		Msg("Model loaded")

	f, err := form.Load()
	if err != nil {
		return fmt.Errorf("failed to load form: %w", err)
	}
	store, err := presets.NewStore(cfg.PresetsDir, f.Examples())
	if err != nil {
		return fmt.Errorf("failed to open presets: %w", err)
	}

	opts := []predict.Option{predict.WithCache(cfg.CacheMB)}
	var history api.History
	if cfg.AuditDB != "" {
		auditStore, err := audit.Open(cfg.AuditDB, info.Fingerprint)
		if err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
		a.closers = append(a.closers, auditStore.Close)
		history = auditStore
		opts = append(opts, predict.WithRecorder(auditStore))
	}

	srv, err := server.New(cfg, server.Deps{
		Predictor: predict.New(model, opts...),
		Form:      f,
		Presets:   store,
		History:   history,
		Info:      info,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	a.Server = srv
	return nil
}

// Close releases resources in reverse opening order
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
