package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mtreport-backend/internal/chrono"
	"mtreport-backend/internal/config"
	"mtreport-backend/internal/localstore"
	"mtreport-backend/internal/remotestore"
	"mtreport-backend/internal/telemetry"
)

// env is what a command needs, opened from the config file.
type env struct {
	cfg       config.Config
	tel       telemetry.API
	local     *localstore.Store
	remote    *remotestore.Store
	providers telemetry.Providers
	closers   []func()
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.ReadRecursively[config.Config](configName)
	if err != nil {
		return config.Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openEnv loads the config and opens the local store, and the remote store
// when withRemote is set.
func openEnv(ctx context.Context, withRemote bool) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, tel: telemetry.SlogAPI{}}

	e.providers, err = telemetry.Setup(ctx, "mtreport", cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("set up telemetry: %w", err)
	}
	e.closers = append(e.closers, func() {
		if err := e.providers.Shutdown(context.Background()); err != nil {
			slog.Warn("failed to flush telemetry", "err", err)
		}
	})

	db, err := cfg.Local.OpenDB()
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("open local store: %w", err)
	}
	e.closers = append(e.closers, func() { db.Close() })
	e.local = localstore.NewStore(db, chrono.NewStandardTime(), e.tel)
	if err := e.local.Migrate(ctx); err != nil {
		e.Close()
		return nil, err
	}

	if !withRemote {
		return e, nil
	}
	if !cfg.Remote.Enabled() {
		e.Close()
		return nil, errors.New("remote.conn_string is not configured")
	}
	pool, err := cfg.Remote.OpenPool(ctx)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("open remote store: %w", err)
	}
	e.closers = append(e.closers, pool.Close)
	e.remote = remotestore.NewStore(pool, cfg.Aliases, cfg.Remote.RetryPolicy(), cfg.Remote.BatchSize, e.tel)
	if err := e.remote.Migrate(ctx); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}
