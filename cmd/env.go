package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/health-atlas/atlas-cli/internal/pipeline"
	"github.com/health-atlas/atlas-cli/internal/source"
	"github.com/health-atlas/atlas-cli/internal/store"
)

// pipelineEnv holds the initialized store and pipeline shared by the
// validate/batch/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.Path
		if dsn == "" {
			dsn = "atlas.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPipeline sets up the store and builds the validation pipeline. The
// collector set is stubbed when sources.offline is set, live otherwise.
// Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	collectors := source.NewLiveSet(cfg.Sources)
	if cfg.Sources.Offline {
		collectors = source.StubSet()
	}

	return &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.New(collectors, cfg),
	}, nil
}
