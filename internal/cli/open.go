package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/config"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/graph"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/index"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/kv"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/logging"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/memory"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/retrieval"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/scoring"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/store"
)

// loadConfig reads the config file and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
		if indexPath == "" && os.Getenv(config.EnvIndex) == "" {
			cfg.IndexPath = filepath.Join(filepath.Dir(dbPath), "index.db")
		}
	}
	if indexPath != "" {
		cfg.IndexPath = indexPath
	}
	if backend != "" {
		cfg.Backend = backend
	}
	if noIndex {
		cfg.Index.Disabled = true
	}
	if logLevel == "" && os.Getenv(config.EnvLogLevel) == "" && cfg.LogLevel != "" {
		logging.SetDefault(logging.New(cfg.LogLevel, os.Stderr))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openBackend(ctx context.Context, cfg *config.Config) (kv.Store, error) {
	switch cfg.Backend {
	case config.BackendFirestore:
		var opts []kv.FirestoreOption
		if cfg.Firestore.Collection != "" {
			opts = append(opts, kv.WithCollection(cfg.Firestore.Collection))
		}
		return kv.NewFirestore(ctx, cfg.Firestore.Project, cfg.Firestore.Database, opts...)
	default:
		return kv.NewSQLite(cfg.DBPath)
	}
}

// openService wires the store, index and scorer described by cfg.
func openService(ctx context.Context, cfg *config.Config) (*memory.Service, error) {
	kvs, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, goerr.Wrap(err, "open primary store", goerr.V("backend", cfg.Backend))
	}
	st := store.New(kvs)

	var sync *index.Synchronizer
	if !cfg.Index.Disabled {
		fts, err := index.NewFTS(cfg.IndexPath)
		if err != nil {
			st.Close()
			return nil, goerr.Wrap(err, "open search index", goerr.V("path", cfg.IndexPath))
		}
		sync = index.NewSynchronizer(fts, index.WithQueueSize(cfg.Index.QueueSize))
	}

	svc, err := memory.New(st, sync, scoring.New(cfg.Scoring),
		memory.WithRetrievalOptions(
			retrieval.WithIndexTimeout(cfg.Retrieval.IndexTimeout),
			retrieval.WithOversample(cfg.Retrieval.Oversample),
		),
		memory.WithGraphOptions(
			graph.WithFanout(cfg.Graph.Fanout),
			graph.WithCacheSize(cfg.Graph.CacheSize),
			graph.WithSimilarity(graph.Jaccard, cfg.Graph.SimilarityThreshold),
		),
	)
	if err != nil {
		if sync != nil {
			sync.Close()
		}
		st.Close()
		return nil, err
	}
	return svc, nil
}

// mustOpen loads config and opens the service, exiting on failure.
func mustOpen(ctx context.Context) (*memory.Service, *config.Config) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	svc, err := openService(ctx, cfg)
	if err != nil {
		exitErr("open store", err)
	}
	return svc, cfg
}
