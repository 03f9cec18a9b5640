package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/config"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		config.EnvConfig, config.EnvDB, config.EnvIndex, config.EnvBackend,
		config.EnvLogLevel, config.EnvFirestoreProject, config.EnvFirestoreDatabase,
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	gt.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv(config.EnvDB, filepath.Join(dir, "memory.db"))

	cfg, err := config.Load("")
	gt.NoError(t, err)
	gt.Equal(t, cfg.Backend, config.BackendSQLite)
	gt.Equal(t, cfg.DBPath, filepath.Join(dir, "memory.db"))
	gt.Equal(t, cfg.IndexPath, filepath.Join(dir, "index.db"))
	gt.Equal(t, cfg.Retrieval.IndexTimeout, 2*time.Second)
	gt.Equal(t, cfg.Retrieval.Oversample, 2)
	gt.Equal(t, cfg.Scoring.Keyword, 0.4)
	gt.Equal(t, cfg.Graph.Fanout, 10)
	gt.Equal(t, cfg.Sweeper.Schedule, "@every 1h")
	gt.Equal(t, cfg.Sweeper.Batch, 100)
	gt.Equal(t, cfg.LogLevel, "warn")
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
db_path: /tmp/agent/memory.db
log_level: debug
retrieval:
  index_timeout: 500ms
  oversample: 3
scoring:
  keyword: 0.5
  recency_horizon_days: 30
graph:
  fanout: 4
sweeper:
  schedule: "*/10 * * * *"
`)

	cfg, err := config.Load(path)
	gt.NoError(t, err)
	gt.Equal(t, cfg.DBPath, "/tmp/agent/memory.db")
	gt.Equal(t, cfg.IndexPath, "/tmp/agent/index.db")
	gt.Equal(t, cfg.LogLevel, "debug")
	gt.Equal(t, cfg.Retrieval.IndexTimeout, 500*time.Millisecond)
	gt.Equal(t, cfg.Retrieval.Oversample, 3)
	gt.Equal(t, cfg.Scoring.Keyword, 0.5)
	gt.Equal(t, cfg.Scoring.Recency, 0.3)
	gt.Equal(t, cfg.Scoring.RecencyHorizonDays, 30.0)
	gt.Equal(t, cfg.Graph.Fanout, 4)
	gt.Equal(t, cfg.Sweeper.Schedule, "*/10 * * * *")
}

func TestLoadFromEnvPath(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "db_path: /tmp/env/memory.db\n")
	t.Setenv(config.EnvConfig, path)

	cfg, err := config.Load("")
	gt.NoError(t, err)
	gt.Equal(t, cfg.DBPath, "/tmp/env/memory.db")
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "backend: sqlite\ndb_path: /tmp/file/memory.db\n")
	t.Setenv(config.EnvDB, "/tmp/env/memory.db")
	t.Setenv(config.EnvIndex, "/tmp/env/search.db")
	t.Setenv(config.EnvBackend, "Firestore")
	t.Setenv(config.EnvFirestoreProject, "proj")

	cfg, err := config.Load(path)
	gt.NoError(t, err)
	gt.Equal(t, cfg.DBPath, "/tmp/env/memory.db")
	gt.Equal(t, cfg.IndexPath, "/tmp/env/search.db")
	gt.Equal(t, cfg.Backend, config.BackendFirestore)
	gt.Equal(t, cfg.Firestore.Project, "proj")
	gt.Equal(t, cfg.Firestore.Database, config.DefaultFirestoreDatabase)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvDB, filepath.Join(t.TempDir(), "memory.db"))

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	gt.Error(t, err)

	_, err = config.Load(writeConfig(t, "db_paht: typo\n"))
	gt.Error(t, err)

	_, err = config.Load(writeConfig(t, "backend: mongo\n"))
	gt.True(t, errors.Is(err, model.ErrValidation))

	_, err = config.Load(writeConfig(t, "backend: firestore\n"))
	gt.True(t, errors.Is(err, model.ErrValidation))

	_, err = config.Load(writeConfig(t, "scoring:\n  keyword: -1\n"))
	gt.True(t, errors.Is(err, model.ErrValidation))

	_, err = config.Load(writeConfig(t, "sweeper:\n  schedule: sometimes\n"))
	gt.True(t, errors.Is(err, model.ErrValidation))

	_, err = config.Load(writeConfig(t, "log_level: loud\n"))
	gt.True(t, errors.Is(err, model.ErrValidation))
}

func TestLoadEmptyFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvDB, filepath.Join(t.TempDir(), "memory.db"))
	cfg, err := config.Load(writeConfig(t, ""))
	gt.NoError(t, err)
	gt.Equal(t, cfg.Backend, config.BackendSQLite)
}
