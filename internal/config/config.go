// Package config loads agent-memory settings from an optional YAML file with
// environment overrides.
package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/graph"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/index"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/logging"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/retrieval"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/scoring"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/sweeper"
)

const (
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"

	DefaultFirestoreDatabase = "(default)"
)

// Environment variables that override file values.
const (
	EnvConfig            = "AGENT_MEMORY_CONFIG"
	EnvDB                = "AGENT_MEMORY_DB"
	EnvIndex             = "AGENT_MEMORY_INDEX"
	EnvBackend           = "AGENT_MEMORY_BACKEND"
	EnvLogLevel          = "AGENT_MEMORY_LOG_LEVEL"
	EnvFirestoreProject  = "AGENT_MEMORY_FIRESTORE_PROJECT"
	EnvFirestoreDatabase = "AGENT_MEMORY_FIRESTORE_DATABASE"
)

type Config struct {
	Backend   string          `yaml:"backend"`
	DBPath    string          `yaml:"db_path"`
	IndexPath string          `yaml:"index_path"`
	LogLevel  string          `yaml:"log_level"`
	Firestore FirestoreConfig `yaml:"firestore"`
	Index     IndexConfig     `yaml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Scoring   scoring.Weights `yaml:"scoring"`
	Graph     GraphConfig     `yaml:"graph"`
	Sweeper   SweeperConfig   `yaml:"sweeper"`
}

type FirestoreConfig struct {
	Project    string `yaml:"project"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type IndexConfig struct {
	Disabled  bool `yaml:"disabled"`
	QueueSize int  `yaml:"queue_size"`
}

type RetrievalConfig struct {
	IndexTimeout time.Duration `yaml:"index_timeout"`
	Oversample   int           `yaml:"oversample"`
}

type GraphConfig struct {
	Fanout              int     `yaml:"fanout"`
	CacheSize           int64   `yaml:"cache_size"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

type SweeperConfig struct {
	Schedule string `yaml:"schedule"`
	Batch    int    `yaml:"batch"`
}

// DefaultDBPath is $AGENT_MEMORY_DB or ~/.agent-memory/memory.db.
func DefaultDBPath() string {
	if env := os.Getenv(EnvDB); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".agent-memory", "memory.db")
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Backend:  BackendSQLite,
		LogLevel: "warn",
		Firestore: FirestoreConfig{
			Database: DefaultFirestoreDatabase,
		},
		Index: IndexConfig{
			QueueSize: index.DefaultQueueSize,
		},
		Retrieval: RetrievalConfig{
			IndexTimeout: retrieval.DefaultIndexTimeout,
			Oversample:   retrieval.DefaultOversample,
		},
		Scoring: scoring.DefaultWeights(),
		Graph: GraphConfig{
			Fanout:              graph.DefaultFanout,
			CacheSize:           graph.DefaultCacheSize,
			SimilarityThreshold: graph.DefaultSimilarityThreshold,
		},
		Sweeper: SweeperConfig{
			Schedule: sweeper.DefaultSchedule,
			Batch:    sweeper.DefaultBatch,
		},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path falls back to $AGENT_MEMORY_CONFIG; when that is unset too,
// only defaults and environment apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
		}
		if err := cfg.decode(data); err != nil {
			return nil, goerr.Wrap(err, "failed to parse config file", goerr.V("path", path))
		}
	}

	cfg.applyEnv()
	cfg.fill()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode rejects unknown keys so typos do not silently fall back to defaults.
func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDB); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv(EnvIndex); v != "" {
		c.IndexPath = v
	}
	if v := os.Getenv(EnvBackend); v != "" {
		c.Backend = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvFirestoreProject); v != "" {
		c.Firestore.Project = v
	}
	if v := os.Getenv(EnvFirestoreDatabase); v != "" {
		c.Firestore.Database = v
	}
}

// fill derives paths left empty.
func (c *Config) fill() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath()
	}
	if c.IndexPath == "" {
		c.IndexPath = filepath.Join(filepath.Dir(c.DBPath), "index.db")
	}
	if c.Firestore.Database == "" {
		c.Firestore.Database = DefaultFirestoreDatabase
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite:
		if c.DBPath == "" {
			return goerr.Wrap(model.ErrValidation, "db_path is required for the sqlite backend")
		}
	case BackendFirestore:
		if c.Firestore.Project == "" {
			return goerr.Wrap(model.ErrValidation, "firestore.project is required for the firestore backend")
		}
	default:
		return goerr.Wrap(model.ErrValidation, "unknown backend", goerr.V("backend", c.Backend))
	}

	if !c.Index.Disabled && c.IndexPath == "" {
		return goerr.Wrap(model.ErrValidation, "index_path is required unless the index is disabled")
	}
	if c.Index.QueueSize < 0 {
		return goerr.Wrap(model.ErrValidation, "index.queue_size must not be negative", goerr.V("queue_size", c.Index.QueueSize))
	}
	if c.Retrieval.IndexTimeout < 0 {
		return goerr.Wrap(model.ErrValidation, "retrieval.index_timeout must not be negative", goerr.V("index_timeout", c.Retrieval.IndexTimeout))
	}
	if c.Retrieval.Oversample < 0 {
		return goerr.Wrap(model.ErrValidation, "retrieval.oversample must not be negative", goerr.V("oversample", c.Retrieval.Oversample))
	}
	if err := c.Scoring.Validate(); err != nil {
		return err
	}
	if c.Graph.Fanout < 0 || c.Graph.CacheSize < 0 {
		return goerr.Wrap(model.ErrValidation, "graph settings must not be negative",
			goerr.V("fanout", c.Graph.Fanout), goerr.V("cache_size", c.Graph.CacheSize))
	}
	if c.Graph.SimilarityThreshold < 0 || c.Graph.SimilarityThreshold > 1 {
		return goerr.Wrap(model.ErrValidation, "graph.similarity_threshold must be within [0,1]",
			goerr.V("similarity_threshold", c.Graph.SimilarityThreshold))
	}
	if err := sweeper.ValidateSchedule(c.Sweeper.Schedule); err != nil {
		return err
	}
	if c.Sweeper.Batch < 0 {
		return goerr.Wrap(model.ErrValidation, "sweeper.batch must not be negative", goerr.V("batch", c.Sweeper.Batch))
	}
	if _, ok := logging.ParseLevel(c.LogLevel); !ok {
		return goerr.Wrap(model.ErrValidation, "unknown log level", goerr.V("log_level", c.LogLevel))
	}
	return nil
}
