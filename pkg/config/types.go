package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent engram configuration stored as config.toml
// in the .engram/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	Memory    MemoryConfig    `toml:"memory"`
	Storage   StorageConfig   `toml:"storage"`
	API       APIConfig       `toml:"api"`
	Embedding EmbeddingConfig `toml:"embedding"`
	LLM       LLMConfig       `toml:"llm"`
	Events    EventsConfig    `toml:"events"`
}

// MemoryConfig holds the lifecycle and ranking policy knobs.
type MemoryConfig struct {
	MergeThreshold         float64 `toml:"merge_threshold,omitempty"`
	DeletionMatchThreshold float64 `toml:"deletion_match_threshold,omitempty"`
	MaxCapacity            int     `toml:"max_capacity,omitempty"`
	MinImportance          float64 `toml:"min_importance,omitempty"`
	MinRelevance           float64 `toml:"min_relevance,omitempty"`
	SimilarityWeight       float64 `toml:"similarity_weight,omitempty"`
	ImportanceWeight       float64 `toml:"importance_weight,omitempty"`
	RecencyWeight          float64 `toml:"recency_weight,omitempty"`
	DecayRate              float64 `toml:"decay_rate,omitempty"`
}

// StorageConfig holds storage driver settings.
type StorageConfig struct {
	Provider     string `toml:"provider,omitempty"`
	SQLitePath   string `toml:"sqlite_path,omitempty"`
	PostgresURL  string `toml:"postgres_url,omitempty"`
	QdrantTarget string `toml:"qdrant_target,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// LLMConfig holds chat completion provider settings.
type LLMConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Model    string `toml:"model,omitempty"`
}

// EventsConfig holds lifecycle event publishing settings.
type EventsConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func floatKey(get func(c *Config) float64, set func(c *Config, v float64)) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			return strconv.FormatFloat(get(c), 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid float value %q: %w", v, err)
			}
			set(c, f)
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"memory.merge_threshold": floatKey(
		func(c *Config) float64 { return c.Memory.MergeThreshold },
		func(c *Config, v float64) { c.Memory.MergeThreshold = v },
	),
	"memory.deletion_match_threshold": floatKey(
		func(c *Config) float64 { return c.Memory.DeletionMatchThreshold },
		func(c *Config, v float64) { c.Memory.DeletionMatchThreshold = v },
	),
	"memory.max_capacity": {
		get: func(c *Config) string { return strconv.Itoa(c.Memory.MaxCapacity) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for memory.max_capacity: %w", err)
			}
			c.Memory.MaxCapacity = n
			return nil
		},
	},
	"memory.min_importance": floatKey(
		func(c *Config) float64 { return c.Memory.MinImportance },
		func(c *Config, v float64) { c.Memory.MinImportance = v },
	),
	"memory.min_relevance": floatKey(
		func(c *Config) float64 { return c.Memory.MinRelevance },
		func(c *Config, v float64) { c.Memory.MinRelevance = v },
	),
	"memory.similarity_weight": floatKey(
		func(c *Config) float64 { return c.Memory.SimilarityWeight },
		func(c *Config, v float64) { c.Memory.SimilarityWeight = v },
	),
	"memory.importance_weight": floatKey(
		func(c *Config) float64 { return c.Memory.ImportanceWeight },
		func(c *Config, v float64) { c.Memory.ImportanceWeight = v },
	),
	"memory.recency_weight": floatKey(
		func(c *Config) float64 { return c.Memory.RecencyWeight },
		func(c *Config, v float64) { c.Memory.RecencyWeight = v },
	),
	"memory.decay_rate": floatKey(
		func(c *Config) float64 { return c.Memory.DecayRate },
		func(c *Config, v float64) { c.Memory.DecayRate = v },
	),
	"storage.provider": {
		get: func(c *Config) string { return c.Storage.Provider },
		set: func(c *Config, v string) error { c.Storage.Provider = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_url": {
		get: func(c *Config) string { return c.Storage.PostgresURL },
		set: func(c *Config, v string) error { c.Storage.PostgresURL = v; return nil },
	},
	"storage.qdrant_target": {
		get: func(c *Config) string { return c.Storage.QdrantTarget },
		set: func(c *Config, v string) error { c.Storage.QdrantTarget = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"llm.provider": {
		get: func(c *Config) string { return c.LLM.Provider },
		set: func(c *Config, v string) error { c.LLM.Provider = v; return nil },
	},
	"llm.target": {
		get: func(c *Config) string { return c.LLM.Target },
		set: func(c *Config, v string) error { c.LLM.Target = v; return nil },
	},
	"llm.model": {
		get: func(c *Config) string { return c.LLM.Model },
		set: func(c *Config, v string) error { c.LLM.Model = v; return nil },
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.Brokers, ",") },
		set: func(c *Config, v string) error {
			if v == "" {
				c.Events.Brokers = nil
				return nil
			}
			c.Events.Brokers = strings.Split(v, ",")
			return nil
		},
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}
