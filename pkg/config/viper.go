package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/engramdev/engram/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the ENGRAM_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (ENGRAM_API_LISTEN, ENGRAM_STORAGE_PROVIDER, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: ENGRAM_API_LISTEN, ENGRAM_STORAGE_SQLITE_PATH, etc.
	v.SetEnvPrefix("ENGRAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materializes a Config from the merged viper precedence chain.
// Call after InitViper (and BindRegisteredFlags, for commands with flags).
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Memory: MemoryConfig{
			MergeThreshold:         v.GetFloat64("memory.merge_threshold"),
			DeletionMatchThreshold: v.GetFloat64("memory.deletion_match_threshold"),
			MaxCapacity:            v.GetInt("memory.max_capacity"),
			MinImportance:          v.GetFloat64("memory.min_importance"),
			MinRelevance:           v.GetFloat64("memory.min_relevance"),
			SimilarityWeight:       v.GetFloat64("memory.similarity_weight"),
			ImportanceWeight:       v.GetFloat64("memory.importance_weight"),
			RecencyWeight:          v.GetFloat64("memory.recency_weight"),
			DecayRate:              v.GetFloat64("memory.decay_rate"),
		},
		Storage: StorageConfig{
			Provider:     v.GetString("storage.provider"),
			SQLitePath:   v.GetString("storage.sqlite_path"),
			PostgresURL:  v.GetString("storage.postgres_url"),
			QdrantTarget: v.GetString("storage.qdrant_target"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetUint("embedding.dimensions"),
		},
		LLM: LLMConfig{
			Provider: v.GetString("llm.provider"),
			Target:   v.GetString("llm.target"),
			Model:    v.GetString("llm.model"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  v.GetStringSlice("events.brokers"),
			Topic:    v.GetString("events.topic"),
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Memory policy
	v.SetDefault("memory.merge_threshold", d.Memory.MergeThreshold)
	v.SetDefault("memory.deletion_match_threshold", d.Memory.DeletionMatchThreshold)
	v.SetDefault("memory.max_capacity", d.Memory.MaxCapacity)
	v.SetDefault("memory.min_importance", d.Memory.MinImportance)
	v.SetDefault("memory.min_relevance", d.Memory.MinRelevance)
	v.SetDefault("memory.similarity_weight", d.Memory.SimilarityWeight)
	v.SetDefault("memory.importance_weight", d.Memory.ImportanceWeight)
	v.SetDefault("memory.recency_weight", d.Memory.RecencyWeight)
	v.SetDefault("memory.decay_rate", d.Memory.DecayRate)

	// Storage
	v.SetDefault("storage.provider", d.Storage.Provider)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_url", d.Storage.PostgresURL)
	v.SetDefault("storage.qdrant_target", d.Storage.QdrantTarget)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)

	// LLM
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.target", d.LLM.Target)
	v.SetDefault("llm.model", d.LLM.Model)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
}
