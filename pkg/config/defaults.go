package config

const (
	defaultMergeThreshold         = 0.85
	defaultDeletionMatchThreshold = 0.80
	defaultMaxCapacity            = 1000
	defaultMinImportance          = 0.3
	defaultMinRelevance           = 0.2
	defaultSimilarityWeight       = 0.6
	defaultImportanceWeight       = 0.25
	defaultRecencyWeight          = 0.15
	defaultDecayRate              = 0.05

	defaultStorageProvider = "inmemory"

	defaultAPIListen = ":8080"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultLLMProvider = "ollama"
	defaultLLMTarget   = "http://localhost:11434"
	defaultLLMModel    = "llama3.2"

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "engram.memory"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Memory: MemoryConfig{
			MergeThreshold:         defaultMergeThreshold,
			DeletionMatchThreshold: defaultDeletionMatchThreshold,
			MaxCapacity:            defaultMaxCapacity,
			MinImportance:          defaultMinImportance,
			MinRelevance:           defaultMinRelevance,
			SimilarityWeight:       defaultSimilarityWeight,
			ImportanceWeight:       defaultImportanceWeight,
			RecencyWeight:          defaultRecencyWeight,
			DecayRate:              defaultDecayRate,
		},
		Storage: StorageConfig{
			Provider: defaultStorageProvider,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		LLM: LLMConfig{
			Provider: defaultLLMProvider,
			Target:   defaultLLMTarget,
			Model:    defaultLLMModel,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
