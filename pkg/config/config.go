// Package config provides configuration management for neuromem
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cortexkit/neuromem/pkg/types"
)

// BaseConfig provides common configuration functionality
type BaseConfig struct {
	mu        sync.RWMutex
	validator *validator.Validate
}

// NewBaseConfig creates a new base configuration
func NewBaseConfig() *BaseConfig {
	return &BaseConfig{
		validator: validator.New(),
	}
}

func (c *BaseConfig) validate(target interface{}) error {
	v := c.validator
	if v == nil {
		v = validator.New()
	}
	return v.Struct(target)
}

// EmbedderConfig represents embedding gateway configuration
type EmbedderConfig struct {
	BaseConfig `yaml:"-" json:"-"`
	Backend    types.BackendType `yaml:"backend" json:"backend" mapstructure:"backend" validate:"required,oneof=openai ollama mock"`
	Model      string            `yaml:"model" json:"model" mapstructure:"model" validate:"required"`
	APIKey     string            `yaml:"api_key,omitempty" json:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL    string            `yaml:"base_url,omitempty" json:"base_url,omitempty" mapstructure:"base_url"`
	Dimension  int               `yaml:"dimension,omitempty" json:"dimension,omitempty" mapstructure:"dimension"`
	Timeout    time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty" mapstructure:"timeout"`
}

// NewEmbedderConfig creates a new embedder configuration
func NewEmbedderConfig() *EmbedderConfig {
	return &EmbedderConfig{
		Backend:   types.BackendMock,
		Model:     "mock-embedder",
		Dimension: 768,
		Timeout:   30 * time.Second,
	}
}

// Validate validates the configuration
func (c *EmbedderConfig) Validate() error { return c.validate(c) }

// LLMConfig represents the reasoning gateway configuration
type LLMConfig struct {
	BaseConfig  `yaml:"-" json:"-"`
	Backend     types.BackendType `yaml:"backend" json:"backend" mapstructure:"backend" validate:"required,oneof=openai ollama mock"`
	Model       string            `yaml:"model" json:"model" mapstructure:"model" validate:"required"`
	APIKey      string            `yaml:"api_key,omitempty" json:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string            `yaml:"base_url,omitempty" json:"base_url,omitempty" mapstructure:"base_url"`
	MaxTokens   int               `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" mapstructure:"max_tokens"`
	Temperature float64           `yaml:"temperature,omitempty" json:"temperature,omitempty" mapstructure:"temperature"`
	Timeout     time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty" mapstructure:"timeout"`
}

// NewLLMConfig creates a new reasoning gateway configuration
func NewLLMConfig() *LLMConfig {
	return &LLMConfig{
		Backend:     types.BackendMock,
		Model:       "mock-llm",
		MaxTokens:   1024,
		Temperature: 0.7,
		Timeout:     30 * time.Second,
	}
}

// Validate validates the configuration
func (c *LLMConfig) Validate() error { return c.validate(c) }

// StorageConfig represents persistence backend configuration
type StorageConfig struct {
	BaseConfig `yaml:"-" json:"-"`
	Backend    types.StorageBackend `yaml:"backend" json:"backend" mapstructure:"backend" validate:"required,oneof=file sqlite memory"`
	// Dir holds one JSON file per collection for the file backend
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty" mapstructure:"dir"`
	// Path is the SQLite database file for the sqlite backend
	Path         string `yaml:"path,omitempty" json:"path,omitempty" mapstructure:"path"`
	WatchChanges bool   `yaml:"watch_changes,omitempty" json:"watch_changes,omitempty" mapstructure:"watch_changes"`
}

// NewStorageConfig creates a new storage configuration
func NewStorageConfig() *StorageConfig {
	return &StorageConfig{
		Backend: types.StorageBackendMemory,
	}
}

// Validate validates the configuration
func (c *StorageConfig) Validate() error {
	if err := c.validate(c); err != nil {
		return err
	}
	switch c.Backend {
	case types.StorageBackendFile:
		if c.Dir == "" {
			return fmt.Errorf("storage dir is required for the file backend")
		}
	case types.StorageBackendSQLite:
		if c.Path == "" {
			return fmt.Errorf("storage path is required for the sqlite backend")
		}
	}
	return nil
}

// VectorStoreConfig represents vector store configuration
type VectorStoreConfig struct {
	BaseConfig `yaml:"-" json:"-"`
	// MaxDocuments caps the store; oldest documents are evicted first
	MaxDocuments     int     `yaml:"max_documents" json:"max_documents" mapstructure:"max_documents" validate:"gt=0"`
	TopK             int     `yaml:"top_k" json:"top_k" mapstructure:"top_k" validate:"gt=0"`
	MinContentLength int     `yaml:"min_content_length" json:"min_content_length" mapstructure:"min_content_length" validate:"gte=0"`
	SimilarityWeight float64 `yaml:"similarity_weight" json:"similarity_weight" mapstructure:"similarity_weight" validate:"gte=0,lte=1"`
	RecencyWeight    float64 `yaml:"recency_weight" json:"recency_weight" mapstructure:"recency_weight" validate:"gte=0,lte=1"`
	DecayPerHour     float64 `yaml:"decay_per_hour" json:"decay_per_hour" mapstructure:"decay_per_hour" validate:"gte=0"`
	DecayFloor       float64 `yaml:"decay_floor" json:"decay_floor" mapstructure:"decay_floor" validate:"gte=0,lte=1"`
}

// NewVectorStoreConfig creates a new vector store configuration
func NewVectorStoreConfig() *VectorStoreConfig {
	return &VectorStoreConfig{
		MaxDocuments:     500,
		TopK:             5,
		MinContentLength: 5,
		SimilarityWeight: 0.7,
		RecencyWeight:    0.3,
		DecayPerHour:     0.1,
		DecayFloor:       0.1,
	}
}

// Validate validates the configuration
func (c *VectorStoreConfig) Validate() error { return c.validate(c) }

// TopologyConfig represents topological memory configuration
type TopologyConfig struct {
	BaseConfig `yaml:"-" json:"-"`
	// QuotaBytes triggers a proactive Optimize when the serialized
	// collections cross it
	QuotaBytes         int64         `yaml:"quota_bytes" json:"quota_bytes" mapstructure:"quota_bytes" validate:"gt=0"`
	GhostRetention     time.Duration `yaml:"ghost_retention" json:"ghost_retention" mapstructure:"ghost_retention"`
	DecayFactor        float64       `yaml:"decay_factor" json:"decay_factor" mapstructure:"decay_factor" validate:"gt=0,lte=1"`
	ConfidenceFloor    float64       `yaml:"confidence_floor" json:"confidence_floor" mapstructure:"confidence_floor" validate:"gte=0,lte=1"`
	ConsolidationBoost float64       `yaml:"consolidation_boost" json:"consolidation_boost" mapstructure:"consolidation_boost" validate:"gte=0,lte=1"`
	IndexQueueSize     int           `yaml:"index_queue_size" json:"index_queue_size" mapstructure:"index_queue_size" validate:"gt=0"`
}

// NewTopologyConfig creates a new topology configuration
func NewTopologyConfig() *TopologyConfig {
	return &TopologyConfig{
		QuotaBytes:         4_500_000,
		GhostRetention:     7 * 24 * time.Hour,
		DecayFactor:        0.995,
		ConfidenceFloor:    0.1,
		ConsolidationBoost: 0.1,
		IndexQueueSize:     64,
	}
}

// Validate validates the configuration
func (c *TopologyConfig) Validate() error { return c.validate(c) }

// LatticeConfig represents knowledge graph configuration
type LatticeConfig struct {
	BaseConfig       `yaml:"-" json:"-"`
	ReinforceStep    float64 `yaml:"reinforce_step" json:"reinforce_step" mapstructure:"reinforce_step" validate:"gte=0,lte=1"`
	NewTagConfidence float64 `yaml:"new_tag_confidence" json:"new_tag_confidence" mapstructure:"new_tag_confidence" validate:"gte=0,lte=1"`
	CoOccurWeight    float64 `yaml:"co_occur_weight" json:"co_occur_weight" mapstructure:"co_occur_weight" validate:"gte=0,lte=1"`
	RelatedWeight    float64 `yaml:"related_weight" json:"related_weight" mapstructure:"related_weight" validate:"gte=0,lte=1"`
	SeedFile         string  `yaml:"seed_file,omitempty" json:"seed_file,omitempty" mapstructure:"seed_file"`
	// Archiver settings; archiving is disabled when URI is empty
	ArchiverURI      string `yaml:"archiver_uri,omitempty" json:"archiver_uri,omitempty" mapstructure:"archiver_uri"`
	ArchiverUsername string `yaml:"archiver_username,omitempty" json:"archiver_username,omitempty" mapstructure:"archiver_username"`
	ArchiverPassword string `yaml:"archiver_password,omitempty" json:"archiver_password,omitempty" mapstructure:"archiver_password"`
	ArchiverDatabase string `yaml:"archiver_database,omitempty" json:"archiver_database,omitempty" mapstructure:"archiver_database"`
}

// NewLatticeConfig creates a new lattice configuration
func NewLatticeConfig() *LatticeConfig {
	return &LatticeConfig{
		ReinforceStep:    0.05,
		NewTagConfidence: 0.8,
		CoOccurWeight:    0.3,
		RelatedWeight:    0.5,
	}
}

// Validate validates the configuration
func (c *LatticeConfig) Validate() error { return c.validate(c) }

// SchedulerConfig represents maintenance scheduler configuration
type SchedulerConfig struct {
	BaseConfig    `yaml:"-" json:"-"`
	Enabled       bool          `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	DreamInterval time.Duration `yaml:"dream_interval" json:"dream_interval" mapstructure:"dream_interval"`
}

// NewSchedulerConfig creates a new scheduler configuration
func NewSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		Enabled:       false,
		DreamInterval: 15 * time.Minute,
	}
}

// EngineConfig aggregates the configuration of every component
type EngineConfig struct {
	BaseConfig  `yaml:"-" json:"-"`
	LogLevel    string             `yaml:"log_level" json:"log_level" mapstructure:"log_level"`
	Embedder    *EmbedderConfig    `yaml:"embedder" json:"embedder" mapstructure:"embedder"`
	LLM         *LLMConfig         `yaml:"llm" json:"llm" mapstructure:"llm"`
	Storage     *StorageConfig     `yaml:"storage" json:"storage" mapstructure:"storage"`
	VectorStore *VectorStoreConfig `yaml:"vector_store" json:"vector_store" mapstructure:"vector_store"`
	Topology    *TopologyConfig    `yaml:"topology" json:"topology" mapstructure:"topology"`
	Lattice     *LatticeConfig     `yaml:"lattice" json:"lattice" mapstructure:"lattice"`
	Scheduler   *SchedulerConfig   `yaml:"scheduler" json:"scheduler" mapstructure:"scheduler"`
}

// NewEngineConfig creates an engine configuration with defaults
func NewEngineConfig() *EngineConfig {
	return &EngineConfig{
		LogLevel:    "info",
		Embedder:    NewEmbedderConfig(),
		LLM:         NewLLMConfig(),
		Storage:     NewStorageConfig(),
		VectorStore: NewVectorStoreConfig(),
		Topology:    NewTopologyConfig(),
		Lattice:     NewLatticeConfig(),
		Scheduler:   NewSchedulerConfig(),
	}
}

// FromFile loads configuration from a YAML or JSON file, applying
// NEUROMEM_* environment overrides
func (c *EngineConfig) FromFile(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("configuration file not found: %s", path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		v.SetConfigType("json")
	default:
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix("NEUROMEM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return v.Unmarshal(c)
}

// ToYAMLFile saves configuration to a YAML file
func (c *EngineConfig) ToYAMLFile(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Validate validates the whole configuration tree. Each sub-config is
// checked for nil before it is wrapped in the interface, so a typed-nil
// pointer is skipped instead of panicking inside the validator.
func (c *EngineConfig) Validate() error {
	var validators []interface{ Validate() error }
	if c.Embedder != nil {
		validators = append(validators, c.Embedder)
	}
	if c.LLM != nil {
		validators = append(validators, c.LLM)
	}
	if c.Storage != nil {
		validators = append(validators, c.Storage)
	}
	if c.VectorStore != nil {
		validators = append(validators, c.VectorStore)
	}
	if c.Topology != nil {
		validators = append(validators, c.Topology)
	}
	if c.Lattice != nil {
		validators = append(validators, c.Lattice)
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
