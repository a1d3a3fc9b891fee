package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Matching   MatchingConfig   `mapstructure:"matching"`
	Drafts     DraftsConfig     `mapstructure:"drafts"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	MaxUploadSize int64         `mapstructure:"max_upload_size"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// StorageConfig holds original-file storage configuration
type StorageConfig struct {
	BaseDir       string        `mapstructure:"base_dir"`
	SigningSecret string        `mapstructure:"signing_secret"`
	LinkTTL       time.Duration `mapstructure:"link_ttl"`
}

// ExtractionConfig selects and tunes the document-understanding provider.
// Mode "simulated" serves a fixed extraction result for demos and tests.
type ExtractionConfig struct {
	Mode     string        `mapstructure:"mode"` // "openai" or "simulated"
	MaxPages int           `mapstructure:"max_pages"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey         string `mapstructure:"api_key"`
	VisionModel    string `mapstructure:"vision_model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	EmbeddingDims  int    `mapstructure:"embedding_dimensions"`
}

// MatchingConfig tunes product matching
type MatchingConfig struct {
	Threshold float64 `mapstructure:"threshold"`
}

// DraftsConfig tunes review draft lifetime
type DraftsConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Override with environment variables
	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)
	viper.SetDefault("server.max_upload_size", int64(15<<20))

	// Database defaults
	viper.SetDefault("database.path", "data/barcontrol.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// Storage defaults
	viper.SetDefault("storage.base_dir", "data/files")
	viper.SetDefault("storage.link_ttl", 15*time.Minute)

	// Extraction defaults
	viper.SetDefault("extraction.mode", "openai")
	viper.SetDefault("extraction.max_pages", 2)
	viper.SetDefault("extraction.timeout", 90*time.Second)

	// OpenAI defaults
	viper.SetDefault("openai.vision_model", "gpt-4o")
	viper.SetDefault("openai.embedding_model", "text-embedding-3-small")
	viper.SetDefault("openai.embedding_dimensions", 384)

	// Matching defaults
	viper.SetDefault("matching.threshold", 0.75)

	// Draft defaults
	viper.SetDefault("drafts.ttl", 24*time.Hour)
	viper.SetDefault("drafts.sweep_interval", time.Hour)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	viper.BindEnv("storage.signing_secret", "STORAGE_SIGNING_SECRET")
	viper.BindEnv("extraction.mode", "EXTRACTION_MODE")
	viper.BindEnv("database.path", "DATABASE_PATH")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Extraction.Mode {
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("openai.api_key is required when extraction.mode is openai")
		}
	case "simulated":
		// No credentials needed; embeddings stay optional.
	default:
		return fmt.Errorf("extraction.mode must be openai or simulated, got %q", c.Extraction.Mode)
	}

	if c.Storage.SigningSecret == "" {
		return fmt.Errorf("storage.signing_secret is required")
	}
	if c.Matching.Threshold <= 0 || c.Matching.Threshold > 1 {
		return fmt.Errorf("matching.threshold must be in (0, 1]")
	}
	if c.Drafts.TTL <= 0 {
		return fmt.Errorf("drafts.ttl must be positive")
	}

	return nil
}
