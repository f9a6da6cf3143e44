package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the companion backend
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Index     IndexConfig     `mapstructure:"index"`
	Session   SessionConfig   `mapstructure:"session"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug       bool     `mapstructure:"debug"`
	LogLevel    string   `mapstructure:"log_level"`
	Listen      string   `mapstructure:"listen"`
	APIPrefix   string   `mapstructure:"api_prefix"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// ProvidersConfig contains the LLM and embedding provider settings
type ProvidersConfig struct {
	Generation string          `mapstructure:"generation"` // openai or anthropic
	OpenAI     OpenAIConfig    `mapstructure:"openai"`
	Anthropic  AnthropicConfig `mapstructure:"anthropic"`
}

// OpenAIConfig configures the OpenAI completion + embedding client
type OpenAIConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	CompletionModel string        `mapstructure:"completion_model"`
	EmbeddingModel  string        `mapstructure:"embedding_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// AnthropicConfig configures the Anthropic Messages API client
type AnthropicConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// IndexConfig selects and configures the document index backend
type IndexConfig struct {
	Backend    string           `mapstructure:"backend"` // opensearch or embedded
	Vectors    bool             `mapstructure:"vectors"` // hybrid search when true
	OpenSearch OpenSearchConfig `mapstructure:"opensearch"`
}

// OpenSearchConfig contains the managed search cluster settings
type OpenSearchConfig struct {
	Endpoint            string        `mapstructure:"endpoint"`
	Index               string        `mapstructure:"index"`
	Username            string        `mapstructure:"username"`
	Password            string        `mapstructure:"password"`
	Timeout             time.Duration `mapstructure:"timeout"`
	EmbeddingDimensions int           `mapstructure:"embedding_dimensions"`
}

func (o OpenSearchConfig) Validate() error {
	if strings.TrimSpace(o.Endpoint) == "" {
		return fmt.Errorf("index.opensearch.endpoint required")
	}
	if strings.TrimSpace(o.Index) == "" {
		return fmt.Errorf("index.opensearch.index required")
	}
	return nil
}

// SessionConfig selects and configures the conversation session store
type SessionConfig struct {
	Backend     string        `mapstructure:"backend"` // memory or redis
	MaxMessages int           `mapstructure:"max_messages"`
	Redis       RedisConfig   `mapstructure:"redis"`
	TTL         time.Duration `mapstructure:"ttl"` // redis backend only
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Addr) == "" {
		return fmt.Errorf("session.redis.addr required")
	}
	return nil
}

// TelemetryConfig contains metrics settings
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func (c *Config) Validate() error {
	switch c.Index.Backend {
	case "opensearch":
		if err := c.Index.OpenSearch.Validate(); err != nil {
			return err
		}
	case "embedded":
	default:
		return fmt.Errorf("index.backend must be opensearch or embedded, got %q", c.Index.Backend)
	}
	switch c.Session.Backend {
	case "memory", "":
	case "redis":
		if err := c.Session.Redis.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("session.backend must be memory or redis, got %q", c.Session.Backend)
	}
	switch c.Providers.Generation {
	case "openai", "anthropic", "":
	default:
		return fmt.Errorf("providers.generation must be openai or anthropic, got %q", c.Providers.Generation)
	}
	return nil
}

// LoadConfig loads config from file. The file is optional: defaults plus
// COMPANION_* environment overrides are enough for the embedded backend.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.listen", ":8000")
	viper.SetDefault("general.api_prefix", "/api/v1")
	viper.SetDefault("general.cors_origins", []string{"*"})
	viper.SetDefault("providers.generation", "openai")
	viper.SetDefault("providers.openai.completion_model", "gpt-4o-mini")
	viper.SetDefault("providers.openai.embedding_model", "text-embedding-3-small")
	viper.SetDefault("providers.openai.temperature", 0.3)
	viper.SetDefault("providers.openai.max_tokens", 1500)
	viper.SetDefault("providers.openai.timeout", 30*time.Second)
	viper.SetDefault("providers.anthropic.model", "claude-3-haiku-20240307")
	viper.SetDefault("providers.anthropic.temperature", 0.3)
	viper.SetDefault("providers.anthropic.max_tokens", 1500)
	viper.SetDefault("providers.anthropic.timeout", 30*time.Second)
	viper.SetDefault("index.backend", "embedded")
	viper.SetDefault("index.vectors", true)
	viper.SetDefault("index.opensearch.index", "companion_knowledge")
	viper.SetDefault("index.opensearch.timeout", 30*time.Second)
	viper.SetDefault("index.opensearch.embedding_dimensions", 1536)
	viper.SetDefault("session.backend", "memory")
	viper.SetDefault("session.max_messages", 10)
	viper.SetDefault("session.ttl", 24*time.Hour)
	viper.SetDefault("telemetry.enabled", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("COMPANION")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	if err := config.Validate(); err != nil {
		panic(err)
	}
	return &config
}
