// Package config loads the service configuration.  A config.yaml file is
// optional; environment variables override it and every pipeline knob has a
// default.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"healthchat/internal/logging"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Search   SearchConfig   `mapstructure:"search"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Log      logging.Config `mapstructure:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DatabaseConfig selects the persistence store.  Driver is "postgres" or
// "memory"; the memory store is meant for local runs only.
type DatabaseConfig struct {
	Driver        string `mapstructure:"driver"`
	URL           string `mapstructure:"url"`
	NotifyChannel string `mapstructure:"notify_channel"`
}

// RedisConfig configures the shared cache.  When Addr is empty an
// in-process cache is used instead.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// OpenAIConfig configures the completion provider.
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// SearchConfig configures the web-search provider used for product links.
type SearchConfig struct {
	Endpoint   string        `mapstructure:"endpoint"`
	APIKey     string        `mapstructure:"api_key"`
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// PipelineConfig holds the token budget and cache settings.
type PipelineConfig struct {
	SystemPrompt          string        `mapstructure:"system_prompt"`
	MaxConversationTokens int           `mapstructure:"max_conversation_tokens"`
	PriorityMessages      int           `mapstructure:"priority_messages"`
	SummaryTokenThreshold int           `mapstructure:"summary_token_threshold"`
	ContextCacheTTL       time.Duration `mapstructure:"context_cache_ttl"`
	ProductCacheTTL       time.Duration `mapstructure:"product_cache_ttl"`
}

// Load reads configPath/config.yaml if present.  Environment variables win
// over the file and the file wins over the defaults.
func Load(configPath string) (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnvVariables(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bindEnvVariables(v *viper.Viper) {
	v.BindEnv("server.port", "PORT")

	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.notify_channel", "POSTGRES_NOTIFY_CHANNEL")

	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.username", "REDIS_USERNAME")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	v.BindEnv("openai.model", "OPENAI_MODEL_CHAT")
	v.BindEnv("openai.max_tokens", "OPENAI_MAX_TOKENS")
	v.BindEnv("openai.temperature", "OPENAI_TEMPERATURE")

	v.BindEnv("search.endpoint", "SEARCH_ENDPOINT")
	v.BindEnv("search.api_key", "SEARCH_API_KEY")

	v.BindEnv("pipeline.system_prompt", "SYSTEM_PROMPT")

	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.dev_mode", "LOG_DEV_MODE")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.notify_channel", "urgent_replies")

	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)

	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 1000)
	v.SetDefault("openai.temperature", 0.7)
	v.SetDefault("openai.timeout", "30s")

	v.SetDefault("search.endpoint", "https://api.search.brave.com/res/v1/web/search")
	v.SetDefault("search.max_results", 3)
	v.SetDefault("search.timeout", "10s")

	v.SetDefault("pipeline.max_conversation_tokens", 6000)
	v.SetDefault("pipeline.priority_messages", 5)
	v.SetDefault("pipeline.summary_token_threshold", 1000)
	v.SetDefault("pipeline.context_cache_ttl", "30m")
	v.SetDefault("pipeline.product_cache_ttl", "1h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.output_path", "stdout")
	v.SetDefault("log.encoding", "json")
}
