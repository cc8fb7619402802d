package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// DefaultPath is the optional YAML file read before falling back to the environment.
const DefaultPath = "config.yaml"

// Config aggregates all application configuration
type Config struct {
	Mensa  MensaConfig  `yaml:"mensa"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Cache  CacheConfig  `yaml:"cache"`
	Maps   MapsConfig   `yaml:"maps"`
	AI     AIConfig     `yaml:"ai"`
}

type MensaConfig struct {
	BaseURL  string        `yaml:"base_url" env:"MENSA_BASE_URL" env-default:"https://tum-dev.github.io/eat-api"`
	Timeout  time.Duration `yaml:"timeout" env:"MENSA_TIMEOUT" env-default:"30s"`
	TimeZone string        `yaml:"time_zone" env:"MENSA_TIME_ZONE" env-default:"Local"`
}

type ServerConfig struct {
	Transport string `yaml:"transport" env:"MCP_TRANSPORT" env-default:"stdio"`
	Port      int    `yaml:"port" env:"PORT" env-default:"8000"`
	Name      string `yaml:"name" env:"MCP_SERVER_NAME" env-default:"Munich Mensa API"`
	Version   string `yaml:"version" env:"MCP_SERVER_VERSION" env-default:"1.0.0"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// CacheConfig controls the weekly menu response cache. It is off unless enabled,
// since cleanenv cannot tell an explicit false apart from an unset bool.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled" env:"CACHE_ENABLED"`
	DSN      string        `yaml:"dsn" env:"CACHE_DSN" env-default:"file::memory:?cache=shared"`
	MenuTTL  time.Duration `yaml:"menu_ttl" env:"CACHE_MENU_TTL" env-default:"1h"`
	Schedule string        `yaml:"cleanup_schedule" env:"CACHE_CLEANUP_SCHEDULE" env-default:"@every 15m"`
}

type MapsConfig struct {
	APIKey string `yaml:"api_key" env:"GOOGLE_MAPS_API_KEY"`
}

type AIConfig struct {
	Plugin string       `yaml:"plugin" env:"AI_PLUGIN" env-default:"gemini"`
	Gemini GeminiConfig `yaml:"gemini"`
	Ollama OllamaConfig `yaml:"ollama"`
	OpenAI OpenAIConfig `yaml:"openai"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key" env:"GEMINI_API_KEY"`
	Model  string `yaml:"model" env:"GEMINI_MODEL" env-default:"gemini-2.5-flash"`
}

type OllamaConfig struct {
	Model   string `yaml:"model" env:"OLLAMA_MODEL" env-default:"qwen3:4b"`
	BaseURL string `yaml:"base_url" env:"OLLAMA_BASE_URL" env-default:"http://localhost:11434"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key" env:"OPENAI_API_KEY"`
	BaseURL string `yaml:"base_url" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
	Model   string `yaml:"model" env:"OPENAI_MODEL" env-default:"gpt-4o-mini"`
}

// Location resolves the configured time zone. "Local" and "" mean the process zone.
func (c MensaConfig) Location() (*time.Location, error) {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// Validate checks values cleanenv cannot express.
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid transport %q: expected stdio or http", c.Server.Transport)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	switch c.AI.Plugin {
	case "gemini", "ollama", "openai":
	default:
		return fmt.Errorf("invalid ai plugin %q: expected gemini, ollama or openai", c.AI.Plugin)
	}
	if _, err := c.Mensa.Location(); err != nil {
		return err
	}
	return nil
}

// Load reads configuration from config.yaml and environment variables.
// A .env file is loaded into the environment first when present.
// Priority: Env Vars > Config File > Defaults
func Load() (*Config, error) {
	return LoadFile(DefaultPath)
}

// LoadFile is Load with an explicit YAML path.
func LoadFile(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		// No usable file, read env vars only
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read env config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
