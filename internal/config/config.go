package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the docfinder configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Session   SessionConfig   `yaml:"session"`
	Oracle    OracleConfig    `yaml:"oracle"`
	Geo       GeoConfig       `yaml:"geo"`
	Assistant AssistantConfig `yaml:"assistant"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`

	// APIKeys protect the web chat API. Empty disables authentication.
	APIKeys []string `yaml:"api_keys"`
}

// TelegramConfig holds the Telegram channel settings. An empty token disables the channel.
type TelegramConfig struct {
	Token          string `yaml:"token"`
	PollTimeoutSec int    `yaml:"poll_timeout_sec"`
	Debug          bool   `yaml:"debug"`
}

// Enabled reports whether the Telegram channel should run.
func (t TelegramConfig) Enabled() bool { return t.Token != "" }

// CatalogConfig holds the catalog database settings.
type CatalogConfig struct {
	DSN              string `yaml:"dsn"`
	MaxOpenConns     int    `yaml:"max_open_conns"`
	ReadinessTimeout int    `yaml:"readiness_timeout_sec"`
	Migrate          bool   `yaml:"migrate"`
	FetchLimit       int    `yaml:"fetch_limit"`
	PageSize         int    `yaml:"page_size"`
	ReviewsShown     int    `yaml:"reviews_shown"`
}

// SessionConfig holds the session store settings.
type SessionConfig struct {
	Driver           string   `yaml:"driver"` // redis, memory (default: memory)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	TTLMin           int      `yaml:"ttl_min"`
	MemoryCapacity   int      `yaml:"memory_capacity"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// TTL returns the session lifetime.
func (s SessionConfig) TTL() time.Duration { return time.Duration(s.TTLMin) * time.Minute }

// OracleConfig holds the language model settings. An empty API key disables AI search.
type OracleConfig struct {
	APIKey             string  `yaml:"api_key"`
	BaseURL            string  `yaml:"base_url"`
	Model              string  `yaml:"model"`
	TimeoutSec         int     `yaml:"timeout_sec"`
	Temperature        float32 `yaml:"temperature"`
	HistoryTurns       int     `yaml:"history_turns"`
	MaxPromptHospitals int     `yaml:"max_prompt_hospitals"`
	RecommendDoctors   int     `yaml:"recommend_doctors"`
	RatePerSec         float64 `yaml:"rate_per_sec"`
	Burst              int     `yaml:"burst"`
}

// Enabled reports whether AI search is available.
func (o OracleConfig) Enabled() bool { return o.APIKey != "" }

// Timeout returns the per-call deadline.
func (o OracleConfig) Timeout() time.Duration { return time.Duration(o.TimeoutSec) * time.Second }

// GeoConfig holds geocoder and static map settings. An empty API key disables both.
type GeoConfig struct {
	APIKey      string `yaml:"api_key"`
	GeocodeURL  string `yaml:"geocode_url"`
	StaticURL   string `yaml:"static_url"`
	TimeoutSec  int    `yaml:"timeout_sec"`
	CacheSize   int    `yaml:"cache_size"`
	MapWidth    int    `yaml:"map_width"`
	MapHeight   int    `yaml:"map_height"`
	MapZoom     int    `yaml:"map_zoom"`
	MapsBaseURL string `yaml:"maps_base_url"`
}

// Enabled reports whether geocoding is available.
func (g GeoConfig) Enabled() bool { return g.APIKey != "" }

// AssistantConfig holds the search assistant policy.
type AssistantConfig struct {
	City       string   `yaml:"city"`
	CityTokens []string `yaml:"city_tokens"`
	// TrustUnvalidatedMatches shows oracle picks that failed the city check instead of the full list.
	TrustUnvalidatedMatches bool `yaml:"trust_unvalidated_matches"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory is loaded first when present.
func Load(env string) (Config, error) {
	_ = godotenv.Load()

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML config bytes, substitutes env variables, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Telegram.PollTimeoutSec <= 0 {
		c.Telegram.PollTimeoutSec = 30
	}
	if c.Catalog.MaxOpenConns <= 0 {
		c.Catalog.MaxOpenConns = 10
	}
	if c.Catalog.ReadinessTimeout <= 0 {
		c.Catalog.ReadinessTimeout = 10
	}
	if c.Catalog.FetchLimit <= 0 {
		c.Catalog.FetchLimit = 100
	}
	if c.Catalog.PageSize <= 0 {
		c.Catalog.PageSize = 10
	}
	if c.Catalog.ReviewsShown <= 0 {
		c.Catalog.ReviewsShown = 10
	}
	if c.Session.Driver == "" {
		c.Session.Driver = "memory"
	}
	if c.Session.KeyPrefix == "" {
		c.Session.KeyPrefix = "docfinder:session:"
	}
	if c.Session.TTLMin <= 0 {
		c.Session.TTLMin = 24 * 60
	}
	if c.Session.MemoryCapacity <= 0 {
		c.Session.MemoryCapacity = 10000
	}
	if c.Session.ReadinessTimeout <= 0 {
		c.Session.ReadinessTimeout = 10
	}
	if c.Oracle.Model == "" {
		c.Oracle.Model = "gpt-4o-mini"
	}
	if c.Oracle.TimeoutSec <= 0 {
		c.Oracle.TimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = minWriteTimeoutSec(c.Oracle.TimeoutSec) + 30
	}
	if c.Oracle.Temperature <= 0 {
		c.Oracle.Temperature = 0.3
	}
	if c.Oracle.HistoryTurns <= 0 {
		c.Oracle.HistoryTurns = 4
	}
	if c.Oracle.MaxPromptHospitals <= 0 {
		c.Oracle.MaxPromptHospitals = 50
	}
	if c.Oracle.RecommendDoctors <= 0 {
		c.Oracle.RecommendDoctors = 5
	}
	if c.Oracle.RatePerSec <= 0 {
		c.Oracle.RatePerSec = 5
	}
	if c.Oracle.Burst <= 0 {
		c.Oracle.Burst = 10
	}
	if c.Geo.GeocodeURL == "" {
		c.Geo.GeocodeURL = "https://geocode-maps.yandex.ru/1.x/"
	}
	if c.Geo.StaticURL == "" {
		c.Geo.StaticURL = "https://static-maps.yandex.ru/1.x/"
	}
	if c.Geo.MapsBaseURL == "" {
		c.Geo.MapsBaseURL = "https://yandex.ru/maps/"
	}
	if c.Geo.TimeoutSec <= 0 {
		c.Geo.TimeoutSec = 10
	}
	if c.Geo.CacheSize <= 0 {
		c.Geo.CacheSize = 1024
	}
	if c.Geo.MapWidth <= 0 {
		c.Geo.MapWidth = 400
	}
	if c.Geo.MapHeight <= 0 {
		c.Geo.MapHeight = 300
	}
	if c.Geo.MapZoom <= 0 {
		c.Geo.MapZoom = 15
	}
	if c.Assistant.City == "" {
		c.Assistant.City = "Калуга"
	}
	if len(c.Assistant.CityTokens) == 0 {
		c.Assistant.CityTokens = []string{"калуга", "kaluga"}
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Catalog.DSN == "" {
		return fmt.Errorf("catalog.dsn is required")
	}
	switch c.Session.Driver {
	case "memory":
	case "redis", "valkey":
		if len(c.Session.Addrs) == 0 {
			return fmt.Errorf("session.addrs is required for driver %q", c.Session.Driver)
		}
	default:
		return fmt.Errorf("session.driver must be \"memory\", \"redis\" or \"valkey\", got %q", c.Session.Driver)
	}
	if c.Oracle.Enabled() && c.HTTP.WriteTimeoutSec <= minWriteTimeoutSec(c.Oracle.TimeoutSec) {
		return fmt.Errorf("http.write_timeout_sec must exceed %d (two oracle calls per turn), got %d",
			minWriteTimeoutSec(c.Oracle.TimeoutSec), c.HTTP.WriteTimeoutSec)
	}
	if c.Geo.MapZoom > 21 {
		return fmt.Errorf("geo.map_zoom must be between 1 and 21, got %d", c.Geo.MapZoom)
	}
	return nil
}

// minWriteTimeoutSec is the longest oracle time one turn can spend:
// classification followed by the location filter.
func minWriteTimeoutSec(oracleTimeoutSec int) int { return 2 * oracleTimeoutSec }

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
