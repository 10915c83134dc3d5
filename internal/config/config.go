// Package config provides shared configuration loading from environment
// and defaults for the generator, ask and dashboard commands.
package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultDBPath  = "network_events.db"
	DefaultModel   = "llama3.2:3b"
	DefaultBaseURL = "http://localhost:11434/v1"
	// Ollama ignores the key but the OpenAI wire format expects one.
	DefaultAPIKey = "ollama"
)

// Environment keys.
const (
	KeyDBPath           = "NEO_DB_PATH"
	KeyModel            = "NEO_MODEL"
	KeyBaseURL          = "NEO_BASE_URL"
	KeyAPIKey           = "NEO_API_KEY"
	KeyInferenceTimeout = "NEO_INFERENCE_TIMEOUT"
	KeyInterval         = "NEO_INTERVAL"
	KeyMaxTicks         = "NEO_MAX_TICKS"
	KeyLogLevel         = "NEO_LOG_LEVEL"
	KeyHTTPAddr         = "NEO_HTTP_ADDR"
	KeyRefreshInterval  = "NEO_REFRESH_INTERVAL"
	KeyShutdownTimeout  = "NEO_SHUTDOWN_TIMEOUT"
)

// env is only read after init. AutomaticEnv consults the process
// environment on every Get, so later changes are visible.
var env = newEnv()

func newEnv() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyDBPath, DefaultDBPath)
	v.SetDefault(KeyModel, DefaultModel)
	v.SetDefault(KeyBaseURL, DefaultBaseURL)
	v.SetDefault(KeyAPIKey, DefaultAPIKey)
	v.SetDefault(KeyInferenceTimeout, "0s")
	v.SetDefault(KeyInterval, "2s")
	v.SetDefault(KeyMaxTicks, 0)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyHTTPAddr, ":8080")
	v.SetDefault(KeyRefreshInterval, "5s")
	v.SetDefault(KeyShutdownTimeout, "30s")
	v.AutomaticEnv()
	return v
}

// lookup resolves key through env. Empty values count as unset, so a
// registered key falls back to its default.
func lookup(key string) string {
	return strings.TrimSpace(env.GetString(key))
}

// GetEnv returns the value of key from the environment, or defaultValue if unset or empty.
// Keys registered in env resolve to their registered default first.
func GetEnv(key, defaultValue string) string {
	if s := lookup(key); s != "" {
		return s
	}
	return defaultValue
}

// GetEnvDuration returns the duration for key, or defaultValue if unset/invalid.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	s := lookup(key)
	if s == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return defaultValue
	}
	return d
}

// GetEnvInt returns the integer for key, or defaultValue if unset/invalid.
func GetEnvInt(key string, defaultValue int) int {
	s := lookup(key)
	if s == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return n
}

// InferenceConfig holds the OpenAI-compatible endpoint settings shared by generator and ask.
type InferenceConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	// Zero means no client-side timeout.
	Timeout time.Duration
}

// GeneratorConfig holds configuration for the event generation loop (cmd/generator).
type GeneratorConfig struct {
	DBPath    string
	Inference InferenceConfig
	Interval  time.Duration
	MaxTicks  int
	LogLevel  string
}

// AskConfig holds configuration for the single-shot query (cmd/ask).
type AskConfig struct {
	DBPath    string
	Inference InferenceConfig
	LogLevel  string
}

// DashboardConfig holds configuration for the dashboard API (cmd/dashboard).
type DashboardConfig struct {
	DBPath          string
	HTTPAddr        string
	RefreshInterval time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
}

// DefaultInferenceConfig returns inference endpoint config from environment.
func DefaultInferenceConfig() InferenceConfig {
	return InferenceConfig{
		BaseURL: strings.TrimSuffix(GetEnv(KeyBaseURL, DefaultBaseURL), "/"),
		APIKey:  GetEnv(KeyAPIKey, DefaultAPIKey),
		Model:   GetEnv(KeyModel, DefaultModel),
		Timeout: GetEnvDuration(KeyInferenceTimeout, 0),
	}
}

// DefaultGeneratorConfig returns generator config from environment with defaults.
func DefaultGeneratorConfig() GeneratorConfig {
	maxTicks := GetEnvInt(KeyMaxTicks, 0)
	if maxTicks < 0 {
		maxTicks = 0
	}
	return GeneratorConfig{
		DBPath:    GetEnv(KeyDBPath, DefaultDBPath),
		Inference: DefaultInferenceConfig(),
		Interval:  GetEnvDuration(KeyInterval, 2*time.Second),
		MaxTicks:  maxTicks,
		LogLevel:  GetEnv(KeyLogLevel, "info"),
	}
}

// DefaultAskConfig returns single-shot config from environment.
func DefaultAskConfig() AskConfig {
	return AskConfig{
		DBPath:    GetEnv(KeyDBPath, DefaultDBPath),
		Inference: DefaultInferenceConfig(),
		LogLevel:  GetEnv(KeyLogLevel, "info"),
	}
}

// DefaultDashboardConfig returns dashboard config from environment.
func DefaultDashboardConfig() DashboardConfig {
	return DashboardConfig{
		DBPath:          GetEnv(KeyDBPath, DefaultDBPath),
		HTTPAddr:        GetEnv(KeyHTTPAddr, ":8080"),
		RefreshInterval: GetEnvDuration(KeyRefreshInterval, 5*time.Second),
		ShutdownTimeout: GetEnvDuration(KeyShutdownTimeout, 30*time.Second),
		LogLevel:        GetEnv(KeyLogLevel, "info"),
	}
}
