// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/willow-sdr/internal/llm"
)

// Config holds all application configuration.
type Config struct {
	Port          string
	GRPCPort      string
	FrontendURL   string
	CORSOrigins   []string
	DBPath        string
	ArtifactDir   string
	PublicBaseURL string
	LogLevel      string
	ScriptPath    string

	LLM       llm.Config
	TTS       TTSConfig
	Redis     RedisConfig
	Session   SessionConfig
	RateLimit RateLimitConfig

	MaxRequestBodyBytes int64
}

// TTSConfig controls speech synthesis.
type TTSConfig struct {
	Enabled bool
	BaseURL string
	APIKey  string
	Model   string
	Voice   string
	Rate    float64
}

// RedisConfig controls the lead handoff stream. An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

// SessionConfig controls dialogue sessions.
type SessionConfig struct {
	IdleTTL            time.Duration
	SweepSchedule      string
	MaxClarifyAttempts int
}

// RateLimitConfig controls per-session request limiting.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	port := getEnv("PORT", "8080")
	provider := strings.ToLower(getEnv("LLM_PROVIDER", llm.ProviderOpenRouter))

	cfg := &Config{
		Port:          port,
		GRPCPort:      getEnv("GRPC_PORT", "9090"),
		FrontendURL:   getEnv("FRONTEND_URL", ""),
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		DBPath:        getEnv("DB_PATH", "./data/willow.db"),
		ArtifactDir:   getEnv("ARTIFACT_DIR", "./data/artifacts"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		ScriptPath:    getEnv("SCRIPT_PATH", ""),
		LLM: llm.Config{
			Provider:  provider,
			Model:     getEnv("LLM_MODEL", ""),
			BaseURL:   getEnv("LLM_BASE_URL", ""),
			APIKey:    llmAPIKey(provider),
			MaxTokens: getEnvInt("LLM_MAX_TOKENS", 256),
			Timeout:   getEnvDuration("LLM_TIMEOUT", 15*time.Second),
			Referer:   getEnv("FRONTEND_URL", "http://localhost:5173"),
			Title:     "Willow AI SDR",
		},
		TTS: TTSConfig{
			Enabled: getEnvBool("TTS_ENABLED", false),
			BaseURL: getEnv("TTS_BASE_URL", "https://api.openai.com/v1"),
			APIKey:  getEnv("TTS_API_KEY", ""),
			Model:   getEnv("TTS_MODEL", "tts-1"),
			Voice:   getEnv("TTS_VOICE", "alloy"),
			Rate:    getEnvFloat("TTS_RATE", 1.0),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Stream:   getEnv("HANDOFF_STREAM", "willow:leads"),
		},
		Session: SessionConfig{
			IdleTTL:            getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
			SweepSchedule:      getEnv("SESSION_SWEEP_SCHEDULE", "@every 5m"),
			MaxClarifyAttempts: getEnvInt("MAX_CLARIFY_ATTEMPTS", 2),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 30),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		MaxRequestBodyBytes: int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 64<<10)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.ArtifactDir == "" {
		return fmt.Errorf("ARTIFACT_DIR cannot be empty")
	}
	switch c.LLM.Provider {
	case llm.ProviderOpenRouter, llm.ProviderGemini, llm.ProviderEino:
	default:
		return fmt.Errorf("LLM_PROVIDER must be one of openrouter, gemini, eino; got %q", c.LLM.Provider)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be > 0")
	}
	if c.TTS.Enabled && c.TTS.BaseURL == "" {
		return fmt.Errorf("TTS_BASE_URL cannot be empty when TTS_ENABLED is set")
	}
	if c.TTS.Rate <= 0 {
		return fmt.Errorf("TTS_RATE must be > 0")
	}
	if c.Session.IdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be > 0")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_BYTES must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins, including FRONTEND_URL when set.
func (c *Config) AllowedOrigins() []string {
	origins := append([]string(nil), c.CORSOrigins...)
	if c.FrontendURL != "" {
		origins = append(origins, strings.TrimRight(c.FrontendURL, "/"))
	}
	return origins
}

// llmAPIKey picks the provider-specific key, falling back to LLM_API_KEY.
func llmAPIKey(provider string) string {
	var key string
	switch provider {
	case llm.ProviderOpenRouter:
		key = getEnv("OPENROUTER_API_KEY", "")
	case llm.ProviderGemini:
		key = getEnv("GEMINI_API_KEY", "")
	}
	if key == "" {
		key = getEnv("LLM_API_KEY", "")
	}
	return key
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
