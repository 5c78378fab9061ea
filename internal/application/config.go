package application

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-gavel-ratings/internal/ports"
)

// ConfigPathEnv names the environment variable that points at the YAML
// configuration file when no explicit path is given.
const ConfigPathEnv = "GAVEL_CONFIG"

// AppConfig is the root of the service configuration and the single entry
// point for wiring the store, the generator and the HTTP surface.
type AppConfig struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server" validate:"required"`
	// Database selects and locates the relational store.
	Database DatabaseConfig `yaml:"database" validate:"required"`
	// LLM configures the generative model used to analyze feedback.
	LLM LLMConfig `yaml:"llm" validate:"required"`
	// Analysis bounds intake and decides how incomplete model output is
	// turned into a review.
	Analysis AnalysisConfig `yaml:"analysis" validate:"required"`
	// Logging configures the process logger.
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address in host:port form; the host may be empty.
	Addr string `yaml:"addr" validate:"required,hostname_port"`
	// ReadTimeout bounds reading an entire request, including uploads.
	ReadTimeout time.Duration `yaml:"read_timeout" validate:"gte=0"`
	// WriteTimeout bounds writing a response. Analysis requests wait on the
	// model, so this should exceed LLM.Timeout.
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gte=0"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// DatabaseConfig selects the relational store.
type DatabaseConfig struct {
	// Driver is the database driver; only SQLite is supported.
	Driver string `yaml:"driver" validate:"required,oneof=sqlite sqlite3"`
	// DSN is a file path, a "file:" URI or ":memory:".
	DSN string `yaml:"dsn" validate:"required"`
}

// LLMConfig configures the generative model and the middleware around it.
type LLMConfig struct {
	// Provider selects the backend implementation.
	Provider string `yaml:"provider" validate:"required,oneof=google openai anthropic"`
	// Model is the provider-specific model identifier.
	Model string `yaml:"model" validate:"required,min=1,max=200"`
	// APIKeyEnv names the environment variable holding the API key. When
	// empty a provider default is used (GEMINI_API_KEY, OPENAI_API_KEY or
	// ANTHROPIC_API_KEY).
	APIKeyEnv string `yaml:"api_key_env"`
	// APIKey is resolved from APIKeyEnv at load time and never read from YAML.
	APIKey string `yaml:"-"`
	// BaseURL overrides the provider endpoint, mainly for proxies and tests.
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
	// Timeout bounds a single generation request.
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `yaml:"max_retries" validate:"gte=0,lte=10"`
	// RateLimitRPS caps requests per second; zero disables rate limiting.
	RateLimitRPS float64 `yaml:"rate_limit_rps" validate:"gte=0"`
	// Burst is the rate limiter burst size.
	Burst int `yaml:"burst" validate:"gte=0"`
	// CircuitBreakerFailures opens the breaker after this many consecutive
	// failures; zero disables the breaker.
	CircuitBreakerFailures int `yaml:"circuit_breaker_failures" validate:"gte=0"`
	// CircuitBreakerCooldown is how long the breaker stays open.
	CircuitBreakerCooldown time.Duration `yaml:"circuit_breaker_cooldown" validate:"gte=0"`
	// Temperature is passed to the provider.
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	// MaxTokens caps the generated output.
	MaxTokens int `yaml:"max_tokens" validate:"gt=0"`
}

// AnalysisConfig bounds feedback intake.
type AnalysisConfig struct {
	// MaxImages is the most screenshots accepted in one request.
	MaxImages int `yaml:"max_images" validate:"gte=1,lte=10"`
	// MaxImageBytes is the largest accepted screenshot.
	MaxImageBytes int64 `yaml:"max_image_bytes" validate:"gt=0"`
	// MissingRatingsPolicy is "reject" or "neutral"; see
	// domain.MissingRatingsPolicy.
	MissingRatingsPolicy string `yaml:"missing_ratings_policy" validate:"ratingpolicy"`
	// DefaultDepartment is recorded on faculty created by analysis.
	DefaultDepartment string `yaml:"default_department" validate:"max=200"`
	// AutoConsolidate merges duplicate records of the analyzed name after
	// each accepted analysis.
	AutoConsolidate bool `yaml:"auto_consolidate"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	// Pretty switches from JSON to console output.
	Pretty bool `yaml:"pretty"`
}

// DefaultConfig returns a configuration that runs locally with a SQLite
// file in the working directory and Gemini as the generator.
func DefaultConfig() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Addr:            ":5001",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "faculty_ratings.db",
		},
		LLM: LLMConfig{
			Provider:               "google",
			Model:                  "gemini-1.5-flash",
			Timeout:                60 * time.Second,
			MaxRetries:             2,
			RateLimitRPS:           1,
			Burst:                  2,
			CircuitBreakerFailures: 5,
			CircuitBreakerCooldown: 30 * time.Second,
			Temperature:            0.2,
			MaxTokens:              2048,
		},
		Analysis: AnalysisConfig{
			MaxImages:            10,
			MaxImageBytes:        10 << 20,
			MissingRatingsPolicy: "reject",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

var defaultAPIKeyEnv = map[string]string{
	"google":    "GEMINI_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// LoadConfig builds the configuration from defaults, an optional .env file
// in the working directory, the YAML file at path (or $GAVEL_CONFIG) and a
// few environment overrides, then validates the result.
func LoadConfig(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, ports.NewConfigError(".env", err)
	}

	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, ports.NewConfigError(path, err)
		}
		if err := decodeConfig(data, &cfg); err != nil {
			return nil, ports.NewConfigError(path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decodeConfig overlays YAML onto cfg. Unknown fields are rejected so that
// typos do not silently fall back to defaults.
func decodeConfig(data []byte, cfg *AppConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("YAML decode failed: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("GAVEL_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("GAVEL_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("GAVEL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	keyEnv := cfg.LLM.APIKeyEnv
	if keyEnv == "" {
		keyEnv = defaultAPIKeyEnv[cfg.LLM.Provider]
	}
	if keyEnv != "" {
		cfg.LLM.APIKey = os.Getenv(keyEnv)
	}
}

// ValidateConfig runs struct validation with the service's custom rules.
func ValidateConfig(cfg *AppConfig) error {
	v, err := newValidator()
	if err != nil {
		return err
	}
	if err := v.Struct(cfg); err != nil {
		return ports.NewConfigError("config", fmt.Errorf("struct validation failed: %w", err))
	}
	return nil
}

// newValidator returns a validator with the service's custom rules
// registered.
func newValidator() (*validator.Validate, error) {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" && name != "-" {
			return name
		}
		return f.Name
	})
	if err := RegisterValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}
	return v, nil
}
