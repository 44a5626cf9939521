package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/http/validation"
)

// Config is the central typed configuration struct.
type Config struct {
	App       AppConfig
	Container ContainerConfig
	Metrics   MetricsConfig
	Log       LogConfig

	raw map[string]string
}

type AppConfig struct {
	Name  string
	Env   string // local | production | testing
	Debug bool
	Port  string
}

// ContainerConfig maps onto container options.
type ContainerConfig struct {
	AllowOverride    bool
	VerifyOnBoot     bool
	DefaultLifestyle string
}

type MetricsConfig struct {
	Namespace string
}

type LogConfig struct {
	Level  string // debug | info | warn | error
	Format string // json | console
}

// keys read by Load, with their defaults.
var defaults = map[string]string{
	"APP_NAME":                    "go-ioc",
	"APP_ENV":                     "local",
	"APP_DEBUG":                   "true",
	"APP_PORT":                    "8000",
	"CONTAINER_ALLOW_OVERRIDE":    "false",
	"CONTAINER_VERIFY_ON_BOOT":    "true",
	"CONTAINER_DEFAULT_LIFESTYLE": "transient",
	"METRICS_NAMESPACE":           "goioc",
	"LOG_LEVEL":                   "info",
	"LOG_FORMAT":                  "console",
}

var rules = validation.Rules{
	"APP_NAME":                    "required",
	"APP_ENV":                     "required|in:local,production,testing",
	"APP_DEBUG":                   "boolean",
	"APP_PORT":                    "required|integer|gte:1|lte:65535",
	"CONTAINER_ALLOW_OVERRIDE":    "boolean",
	"CONTAINER_VERIFY_ON_BOOT":    "boolean",
	"CONTAINER_DEFAULT_LIFESTYLE": "required|in:transient,singleton,scoped",
	"METRICS_NAMESPACE":           `required|regex:^[a-zA-Z_][a-zA-Z0-9_]*$`,
	"LOG_LEVEL":                   "required|in:debug,info,warn,error",
	"LOG_FORMAT":                  "required|in:json,console",
}

// Load reads .env (if present) and populates a Config from environment variables.
// Call once at bootstrap: cfg := config.Load()
func Load(envFiles ...string) *Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist in production
	_ = godotenv.Load(files...)

	raw := make(map[string]string, len(defaults))
	for k, def := range defaults {
		raw[k] = env(k, def)
	}

	return &Config{
		App: AppConfig{
			Name:  raw["APP_NAME"],
			Env:   raw["APP_ENV"],
			Debug: envBool("APP_DEBUG", true),
			Port:  raw["APP_PORT"],
		},
		Container: ContainerConfig{
			AllowOverride:    envBool("CONTAINER_ALLOW_OVERRIDE", false),
			VerifyOnBoot:     envBool("CONTAINER_VERIFY_ON_BOOT", true),
			DefaultLifestyle: raw["CONTAINER_DEFAULT_LIFESTYLE"],
		},
		Metrics: MetricsConfig{
			Namespace: raw["METRICS_NAMESPACE"],
		},
		Log: LogConfig{
			Level:  raw["LOG_LEVEL"],
			Format: raw["LOG_FORMAT"],
		},
		raw: raw,
	}
}

// Validate checks the raw environment values behind c. The returned error
// is a *validation.Errors naming every bad key.
func (c *Config) Validate() error {
	if err := validation.Make(c.raw, rules).Err(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Lifestyle parses DefaultLifestyle.
func (c ContainerConfig) Lifestyle() (container.Lifestyle, error) {
	return container.ParseLifestyle(c.DefaultLifestyle)
}

// Options converts the container section into container options.
func (c ContainerConfig) Options() ([]container.Option, error) {
	l, err := c.Lifestyle()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return []container.Option{
		container.WithAllowOverride(c.AllowOverride),
		container.WithDefaultLifestyle(l),
	}, nil
}

// Logger builds a zap logger. json uses the production encoder, console the
// development one.
func (c LogConfig) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(c.Level))
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var zc zap.Config
	switch c.Format {
	case "json":
		zc = zap.NewProductionConfig()
	case "console", "":
		zc = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("config: unknown log format %q", c.Format)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// Get returns a raw env value, falling back to defaultVal.
func Get(key, defaultVal string) string {
	return env(key, defaultVal)
}

// GetInt returns an int env value.
func GetInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// GetBool returns a bool env value.
func GetBool(key string, defaultVal bool) bool {
	return envBool(key, defaultVal)
}

// ── helpers ─────────────────────────────────────────────────────────────────

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
