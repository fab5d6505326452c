package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the gateway configuration. It is loaded from an optional TOML file,
// then overridden by environment variables, then defaulted and validated.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Upstream UpstreamConfig `toml:"upstream"`
	Cache    CacheConfig    `toml:"cache"`
	Problems ProblemsConfig `toml:"problems"`
	Health   HealthConfig   `toml:"health"`
	Tracing  TracingConfig  `toml:"tracing"`
	Log      LogConfig      `toml:"log"`
}

type ServerConfig struct {
	Port              string   `toml:"port"`
	ReadHeaderTimeout Duration `toml:"read_header_timeout"`
	ReadTimeout       Duration `toml:"read_timeout"`
	WriteTimeout      Duration `toml:"write_timeout"`
	IdleTimeout       Duration `toml:"idle_timeout"`
	RequestTimeout    Duration `toml:"request_timeout"` // non-streaming routes only
	MaxBodyBytes      int64    `toml:"max_body_bytes"`
}

type UpstreamConfig struct {
	BaseURL     string   `toml:"base_url"`
	Model       string   `toml:"model"`
	MaxRetries  int      `toml:"max_retries"`
	BaseBackoff Duration `toml:"base_backoff"`
	IdleTimeout Duration `toml:"idle_timeout"` // 0 disables the dead-stream watchdog
	Temperature float64  `toml:"temperature"`
	TopP        float64  `toml:"top_p"`
	NumPredict  int      `toml:"num_predict"`
}

type CacheConfig struct {
	Backend   string   `toml:"backend"` // memory | file | redis
	TTL       Duration `toml:"ttl"`
	Dir       string   `toml:"dir"`
	RedisAddr string   `toml:"redis_addr"`
	RedisDB   int      `toml:"redis_db"`
	Prefix    string   `toml:"prefix"`
	Version   string   `toml:"version"`
}

type ProblemsConfig struct {
	Path string `toml:"path"`
}

type HealthConfig struct {
	ProbeTimeout   Duration `toml:"probe_timeout"`
	GenerateURL    string   `toml:"generate_url"`
	ExplainURL     string   `toml:"explain_url"`
	CorrectURL     string   `toml:"correct_url"`
	GateOnUpstream bool     `toml:"gate_on_upstream"`
}

type TracingConfig struct {
	Exporter string `toml:"exporter"` // none | stdout | otlphttp
	Endpoint string `toml:"endpoint"`
}

type LogConfig struct {
	Env   string `toml:"env"`
	Level string `toml:"level"`
}

// Duration wraps time.Duration so TOML files can say ttl = "24h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Load reads the TOML file at path (skipped when path is empty), applies
// environment overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the values that have no safe default.
func (c *Config) Validate() error {
	var errs []error

	if c.Upstream.BaseURL == "" {
		errs = append(errs, errors.New("upstream.base_url is required"))
	}
	if c.Upstream.Model == "" {
		errs = append(errs, errors.New("upstream.model is required"))
	}
	switch c.Cache.Backend {
	case "memory", "file", "redis":
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not one of memory, file, redis", c.Cache.Backend))
	}
	if c.Cache.Backend == "file" && c.Cache.Dir == "" {
		errs = append(errs, errors.New("cache.dir is required for the file backend"))
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		errs = append(errs, errors.New("cache.redis_addr is required for the redis backend"))
	}
	if c.Cache.TTL.Duration <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}
	if c.Upstream.TopP < 0 || c.Upstream.TopP > 1 {
		errs = append(errs, errors.New("upstream.top_p must be between 0 and 1"))
	}
	switch c.Tracing.Exporter {
	case "", "none", "stdout", "otlphttp":
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter %q is not one of none, stdout, otlphttp", c.Tracing.Exporter))
	}

	return errors.Join(errs...)
}

// applyEnv overrides file values with the environment, the way the gateway
// has always been configured in containers.
func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Upstream.BaseURL, "OLLAMA_BASE_URL")
	setString(&cfg.Upstream.Model, "OLLAMA_MODEL")
	setString(&cfg.Cache.Backend, "CACHE_BACKEND")
	setString(&cfg.Cache.Dir, "CACHE_DIR")
	setString(&cfg.Cache.RedisAddr, "REDIS_ADDR")
	setString(&cfg.Cache.Version, "CACHE_VERSION")
	setString(&cfg.Problems.Path, "PROBLEMS_PATH")
	setString(&cfg.Tracing.Exporter, "OTEL_EXPORTER")
	setString(&cfg.Tracing.Endpoint, "OTEL_ENDPOINT")
	setString(&cfg.Log.Env, "ENV")
	setString(&cfg.Log.Level, "LOG_LEVEL")

	if v := os.Getenv("CACHE_TTL"); v != "" {
		if err := cfg.Cache.TTL.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("CACHE_TTL: %w", err)
		}
	}
	if v := os.Getenv("UPSTREAM_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("UPSTREAM_MAX_RETRIES: %w", err)
		}
		cfg.Upstream.MaxRetries = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.Port == "" {
		s.Port = "8080"
	}
	defaultDuration(&s.ReadHeaderTimeout, 5*time.Second)
	defaultDuration(&s.ReadTimeout, 15*time.Second)
	defaultDuration(&s.WriteTimeout, 30*time.Second)
	defaultDuration(&s.IdleTimeout, 60*time.Second)
	defaultDuration(&s.RequestTimeout, 15*time.Second)
	if s.MaxBodyBytes <= 0 {
		s.MaxBodyBytes = 10 << 20
	}

	u := &cfg.Upstream
	if u.BaseURL == "" {
		u.BaseURL = "http://127.0.0.1:11434"
	}
	if u.Model == "" {
		u.Model = "codestral:latest"
	}
	if u.TopP == 0 {
		u.TopP = 0.9
	}
	if u.NumPredict == 0 {
		u.NumPredict = -1
	}

	c := &cfg.Cache
	if c.Backend == "" {
		c.Backend = "memory"
	}
	defaultDuration(&c.TTL, 24*time.Hour)
	if c.Prefix == "" {
		c.Prefix = "codestream"
	}
	if c.Version == "" {
		c.Version = "v2"
	}

	if cfg.Problems.Path == "" {
		cfg.Problems.Path = "questions.json"
	}

	defaultDuration(&cfg.Health.ProbeTimeout, 3*time.Second)
	if cfg.Tracing.Exporter == "" {
		cfg.Tracing.Exporter = "none"
	}
}

func defaultDuration(d *Duration, def time.Duration) {
	if d.Duration <= 0 {
		d.Duration = def
	}
}
