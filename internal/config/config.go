package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// PathEnv names the environment variable holding the YAML config path.
	PathEnv = "HOTSPOT_CONFIG"

	ProviderChat      = "chat"
	ProviderInference = "inference"
	ProviderNone      = "none"

	minSchedulerInterval = 20 * time.Second
)

// Config holds high-level settings required across the application.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Fallback  FallbackConfig  `yaml:"fallback"`
	Sources   []SourceConfig  `yaml:"sources"`
}

// DatabaseConfig selects the SQL driver and its connection string.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ServerConfig describes the read API listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port for the listener.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SchedulerConfig defines how often the pipeline runs.
type SchedulerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	RunOnStart *bool         `yaml:"runOnStart"`
}

// StartsImmediately reports whether serve triggers a run before the first tick.
func (s SchedulerConfig) StartsImmediately() bool {
	return s.RunOnStart == nil || *s.RunOnStart
}

// PipelineConfig tunes a single run.
type PipelineConfig struct {
	ClusterLimit     int           `yaml:"clusterLimit"`
	ClusterThreshold float64       `yaml:"clusterThreshold"`
	FetchConcurrency int           `yaml:"fetchConcurrency"`
	FallbackTimeout  time.Duration `yaml:"fallbackTimeout"`
}

// FallbackConfig selects the external classifier used for low-confidence titles.
type FallbackConfig struct {
	Provider  string          `yaml:"provider"`
	Chat      ChatConfig      `yaml:"chat"`
	Inference InferenceConfig `yaml:"inference"`
}

// ChatConfig defines how to contact a chat-completions API.
type ChatConfig struct {
	BaseURL     string  `yaml:"baseUrl"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"apiKey"`
	Temperature float64 `yaml:"temperature"`
}

// InferenceConfig describes a self-hosted classification service.
type InferenceConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
}

// ResolvedProvider returns the provider to wire. An empty provider picks chat
// when an API key is present, then inference when an endpoint is present.
// A provider without its credentials resolves to none.
func (f FallbackConfig) ResolvedProvider() string {
	switch strings.ToLower(strings.TrimSpace(f.Provider)) {
	case ProviderChat:
		if f.Chat.APIKey != "" {
			return ProviderChat
		}
	case ProviderInference:
		if f.Inference.Endpoint != "" {
			return ProviderInference
		}
	case "":
		if f.Chat.APIKey != "" {
			return ProviderChat
		}
		if f.Inference.Endpoint != "" {
			return ProviderInference
		}
	}
	return ProviderNone
}

// SourceConfig describes one feed and the strategy that reads it.
type SourceConfig struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Kind         string   `yaml:"kind"`
	Enabled      *bool    `yaml:"enabled"`
	Entry        string   `yaml:"entry"`
	Type         string   `yaml:"type"`
	AllowedHosts []string `yaml:"allowedHosts"`
	HrefPatterns []string `yaml:"hrefPatterns"`
}

// IsEnabled treats a missing flag as enabled.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

type envOverrides struct {
	DatabaseDriver     string `envconfig:"DATABASE_DRIVER"`
	DatabaseDSN        string `envconfig:"DATABASE_DSN"`
	DeepSeekAPIKey     string `envconfig:"DEEPSEEK_API_KEY"`
	DeepSeekBaseURL    string `envconfig:"DEEPSEEK_BASE_URL"`
	DeepSeekModel      string `envconfig:"DEEPSEEK_MODEL"`
	ClassifierEndpoint string `envconfig:"CLASSIFIER_ENDPOINT"`
	FallbackProvider   string `envconfig:"FALLBACK_PROVIDER"`
	Port               int    `envconfig:"PORT"`
	LogLevel           string `envconfig:"LOG_LEVEL"`
	LogFormat          string `envconfig:"LOG_FORMAT"`
}

// LoadDotEnv loads .env style files into the process environment. Variables
// already set win. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, the YAML file at path (or
// $HOTSPOT_CONFIG when path is empty) and environment overrides.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}

	if env.DatabaseDriver != "" {
		c.Database.Driver = env.DatabaseDriver
	}
	if env.DatabaseDSN != "" {
		c.Database.DSN = env.DatabaseDSN
	}
	if env.DeepSeekAPIKey != "" {
		c.Fallback.Chat.APIKey = env.DeepSeekAPIKey
	}
	if env.DeepSeekBaseURL != "" {
		c.Fallback.Chat.BaseURL = env.DeepSeekBaseURL
	}
	if env.DeepSeekModel != "" {
		c.Fallback.Chat.Model = env.DeepSeekModel
	}
	if env.ClassifierEndpoint != "" {
		c.Fallback.Inference.Endpoint = env.ClassifierEndpoint
	}
	if env.FallbackProvider != "" {
		c.Fallback.Provider = env.FallbackProvider
	}
	if env.Port != 0 {
		c.Server.Port = env.Port
	}
	if env.LogLevel != "" {
		c.Logging.Level = env.LogLevel
	}
	if env.LogFormat != "" {
		c.Logging.Format = env.LogFormat
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Pipeline.ClusterLimit <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.clusterLimit must be positive"))
	}
	if c.Pipeline.ClusterThreshold <= 0 || c.Pipeline.ClusterThreshold > 1 {
		errs = append(errs, fmt.Errorf("pipeline.clusterThreshold must be in (0, 1]"))
	}
	if c.Scheduler.Interval < minSchedulerInterval {
		errs = append(errs, fmt.Errorf("scheduler.interval must be at least %s", minSchedulerInterval))
	}
	switch strings.ToLower(c.Fallback.Provider) {
	case "", ProviderChat, ProviderInference, ProviderNone:
	default:
		errs = append(errs, fmt.Errorf("fallback.provider %q is not one of chat, inference, none", c.Fallback.Provider))
	}

	seen := map[string]bool{}
	for i, src := range c.Sources {
		if src.ID == "" || src.Kind == "" || src.Entry == "" {
			errs = append(errs, fmt.Errorf("sources[%d]: id, kind and entry are required", i))
			continue
		}
		if seen[src.ID] {
			errs = append(errs, fmt.Errorf("sources[%d]: duplicate id %q", i, src.ID))
		}
		seen[src.ID] = true
		switch strings.ToUpper(src.Type) {
		case "", "A", "B", "C", "D", "E":
		default:
			errs = append(errs, fmt.Errorf("sources[%d]: unknown type %q", i, src.Type))
		}
	}
	return errors.Join(errs...)
}

func mergeConfig(base, override Config) Config {
	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Server.Host != "" {
		base.Server.Host = override.Server.Host
	}
	if override.Server.Port != 0 {
		base.Server.Port = override.Server.Port
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Scheduler.Interval != 0 {
		base.Scheduler.Interval = override.Scheduler.Interval
	}
	if override.Scheduler.RunOnStart != nil {
		base.Scheduler.RunOnStart = override.Scheduler.RunOnStart
	}

	if override.Pipeline.ClusterLimit != 0 {
		base.Pipeline.ClusterLimit = override.Pipeline.ClusterLimit
	}
	if override.Pipeline.ClusterThreshold != 0 {
		base.Pipeline.ClusterThreshold = override.Pipeline.ClusterThreshold
	}
	if override.Pipeline.FetchConcurrency != 0 {
		base.Pipeline.FetchConcurrency = override.Pipeline.FetchConcurrency
	}
	if override.Pipeline.FallbackTimeout != 0 {
		base.Pipeline.FallbackTimeout = override.Pipeline.FallbackTimeout
	}

	if override.Fallback.Provider != "" {
		base.Fallback.Provider = override.Fallback.Provider
	}
	if override.Fallback.Chat.BaseURL != "" {
		base.Fallback.Chat.BaseURL = override.Fallback.Chat.BaseURL
	}
	if override.Fallback.Chat.Model != "" {
		base.Fallback.Chat.Model = override.Fallback.Chat.Model
	}
	if override.Fallback.Chat.APIKey != "" {
		base.Fallback.Chat.APIKey = override.Fallback.Chat.APIKey
	}
	if override.Fallback.Chat.Temperature != 0 {
		base.Fallback.Chat.Temperature = override.Fallback.Chat.Temperature
	}
	if override.Fallback.Inference.Endpoint != "" {
		base.Fallback.Inference.Endpoint = override.Fallback.Inference.Endpoint
	}
	if override.Fallback.Inference.APIKey != "" {
		base.Fallback.Inference.APIKey = override.Fallback.Inference.APIKey
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Database:  DatabaseConfig{Driver: "sqlite", DSN: "data/hotspot.db"},
		Server:    ServerConfig{Host: "", Port: 3000},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Scheduler: SchedulerConfig{Interval: 2 * time.Minute},
		Pipeline: PipelineConfig{
			ClusterLimit:     200,
			ClusterThreshold: 0.65,
			FetchConcurrency: 4,
			FallbackTimeout:  8 * time.Second,
		},
		Fallback: FallbackConfig{
			Chat: ChatConfig{
				BaseURL:     "https://api.deepseek.com",
				Model:       "deepseek-chat",
				Temperature: 0.2,
			},
		},
		Sources: []SourceConfig{
			{ID: "tophub", Name: "TopHub", Kind: "tophub", Entry: "https://tophub.today/c/news", Type: "D"},
		},
	}
}
