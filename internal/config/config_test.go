package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(PathEnv, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Server.Port != 3000 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Pipeline.ClusterLimit != 200 || cfg.Pipeline.ClusterThreshold != 0.65 || cfg.Pipeline.FallbackTimeout != 8*time.Second {
		t.Fatalf("unexpected pipeline defaults: %+v", cfg.Pipeline)
	}
	if cfg.Fallback.ResolvedProvider() != ProviderNone {
		t.Fatalf("no credentials should mean no fallback")
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Kind != "tophub" {
		t.Fatalf("unexpected default sources: %+v", cfg.Sources)
	}
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	t.Setenv(PathEnv, "")

	path := writeFile(t, "hotspot.yaml", `
database:
  driver: postgres
  dsn: postgres://u:p@localhost:5432/hotspot
scheduler:
  interval: 5m
  runOnStart: false
pipeline:
  clusterThreshold: 0.7
sources:
  - id: gov
    kind: rss
    entry: https://www.gov.example.cn/rss.xml
    type: A
  - id: local
    kind: html
    enabled: false
    entry: https://local.example.cn/
    type: B
    allowedHosts: [local.example.cn]
    hrefPatterns: ['.*\.shtml$']
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Database.Driver != "postgres" || !strings.HasPrefix(cfg.Database.DSN, "postgres://") {
		t.Fatalf("database not merged: %+v", cfg.Database)
	}
	if cfg.Scheduler.Interval != 5*time.Minute || cfg.Scheduler.StartsImmediately() {
		t.Fatalf("scheduler not merged: %+v", cfg.Scheduler)
	}
	if cfg.Pipeline.ClusterThreshold != 0.7 || cfg.Pipeline.ClusterLimit != 200 {
		t.Fatalf("pipeline merge should keep unspecified defaults: %+v", cfg.Pipeline)
	}
	if len(cfg.Sources) != 2 || cfg.Sources[1].IsEnabled() || !cfg.Sources[0].IsEnabled() {
		t.Fatalf("sources not loaded: %+v", cfg.Sources)
	}
	if cfg.Sources[1].HrefPatterns[0] != `.*\.shtml$` {
		t.Fatalf("unexpected pattern %q", cfg.Sources[1].HrefPatterns[0])
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeFile(t, "hotspot.yaml", "server:\n  port: 8080\n")
	t.Setenv(PathEnv, path)
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_DSN", "file.db")
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Database.DSN != "file.db" || cfg.Logging.Level != "debug" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.Fallback.ResolvedProvider() != ProviderChat {
		t.Fatalf("api key should enable the chat fallback")
	}
}

func TestLoadInvalidEnvPort(t *testing.T) {
	t.Setenv(PathEnv, "")
	t.Setenv("PORT", "not-a-number")

	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for non-numeric PORT")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Pipeline.ClusterThreshold = 1.5
	cfg.Fallback.Provider = "openai"
	cfg.Sources = []SourceConfig{
		{ID: "a", Kind: "rss", Entry: "https://a", Type: "Z"},
		{ID: "a", Kind: "rss", Entry: "https://b"},
		{Kind: "rss"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"clusterThreshold", "fallback.provider", "unknown type", "duplicate id", "required"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestResolvedProvider(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  FallbackConfig
		want string
	}{
		{"auto chat", FallbackConfig{Chat: ChatConfig{APIKey: "k"}, Inference: InferenceConfig{Endpoint: "http://x"}}, ProviderChat},
		{"auto inference", FallbackConfig{Inference: InferenceConfig{Endpoint: "http://x"}}, ProviderInference},
		{"explicit inference", FallbackConfig{Provider: "inference", Chat: ChatConfig{APIKey: "k"}, Inference: InferenceConfig{Endpoint: "http://x"}}, ProviderInference},
		{"chat without key", FallbackConfig{Provider: "chat"}, ProviderNone},
		{"disabled", FallbackConfig{Provider: "none", Chat: ChatConfig{APIKey: "k"}}, ProviderNone},
	}
	for _, tc := range cases {
		if got := tc.cfg.ResolvedProvider(); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestLoadDotEnvSkipsMissing(t *testing.T) {
	path := writeFile(t, "test.env", "HOTSPOT_TEST_VALUE=from-file\n")
	t.Setenv("HOTSPOT_TEST_VALUE", "")
	os.Unsetenv("HOTSPOT_TEST_VALUE")

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "nope.env"), path); err != nil {
		t.Fatalf("LoadDotEnv error: %v", err)
	}
	if got := os.Getenv("HOTSPOT_TEST_VALUE"); got != "from-file" {
		t.Fatalf("expected value from env file, got %q", got)
	}
}

func TestServerAddr(t *testing.T) {
	t.Parallel()

	if got := (ServerConfig{Port: 3000}).Addr(); got != ":3000" {
		t.Fatalf("unexpected addr %q", got)
	}
}
