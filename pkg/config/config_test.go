package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "LOG_LEVEL", "AGENT_URL", "COORDINATOR_ID", "STORE_BACKEND", "STATE_DIR"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := Load()
	if cfg.Port != "8080" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.LogLevel != "INFO" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
	if cfg.CoordinatorID != "sentinel_coordinator" {
		t.Errorf("coordinator id = %q", cfg.CoordinatorID)
	}
	if cfg.StoreBackend != BackendFile {
		t.Errorf("backend = %q", cfg.StoreBackend)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_BACKEND", BackendRedis)
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("AUTH_SIGNING_KEY", "secret")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.StoreBackend != BackendRedis || cfg.RedisAddr != "localhost:6379" {
		t.Errorf("backend = %q addr = %q", cfg.StoreBackend, cfg.RedisAddr)
	}
	if cfg.AuthSigningKey != "secret" {
		t.Errorf("signing key = %q", cfg.AuthSigningKey)
	}
}

func TestLoadProfile_DefaultWhenUnset(t *testing.T) {
	p, err := LoadProfile("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(p.TaskContexts) != 6 {
		t.Errorf("task contexts = %v", p.TaskContexts)
	}
	if p.TaskContexts[0] != "Business Operations" {
		t.Errorf("first context = %q", p.TaskContexts[0])
	}
	if p.RateLimit.RequestsPerSecond != 5 || p.RateLimit.Burst != 10 {
		t.Errorf("rate limit = %+v", p.RateLimit)
	}
}

func TestLoadProfile_FromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	content := `name: fintech
task_contexts:
  - Payments
  - Treasury
rate_limit:
  requests_per_second: 2
  burst: 4
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Name != "fintech" {
		t.Errorf("name = %q", p.Name)
	}
	if len(p.TaskContexts) != 2 || p.TaskContexts[1] != "Treasury" {
		t.Errorf("contexts = %v", p.TaskContexts)
	}
	if p.RateLimit.RequestsPerSecond != 2 || p.RateLimit.Burst != 4 {
		t.Errorf("rate limit = %+v", p.RateLimit)
	}
}

func TestLoadProfile_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte("name: sparse\n"), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(p.TaskContexts) != 6 {
		t.Errorf("expected default contexts, got %v", p.TaskContexts)
	}
	if p.RateLimit.RequestsPerSecond != 5 {
		t.Errorf("rate limit = %+v", p.RateLimit)
	}
}

func TestLoadProfile_MissingFileErrors(t *testing.T) {
	if _, err := LoadProfile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing explicit profile")
	}
}
