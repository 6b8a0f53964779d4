package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"PORT", "ENV", "REDIS_ADDR", "QUEUE_BACKEND", "LOCK_BACKEND", "WORKER_CONCURRENCY", "CONFIDENCE_THRESHOLD", "LLM_PROVIDER", "AUTO_SUBMIT", "BATCH_INTERVAL_SECONDS", "STALE_PROCESSING_SECONDS"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" || cfg.Env != "dev" {
		t.Fatalf("unexpected defaults: port=%s env=%s", cfg.Port, cfg.Env)
	}
	if cfg.QueueBackend != "memory" || cfg.LockBackend != "memory" {
		t.Fatalf("expected memory backends, got %s/%s", cfg.QueueBackend, cfg.LockBackend)
	}
	if cfg.ConfidenceThreshold != 0 || cfg.WorkerConcurrency != 1 || cfg.LLMProvider != "template" {
		t.Fatalf("unexpected decision defaults: %+v", cfg)
	}
	if cfg.AutoSubmit || cfg.BatchInterval != 5*time.Minute || cfg.StaleAfter != 15*time.Minute {
		t.Fatalf("unexpected worker defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENV", "prod")
	t.Setenv("REDIS_ADDR", "redis://cache:6379")
	t.Setenv("QUEUE_BACKEND", "")
	t.Setenv("LOCK_BACKEND", "memory")
	t.Setenv("CONFIDENCE_THRESHOLD", "75.5")
	t.Setenv("MAX_RESPONSE_LENGTH", "abc")
	t.Setenv("WORKER_CONCURRENCY", "0")
	t.Setenv("AUTO_SUBMIT", "true")

	cfg := Load()
	if cfg.Env != "production" || cfg.RedisAddr != "cache:6379" {
		t.Fatalf("unexpected env/redis: %s %s", cfg.Env, cfg.RedisAddr)
	}
	if cfg.QueueBackend != "redis" || cfg.LockBackend != "memory" {
		t.Fatalf("unexpected backends: %s/%s", cfg.QueueBackend, cfg.LockBackend)
	}
	if cfg.ConfidenceThreshold != 75.5 || cfg.MaxResponseLength != 0 {
		t.Fatalf("unexpected thresholds: %v %d", cfg.ConfidenceThreshold, cfg.MaxResponseLength)
	}
	if cfg.WorkerConcurrency != 1 || !cfg.AutoSubmit {
		t.Fatalf("unexpected worker settings: %d %v", cfg.WorkerConcurrency, cfg.AutoSubmit)
	}
}

func TestLoadEnvFilesKeepsProcessEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("# comment\nCSREPLY_TEST_A=\"from-file\"\nCSREPLY_TEST_B=file\nbroken\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CSREPLY_TEST_B", "from-env")
	os.Unsetenv("CSREPLY_TEST_A")
	t.Cleanup(func() { os.Unsetenv("CSREPLY_TEST_A") })

	loadEnvFiles(path)
	if got := os.Getenv("CSREPLY_TEST_A"); got != "from-file" {
		t.Fatalf("expected file value, got %q", got)
	}
	if got := os.Getenv("CSREPLY_TEST_B"); got != "from-env" {
		t.Fatalf("expected process env to win, got %q", got)
	}
}

func TestParseEnvLine(t *testing.T) {
	cases := []struct {
		line     string
		key, val string
		ok       bool
	}{
		{line: "SUBMIT_URL=http://hooks.local/reply", key: "SUBMIT_URL", val: "http://hooks.local/reply", ok: true},
		{line: "export AUTO_SUBMIT=true", key: "AUTO_SUBMIT", val: "true", ok: true},
		{line: `JWT_SECRET="a # not a comment"`, key: "JWT_SECRET", val: "a # not a comment", ok: true},
		{line: "LLM_MODEL='gpt-4o-mini'", key: "LLM_MODEL", val: "gpt-4o-mini", ok: true},
		{line: "BATCH_SIZE=25 # nightly", key: "BATCH_SIZE", val: "25", ok: true},
		{line: "# comment"},
		{line: "=novalue"},
		{line: "NOEQUALS"},
	}
	for _, tc := range cases {
		key, val, ok := parseEnvLine(tc.line)
		if ok != tc.ok || key != tc.key || val != tc.val {
			t.Fatalf("parseEnvLine(%q) = %q, %q, %v", tc.line, key, val, ok)
		}
	}
}
