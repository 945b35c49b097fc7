package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDotEnvKeepsProcessEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "" +
		"# comment line\n" +
		"NARRATOR_TEST_PLAIN=value1\n" +
		"export NARRATOR_TEST_EXPORTED=value2\n" +
		"NARRATOR_TEST_QUOTED=\"with spaces\"\n" +
		"NARRATOR_TEST_SINGLE='single quoted'\n" +
		"NARRATOR_TEST_INLINE=bare # trailing comment\n" +
		"NARRATOR_TEST_EXISTING=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("NARRATOR_TEST_EXISTING", "from-process")
	for _, key := range []string{
		"NARRATOR_TEST_PLAIN", "NARRATOR_TEST_EXPORTED",
		"NARRATOR_TEST_QUOTED", "NARRATOR_TEST_SINGLE", "NARRATOR_TEST_INLINE",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	if err := LoadDotEnv(path, filepath.Join(dir, ".env.missing")); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}

	cases := map[string]string{
		"NARRATOR_TEST_PLAIN":    "value1",
		"NARRATOR_TEST_EXPORTED": "value2",
		"NARRATOR_TEST_QUOTED":   "with spaces",
		"NARRATOR_TEST_SINGLE":   "single quoted",
		"NARRATOR_TEST_INLINE":   "bare",
		"NARRATOR_TEST_EXISTING": "from-process",
	}
	for key, want := range cases {
		if got := os.Getenv(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	for _, key := range []string{
		"NARRATOR_BACKEND_URL", "NARRATOR_POLL_INITIAL_DELAY_MS",
		"NARRATOR_POLL_INTERVAL_MS", "NARRATOR_LOCALE",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := Load()
	if cfg.BackendBaseURL != "http://localhost:8080" {
		t.Fatalf("backend url default: %q", cfg.BackendBaseURL)
	}
	if cfg.PollInitialDelay != time.Second || cfg.PollInterval != 2*time.Second {
		t.Fatalf("poll defaults: %v %v", cfg.PollInitialDelay, cfg.PollInterval)
	}
	if cfg.Locale != "zh-TW" {
		t.Fatalf("locale default: %q", cfg.Locale)
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("NARRATOR_BACKEND_URL", "http://10.0.0.5:9000")
	t.Setenv("NARRATOR_POLL_INTERVAL_MS", "500")
	t.Setenv("NARRATOR_PREVIEW_RPS", "2.5")

	cfg := Load()
	if cfg.BackendBaseURL != "http://10.0.0.5:9000" {
		t.Fatalf("backend url override: %q", cfg.BackendBaseURL)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Fatalf("poll interval override: %v", cfg.PollInterval)
	}
	if cfg.PreviewRPS != 2.5 {
		t.Fatalf("preview rps override: %v", cfg.PreviewRPS)
	}
}
