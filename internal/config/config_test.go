package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "logsleuth", cfg.Server.Name)
	assert.Equal(t, "localhost", cfg.Splunk.Host)
	assert.Equal(t, 8089, cfg.Splunk.Port)
	assert.Equal(t, "https", cfg.Splunk.Scheme)
	assert.True(t, cfg.Splunk.VerifySSL)
	assert.Equal(t, 30*time.Second, cfg.Splunk.Timeout)
	assert.Equal(t, 100, cfg.MaxResultsDefault)
	assert.Empty(t, cfg.AuditDBPath)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"server": {"host": "0.0.0.0", "port": 9000},
		"splunk": {"host": "splunk.internal", "token": "abc", "timeout": 45},
		"max_results_default": 250,
		"audit_db_path": "audit.db"
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "splunk.internal", cfg.Splunk.Host)
	assert.Equal(t, "abc", cfg.Splunk.Token)
	assert.Equal(t, 45*time.Second, cfg.Splunk.Timeout)
	assert.Equal(t, 250, cfg.MaxResultsDefault)
	assert.Equal(t, "audit.db", cfg.AuditDBPath)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"splunk": {"host": "from-file"}}`), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("SPLUNK_HOST", "from-env")
	t.Setenv("SPLUNK_PORT", "8090")
	t.Setenv("SPLUNK_VERIFY_SSL", "false")
	t.Setenv("SERVER_PORT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assert.Equal(t, "from-env", cfg.Splunk.Host)
	assert.Equal(t, 8090, cfg.Splunk.Port)
	assert.False(t, cfg.Splunk.VerifySSL)
	// A malformed integer keeps the prior value.
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("SPLUNK_TIMEOUT", "-5")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{broken`), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)

	_, err := Load()
	assert.Error(t, err)
}
