package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testEncryptionKey = "2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b"

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("CANOPY_CONFIG")
	defer os.Setenv("CANOPY_CONFIG", originalEnv)

	os.Setenv("CANOPY_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingEncryptionKey verifies run fails when no encryption
// key is configured, since stored credentials would be unreadable.
func TestRun_MissingEncryptionKey(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
site:
  id: test-site

database:
  path: "` + filepath.Join(tmpDir, "test.db") + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stderr

api:
  host: "127.0.0.1"
  port: 18080
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("CANOPY_CONFIG")
	defer os.Setenv("CANOPY_CONFIG", originalEnv)
	os.Setenv("CANOPY_CONFIG", configPath)

	originalKey := os.Getenv("CANOPY_ENCRYPTION_KEY")
	defer os.Setenv("CANOPY_ENCRYPTION_KEY", originalKey)
	os.Unsetenv("CANOPY_ENCRYPTION_KEY")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail without an encryption key")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("CANOPY_CONFIG")
	defer os.Setenv("CANOPY_CONFIG", originalEnv)

	os.Unsetenv("CANOPY_CONFIG")

	path := getConfigPath()
	if path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("CANOPY_CONFIG")
	defer os.Setenv("CANOPY_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("CANOPY_CONFIG", expected)

	path := getConfigPath()
	if path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestRun_StartupAndShutdown runs the full wiring with MQTT and
// InfluxDB disabled, then shuts down on context timeout.
func TestRun_StartupAndShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	dbPath := filepath.Join(tmpDir, "test.db")

	configContent := `
site:
  id: test-site

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

poller:
  interval: 300
  domain_spacing_ms: 1500
  max_concurrent_domains: 4
  controller_timeout: 30
  recency_window: 30

workflows:
  interval: 60
  max_delay_seconds: 30

sunlight:
  interval: 60

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stderr

api:
  host: "127.0.0.1"
  port: 18081
  timeouts:
    read: 30
    write: 60
    idle: 120

security:
  encryption_key: "` + testEncryptionKey + `"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("CANOPY_CONFIG")
	defer os.Setenv("CANOPY_CONFIG", originalEnv)
	os.Setenv("CANOPY_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() failed: %v", err)
	}

	// Database file should exist after a clean startup.
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}
