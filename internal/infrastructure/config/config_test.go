package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// testKey is a valid 256-bit hex key for tests.
const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// writeConfig writes YAML content to a temp file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
security:
  encryption_key: "`+testKey+`"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Path != "./data/canopy.db" {
		t.Errorf("default database path = %q", cfg.Database.Path)
	}
	if cfg.Poller.RecencyWindow != 30 {
		t.Errorf("default recency window = %d, want 30", cfg.Poller.RecencyWindow)
	}
	if cfg.Workflow.MaxDelaySeconds != 30 {
		t.Errorf("default max delay = %d, want 30", cfg.Workflow.MaxDelaySeconds)
	}
	if cfg.Poller.MaxConcurrentDomains != 4 {
		t.Errorf("default max concurrent domains = %d, want 4", cfg.Poller.MaxConcurrentDomains)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/other.db
poller:
  interval: 120
  domain_spacing_ms: 2500
security:
  encryption_key: "`+testKey+`"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Path != "/tmp/other.db" {
		t.Errorf("database path = %q", cfg.Database.Path)
	}
	if got := cfg.DomainSpacing(); got != 2500*time.Millisecond {
		t.Errorf("DomainSpacing() = %v, want 2.5s", got)
	}
	if got := cfg.PollInterval(); got != 2*time.Minute {
		t.Errorf("PollInterval() = %v, want 2m", got)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("CANOPY_DATABASE_PATH", "/env/canopy.db")
	t.Setenv("CANOPY_ENCRYPTION_KEY", testKey)

	path := writeConfig(t, `
database:
  path: /file/canopy.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Path != "/env/canopy.db" {
		t.Errorf("database path = %q, want env override", cfg.Database.Path)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate_MissingEncryptionKey(t *testing.T) {
	path := writeConfig(t, `
site:
  id: site-test
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "encryption_key") {
		t.Errorf("error %q does not mention encryption_key", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Site.ID = ""
	cfg.MQTT.QoS = 7
	cfg.Poller.MaxConcurrentDomains = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"site.id", "mqtt.qos", "max_concurrent_domains", "encryption_key"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestValidate_BadEncryptionKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"too short", "abcdef"},
		{"not hex", strings.Repeat("z", 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Security.EncryptionKey = tt.key
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestEncryptionKeyBytes(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.EncryptionKey = testKey

	key := cfg.EncryptionKeyBytes()
	if len(key) != 32 {
		t.Fatalf("key length = %d, want 32", len(key))
	}
	if key[0] != 0x00 || key[31] != 0x1f {
		t.Errorf("key bytes decoded incorrectly: %x", key)
	}
}
