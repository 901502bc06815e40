package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend.BaseURL != "http://localhost:5000" {
		t.Fatalf("expected default backend, got %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.VCPU != 0.25 || cfg.Backend.Memory != "512m" {
		t.Fatalf("unexpected session resources: %+v", cfg.Backend)
	}
	if cfg.Console.WhoAmI != "forge" || cfg.Console.TranscriptMaxLines != 0 {
		t.Fatalf("unexpected console defaults: %+v", cfg.Console)
	}
	if cfg.HTTP.Cookie != "forgecode_workspace" || cfg.HTTP.ProxyPrefix != "/api/proxy" {
		t.Fatalf("unexpected http defaults: %+v", cfg.HTTP)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
state_dir: /tmp/forge-state
backend:
  base_url: https://exec.example.com
  language: lua
  vcpu: 1
console:
  whoami: alice
  transcript_max_lines: 500
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StateDir != "/tmp/forge-state" || cfg.Backend.BaseURL != "https://exec.example.com" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Backend.Language != "lua" || cfg.Backend.VCPU != 1 {
		t.Fatalf("unexpected backend: %+v", cfg.Backend)
	}
	if cfg.Backend.Memory != "512m" {
		t.Fatalf("expected default memory to survive, got %q", cfg.Backend.Memory)
	}
	if cfg.Console.WhoAmI != "alice" || cfg.Console.TranscriptMaxLines != 500 {
		t.Fatalf("unexpected console: %+v", cfg.Console)
	}
}

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, `
config_version: 3
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRejectsInvalidBackendURL(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
backend:
  base_url: example.com
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "backend.base_url") {
		t.Fatalf("expected base_url error, got %v", err)
	}
}

func TestLoadRejectsUnsupportedLanguage(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
backend:
  language: cobol
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported backend.language") {
		t.Fatalf("expected language error, got %v", err)
	}
}

func TestLoadRejectsUnknownTheme(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
ssh:
  theme: sepia
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "ssh.theme") {
		t.Fatalf("expected theme error, got %v", err)
	}
}

func TestLoadRejectsURLBasePath(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
http:
  base_path: https://example.com/forge
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "http.base_path") {
		t.Fatalf("expected base_path error, got %v", err)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("FORGE_TEST_ROOT", "/srv/forge")
	path := writeConfig(t, `
config_version: 1
state_dir: $FORGE_TEST_ROOT/state
ssh:
  host_key_path: ${FORGE_TEST_ROOT}/host_key
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StateDir != "/srv/forge/state" || cfg.SSH.HostKeyPath != "/srv/forge/host_key" {
		t.Fatalf("expected env expansion, got %q and %q", cfg.StateDir, cfg.SSH.HostKeyPath)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	value := expandEnv("$FOO/$UID/$GID/$MISSING")
	if !strings.HasPrefix(value, "bar/") {
		t.Fatalf("expected env expansion, got %q", value)
	}
	if !strings.HasSuffix(value, "/$MISSING") {
		t.Fatalf("expected unknown variable to be kept, got %q", value)
	}
}

func TestWriteDefaultRespectsOverwrite(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if _, err := WriteDefault(path, false); err != nil {
		t.Fatalf("write default: %v", err)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load written default: %v", err)
	}
	if cfg.ConfigVersion != CurrentConfigVersion {
		t.Fatalf("expected version %d, got %d", CurrentConfigVersion, cfg.ConfigVersion)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
