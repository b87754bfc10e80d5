package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearConfigEnv blanks every variable LoadConfig reads so ambient
// values cannot leak into a test.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"PORT", "UPSTREAM_URL", "STATIC_ROOT", "INDEX_FILE",
		"LOG_FORMAT", "SHUTDOWN_TIMEOUT",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("STATIC_ROOT", newTestBundle(t))
	t.Setenv("UPSTREAM_URL", "https://backend.example.run.app")

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.ListenPort != 8080 {
		t.Errorf("Expected default port 8080, got %d", config.ListenPort)
	}
	if config.IndexFile != "index.html" {
		t.Errorf("Expected default entry document index.html, got %q", config.IndexFile)
	}
	if config.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected default shutdown timeout 10s, got %v", config.ShutdownTimeout)
	}
	if config.Upstream == nil || config.Upstream.Host != "backend.example.run.app" {
		t.Errorf("Expected upstream backend.example.run.app, got %v", config.Upstream)
	}

	want := []ForwardRule{{Prefix: "/ws", Upgrade: true}, {Prefix: "/api"}}
	if len(config.Rules) != len(want) {
		t.Fatalf("Expected %d default rules, got %d", len(want), len(config.Rules))
	}
	for i, rule := range want {
		if config.Rules[i] != rule {
			t.Errorf("Rule %d: expected %+v, got %+v", i, rule, config.Rules[i])
		}
	}
}

func TestEnvOverridesConfigFile(t *testing.T) {
	clearConfigEnv(t)
	root := newTestBundle(t)

	configFile := filepath.Join(t.TempDir(), "gateway.yml")
	yaml := `
server:
  listen: 9001
  static_root: ` + root + `
upstream:
  url: http://file.example.com
`
	if err := os.WriteFile(configFile, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PORT", "9002")
	t.Setenv("UPSTREAM_URL", "http://env.example.com")

	config, err := LoadConfig(configFile)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.ListenPort != 9002 {
		t.Errorf("Expected environment to override file port, got %d", config.ListenPort)
	}
	if config.Upstream.Host != "env.example.com" {
		t.Errorf("Expected environment to override file upstream, got %q", config.Upstream.Host)
	}
}

func TestConfigFileRoutesAndAssets(t *testing.T) {
	clearConfigEnv(t)
	root := newTestBundle(t)

	configFile := filepath.Join(t.TempDir(), "gateway.yml")
	yaml := `
server:
  static_root: ` + root + `
  shutdown_timeout: 30s
upstream:
  url: http://backend.internal:9000
routes:
  proxies:
    - path: /socket
      upgrade: true
    - path: /v1
static:
  directories:
    - path: /assets/
      cache: 86400
`
	if err := os.WriteFile(configFile, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(configFile)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected shutdown timeout 30s, got %v", config.ShutdownTimeout)
	}
	want := []ForwardRule{{Prefix: "/socket", Upgrade: true}, {Prefix: "/v1"}}
	if len(config.Rules) != len(want) {
		t.Fatalf("Expected file rules to replace defaults, got %+v", config.Rules)
	}
	for i, rule := range want {
		if config.Rules[i] != rule {
			t.Errorf("Rule %d: expected %+v, got %+v", i, rule, config.Rules[i])
		}
	}
	if len(config.AssetDirs) != 1 || config.AssetDirs[0].URLPath != "/assets/" || config.AssetDirs[0].CacheTTL != 86400 {
		t.Errorf("Expected asset directory mapping, got %+v", config.AssetDirs)
	}
}

func TestStaticOnlyModeAllowsMissingUpstream(t *testing.T) {
	clearConfigEnv(t)
	root := newTestBundle(t)

	configFile := filepath.Join(t.TempDir(), "gateway.yml")
	yaml := `
server:
  static_root: ` + root + `
routes:
  proxies: []
`
	if err := os.WriteFile(configFile, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(configFile)
	if err != nil {
		t.Fatalf("Expected static-only mode without upstream, got error: %v", err)
	}
	if len(config.Rules) != 0 {
		t.Errorf("Expected no forwarding rules, got %+v", config.Rules)
	}
}

func TestMissingUpstreamIsFatal(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("STATIC_ROOT", newTestBundle(t))

	if _, err := LoadConfig(""); err == nil {
		t.Fatal("Expected fatal error when upstream is unset but routes exist")
	}
}

func TestMalformedUpstreamIsFatal(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("STATIC_ROOT", newTestBundle(t))

	for _, bad := range []string{"not-a-url", "ftp://backend.example.com", "http://"} {
		t.Setenv("UPSTREAM_URL", bad)
		if _, err := LoadConfig(""); err == nil {
			t.Errorf("Expected fatal error for upstream %q", bad)
		}
	}
}

func TestMissingStaticRootIsFatal(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("STATIC_ROOT", filepath.Join(t.TempDir(), "does-not-exist"))
	t.Setenv("UPSTREAM_URL", "http://backend.example.com")

	if _, err := LoadConfig(""); err == nil {
		t.Fatal("Expected fatal error for missing static root")
	}
}

func TestMissingEntryDocumentIsFatal(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("STATIC_ROOT", t.TempDir()) // exists, but holds no index.html
	t.Setenv("UPSTREAM_URL", "http://backend.example.com")

	if _, err := LoadConfig(""); err == nil {
		t.Fatal("Expected fatal error for missing entry document")
	}
}

func TestShutdownTimeoutFromEnv(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("STATIC_ROOT", newTestBundle(t))
	t.Setenv("UPSTREAM_URL", "http://backend.example.com")
	t.Setenv("SHUTDOWN_TIMEOUT", "45s")

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.ShutdownTimeout != 45*time.Second {
		t.Errorf("Expected shutdown timeout 45s, got %v", config.ShutdownTimeout)
	}
}
