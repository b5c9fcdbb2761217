package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storepulse.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_WithExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
[server]
port = 9090
log_level = "debug"
data_dir = "`+dir+`"

[gateway]
base_url = "https://portal.example.com"
username = "ops"
app_id = "app-1"
store_id = "03795"
password_ref = "env:PORTAL_PASSWORD"

[pipeline]
work_dir = "`+dir+`/work"
late_fee_grace_minutes = 10
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { set(DefaultConfig()) })

	if cfg.Server.Port != 9090 {
		t.Errorf("Port: got %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("LogLevel: got %q, want %q", cfg.Server.LogLevel, "debug")
	}
	if cfg.Gateway.StoreID != "03795" || cfg.Gateway.PasswordRef != "env:PORTAL_PASSWORD" {
		t.Errorf("Gateway: %+v", cfg.Gateway)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Gateway.HMACKeyRef != "keyring://storepulse/gateway-hmac-key" {
		t.Errorf("HMACKeyRef: got %q", cfg.Gateway.HMACKeyRef)
	}
	if cfg.Pipeline.LateFeeGrace() != 10*time.Minute {
		t.Errorf("LateFeeGrace: got %v", cfg.Pipeline.LateFeeGrace())
	}
	if cfg.Pipeline.ChannelBatchSize != DefaultChannelBatchSize {
		t.Errorf("ChannelBatchSize: got %d", cfg.Pipeline.ChannelBatchSize)
	}
	if ConfigFilePath() != path {
		t.Errorf("ConfigFilePath: got %q, want %q", ConfigFilePath(), path)
	}
	if Get() != cfg {
		t.Error("Load should store the config globally")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
[server]
port = 7680
data_dir = "`+dir+`"
`)
	t.Setenv("STOREPULSE_SERVER_PORT", "8888")
	t.Setenv("STOREPULSE_GATEWAY_STORE_ID", "04000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { set(DefaultConfig()) })

	if cfg.Server.Port != 8888 {
		t.Errorf("Port with env override: got %d, want 8888", cfg.Server.Port)
	}
	if cfg.Gateway.StoreID != "04000" {
		t.Errorf("StoreID with env override: got %q", cfg.Gateway.StoreID)
	}
}

func TestLoad_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := writeConfig(t, `
[server]
data_dir = "~/spdata"

[pipeline]
work_dir = "~/spdata/work"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { set(DefaultConfig()) })

	if cfg.Server.DataDir != filepath.Join(home, "spdata") {
		t.Errorf("DataDir: got %q", cfg.Server.DataDir)
	}
	if cfg.Pipeline.WorkDir != filepath.Join(home, "spdata", "work") {
		t.Errorf("WorkDir: got %q", cfg.Pipeline.WorkDir)
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 0

[gateway]
base_url = "ftp://portal"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server.port", "gateway.base_url"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Port: got %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Server.Addr() != "127.0.0.1:7680" {
		t.Errorf("Addr: got %q", cfg.Server.Addr())
	}
	if cfg.Pipeline.LateFeeRate != 0.50 {
		t.Errorf("LateFeeRate: got %v", cfg.Pipeline.LateFeeRate)
	}
	if cfg.Resilience.RetryMaxAttempts != DefaultRetryMaxAttempts {
		t.Errorf("RetryMaxAttempts: got %d, want %d", cfg.Resilience.RetryMaxAttempts, DefaultRetryMaxAttempts)
	}
	if err := validate(cfg); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestServerConfig_DBPath(t *testing.T) {
	s := ServerConfig{DataDir: "/var/lib/storepulse"}
	if got := s.DBPath(); got != "/var/lib/storepulse/storepulse.db" {
		t.Errorf("DBPath: got %q", got)
	}
}

func TestGatewayConfig_TimeoutDuration(t *testing.T) {
	tests := []struct {
		timeout int
		wantSec int
	}{
		{0, DefaultGatewayTimeout},
		{-1, DefaultGatewayTimeout},
		{60, 60},
	}
	for _, tt := range tests {
		g := GatewayConfig{Timeout: tt.timeout}
		if got := int(g.TimeoutDuration().Seconds()); got != tt.wantSec {
			t.Errorf("TimeoutDuration(%d): got %ds, want %ds", tt.timeout, got, tt.wantSec)
		}
	}
}

func TestExportImportConfig(t *testing.T) {
	dir := t.TempDir()
	exportPath := filepath.Join(dir, "exported.toml")

	cfg := DefaultConfig()
	cfg.Server.DataDir = dir
	cfg.Gateway.StoreID = "03795"
	set(cfg)
	t.Cleanup(func() { set(DefaultConfig()) })
	loadedConfigFile.Store("")

	if err := ExportConfig(exportPath); err != nil {
		t.Fatalf("ExportConfig: %v", err)
	}

	set(DefaultConfig())
	if err := ImportConfig(exportPath); err != nil {
		t.Fatalf("ImportConfig: %v", err)
	}
	if got := Get().Gateway.StoreID; got != "03795" {
		t.Errorf("StoreID after round trip: got %q", got)
	}
}

func TestImportConfig_RejectsInvalid(t *testing.T) {
	path := writeConfig(t, `
[metrics]
retention_days = 0
`)
	before := Get()
	if err := ImportConfig(path); err == nil {
		t.Fatal("expected validation error")
	}
	if Get() != before {
		t.Error("invalid import must not replace the current config")
	}
}
