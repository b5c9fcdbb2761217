package vault

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestResolveRef_EnvFormat(t *testing.T) {
	v := New()
	t.Setenv("TEST_STOREPULSE_PORTAL_PASSWORD", "hunter2")

	got, err := v.ResolveRef("env:TEST_STOREPULSE_PORTAL_PASSWORD")
	if err != nil {
		t.Fatalf("ResolveRef(env:): %v", err)
	}
	if got != "hunter2" {
		t.Errorf("got %q, want %q", got, "hunter2")
	}
}

func TestResolveRef_EnvFormat_Unset(t *testing.T) {
	os.Unsetenv("NONEXISTENT_SECRET_VAR")

	_, err := New().ResolveRef("env:NONEXISTENT_SECRET_VAR")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveRef_InvalidFormats(t *testing.T) {
	v := New()
	for _, ref := range []string{
		"plaintext:secret",
		"keyring://badformat",
		"keyring://other-service/gateway-password",
		"keyring://storepulse/",
	} {
		if _, err := v.ResolveRef(ref); err == nil {
			t.Errorf("ResolveRef(%q): expected error", ref)
		}
	}
}

func TestResolveRef_FileFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hmac.key")
	if err := os.WriteFile(path, []byte("c2VjcmV0\n"), 0o600); err != nil {
		t.Fatalf("writing secret file: %v", err)
	}

	got, err := New().ResolveRef("file://" + path)
	if err != nil {
		t.Fatalf("ResolveRef(file://): %v", err)
	}
	if got != "c2VjcmV0" {
		t.Errorf("got %q, want trimmed secret", got)
	}
}

func TestResolveRef_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.key")
	if err := os.WriteFile(path, []byte("  \n"), 0o600); err != nil {
		t.Fatalf("writing secret file: %v", err)
	}
	if _, err := New().ResolveRef("file://" + path); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for empty file, got %v", err)
	}
}

func TestKeyringRoundTrip(t *testing.T) {
	keyring.MockInit()
	v := New()

	if err := v.Set(GatewayPassword, "portal-pass"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := v.ResolveRef("keyring://storepulse/gateway-password")
	if err != nil {
		t.Fatalf("ResolveRef(keyring://): %v", err)
	}
	if got != "portal-pass" {
		t.Errorf("got %q, want %q", got, "portal-pass")
	}

	if err := v.Delete(GatewayPassword); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := v.Get(GatewayPassword); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestGet_EnvFallback(t *testing.T) {
	keyring.MockInit()
	t.Setenv("STOREPULSE_SECRET_GATEWAY_HMAC_KEY", "env-hmac")

	got, err := New().Get(GatewayHMACKey)
	if err != nil {
		t.Fatalf("Get with env fallback: %v", err)
	}
	if got != "env-hmac" {
		t.Errorf("got %q, want %q", got, "env-hmac")
	}
}

func TestList(t *testing.T) {
	keyring.MockInit()
	t.Setenv(EnvName(GatewayHMACKey), "")
	v := New()
	if err := v.Set(GatewayPassword, "p"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got := v.List()
	if len(got) != 1 || got[0] != GatewayPassword {
		t.Errorf("List: got %v, want [%s]", got, GatewayPassword)
	}
}

func TestEnvName(t *testing.T) {
	if got := EnvName("gateway-hmac-key"); got != "STOREPULSE_SECRET_GATEWAY_HMAC_KEY" {
		t.Errorf("EnvName: got %q", got)
	}
}
