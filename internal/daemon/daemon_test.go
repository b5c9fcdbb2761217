package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/allaspectsdev/storepulse/internal/store"
	"github.com/allaspectsdev/storepulse/internal/testutil"
)

type fakeSecrets map[string]string

func (f fakeSecrets) ResolveRef(ref string) (string, error) {
	if v, ok := f[ref]; ok {
		return v, nil
	}
	return "", errors.New("not found: " + ref)
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"bogus":   zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupLogging_WritesFile(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	cfg := testutil.NewTestConfig(t)
	cfg.Server.LogLevel = "debug"
	closer, err := SetupLogging(cfg, false)
	if err != nil {
		t.Fatalf("SetupLogging: %v", err)
	}
	log.Info().Str("store", "03795").Msg("hello")
	closer.Close()

	data, err := os.ReadFile(filepath.Join(cfg.Server.DataDir, logFilename))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `"store":"03795"`) || !strings.Contains(string(data), `"service":"storepulse"`) {
		t.Errorf("log file missing fields: %s", data)
	}
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Errorf("global level: got %v, want debug", zerolog.GlobalLevel())
	}
}

func TestNewGatewayClient(t *testing.T) {
	cfg := testutil.NewTestConfig(t)

	cfg.Gateway.BaseURL = ""
	client, err := NewGatewayClient(cfg, fakeSecrets{})
	if err != nil || client != nil {
		t.Fatalf("no base url: got (%v, %v), want (nil, nil)", client, err)
	}

	cfg.Gateway.BaseURL = "https://portal.example.com"
	cfg.Gateway.PasswordRef = "env:PW"
	cfg.Gateway.HMACKeyRef = "env:KEY"
	if _, err := NewGatewayClient(cfg, fakeSecrets{"env:PW": "pw"}); err == nil {
		t.Error("missing hmac key should fail")
	}

	client, err = NewGatewayClient(cfg, fakeSecrets{"env:PW": "pw", "env:KEY": "a2V5"})
	if err != nil || client == nil {
		t.Fatalf("got (%v, %v), want a client", client, err)
	}
}

func TestNewRunner_ArchiveOnlyWithoutGateway(t *testing.T) {
	cfg := testutil.NewTestConfig(t)
	cfg.Gateway.BaseURL = "https://portal.example.com"
	st := testutil.NewTestStore(t)

	// Secrets cannot be resolved: archive imports must still work.
	r := NewRunner(cfg, st, nil, fakeSecrets{})
	if !r.RunArchive(context.Background(), testutil.SampleZip(t, t.TempDir()), testutil.SampleDate) {
		t.Fatal("archive import should succeed without a gateway")
	}
	if r.Run(context.Background(), testutil.SampleDate) {
		t.Error("gateway import should fail without a gateway")
	}
}

func TestImport_Archive(t *testing.T) {
	cfg := testutil.NewTestConfig(t)
	zip := testutil.SampleZip(t, t.TempDir())

	if !Import(context.Background(), cfg, testutil.SampleDate, zip) {
		t.Fatal("Import returned false")
	}

	st, err := store.Open(cfg.Server.DBPath())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()
	runs, err := st.ListRuns(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != store.RunSucceeded {
		t.Errorf("runs: got %+v", runs)
	}
}

func TestRunPruner_StopsOnCancel(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		runPruner(ctx, st, 30, time.Millisecond)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner did not stop")
	}
}

func TestRenderUnits(t *testing.T) {
	service, timer, err := renderUnits(unitData{
		Unit:        unitName,
		ProgramPath: "/usr/local/bin/storepulse",
		ConfigPath:  "/etc/storepulse.toml",
		DataDir:     "/var/lib/storepulse",
		OnCalendar:  "*-*-* 06:00:00",
	})
	if err != nil {
		t.Fatalf("renderUnits: %v", err)
	}
	for _, want := range []string{
		"Type=oneshot",
		"ExecStart=/usr/local/bin/storepulse --config /etc/storepulse.toml import",
		"WorkingDirectory=/var/lib/storepulse",
	} {
		if !strings.Contains(string(service), want) {
			t.Errorf("service unit missing %q:\n%s", want, service)
		}
	}
	for _, want := range []string{
		"OnCalendar=*-*-* 06:00:00",
		"Persistent=true",
		"Unit=storepulse-import.service",
	} {
		if !strings.Contains(string(timer), want) {
			t.Errorf("timer unit missing %q:\n%s", want, timer)
		}
	}

	service, _, _ = renderUnits(unitData{Unit: unitName, ProgramPath: "/bin/sp", DataDir: "/d"})
	if !strings.Contains(string(service), "ExecStart=/bin/sp import\n") {
		t.Errorf("without a config path ExecStart should be bare:\n%s", service)
	}
}

func TestWriteUnits(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "systemd", "user")
	svc, tmr, err := writeUnits(dir, unitData{Unit: unitName, ProgramPath: "/bin/sp", DataDir: "/d", OnCalendar: "daily"})
	if err != nil {
		t.Fatalf("writeUnits: %v", err)
	}
	for _, p := range []string{svc, tmr} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("unit not written: %v", err)
		}
	}
}

func TestUserUnitDir_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	dir, err := userUnitDir()
	if err != nil {
		t.Fatalf("userUnitDir: %v", err)
	}
	if dir != "/tmp/xdg/systemd/user" {
		t.Errorf("got %q", dir)
	}
}
