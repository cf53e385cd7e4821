package cli

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

var discard = slog.New(slog.NewJSONHandler(io.Discard, nil))

func TestLoadFallsBackToDefaults(t *testing.T) {
	opts := &options{configPath: filepath.Join(t.TempDir(), "missing.yaml"), port: 9090, storage: "MEMORY"}

	cfg, err := opts.load(discard)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port override, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Driver != "memory" {
		t.Fatalf("expected memory driver, got %q", cfg.Storage.Driver)
	}
}

func TestLoadRejectsBadOverride(t *testing.T) {
	opts := &options{configPath: filepath.Join(t.TempDir(), "missing.yaml"), storage: "sqlite"}
	if _, err := opts.load(discard); err == nil {
		t.Fatal("expected unknown storage driver to fail validation")
	}
}

func TestLoadReportsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	opts := &options{configPath: path}
	if _, err := opts.load(discard); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFlagsReadEnvironment(t *testing.T) {
	t.Setenv("POVIA_PORT", "7070")
	t.Setenv("POVIA_STORAGE", "memory")

	root := newRootCmd()
	serve, _, err := root.Find([]string{"serve"})
	if err != nil {
		t.Fatalf("find serve: %v", err)
	}
	if err := serve.ParseFlags(nil); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if err := root.PersistentPreRunE(serve, nil); err != nil {
		t.Fatalf("pre-run: %v", err)
	}

	port, err := serve.Flags().GetInt("port")
	if err != nil || port != 7070 {
		t.Fatalf("expected port 7070 from env, got %d (%v)", port, err)
	}
	storage, err := serve.Flags().GetString("storage")
	if err != nil || storage != "memory" {
		t.Fatalf("expected storage from env, got %q (%v)", storage, err)
	}
}
