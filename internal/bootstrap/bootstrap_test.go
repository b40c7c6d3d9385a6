package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/JonMunkholm/dialcodes/internal/config"
	"github.com/JonMunkholm/dialcodes/internal/core"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Store:  config.StoreConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "codes.db"), Key: "qr-code-orders"},
		Code:   config.CodeConfig{Size: 200, Margin: 2, DefaultMode: "link-redirect"},
		Render: config.RenderConfig{MaxConcurrent: 2, MaxWaitTime: time.Second},
		UI:     config.UIConfig{PageSize: 5},
	}
}

func TestOpen_PersistsAcrossRestart(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	app, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if app.Service.DefaultMode() != core.ModeLinkRedirect {
		t.Errorf("DefaultMode() = %q", app.Service.DefaultMode())
	}
	if app.Service.PageSize() != 5 {
		t.Errorf("PageSize() = %d", app.Service.PageSize())
	}
	if _, err := app.Service.Import(ctx, "A1\t138\nA2\t139"); err != nil {
		t.Fatal(err)
	}
	if err := app.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()
	if n := reopened.Service.Store().Len(); n != 2 {
		t.Errorf("records after restart = %d, want 2", n)
	}
}

func TestOpen_InvalidMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Code.DefaultMode = "sms"

	if _, err := Open(context.Background(), cfg); err == nil {
		t.Fatal("Open() accepted an unknown mode")
	}
}

func TestStoreInfo(t *testing.T) {
	cfg := testConfig(t)
	if got := StoreInfo(cfg); got != "sqlite "+cfg.Store.DSN {
		t.Errorf("StoreInfo() = %q", got)
	}
	cfg.Store = config.StoreConfig{Driver: "postgres", DSN: "postgres://u:secret@h/db"}
	if got := StoreInfo(cfg); got != "postgres" {
		t.Errorf("StoreInfo() = %q, leaks DSN", got)
	}
}
