package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/dialcodes/internal/config"
	"github.com/JonMunkholm/dialcodes/internal/core"
)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, found, err := s.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("Get(missing) = found %v, err %v; want not found", found, err)
	}

	if err := s.Set(ctx, "k", []byte(`[1]`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set(ctx, "k", []byte(`[1,2]`)); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}

	v, found, err := s.Get(ctx, "k")
	if err != nil || !found {
		t.Fatalf("Get(k) = found %v, err %v", found, err)
	}
	if string(v) != `[1,2]` {
		t.Errorf("Get(k) = %q, want [1,2]", v)
	}
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemory_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	buf := []byte("abc")
	if err := m.Set(ctx, "k", buf); err != nil {
		t.Fatal(err)
	}
	buf[0] = 'x'

	v, _, _ := m.Get(ctx, "k")
	if string(v) != "abc" {
		t.Errorf("stored value changed through caller's slice: %q", v)
	}
}

func TestSQLite(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer s.Close()

	exerciseStore(t, s)
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "store.db")

	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	v, found, err := s.Get(ctx, "k")
	if err != nil || !found || string(v) != "v" {
		t.Errorf("Get(k) after reopen = %q, %v, %v", v, found, err)
	}
}

func TestSQLite_RecordStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.db")

	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	rs := core.NewRecordStore(s, core.DefaultStoreKey)
	if err := rs.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := rs.Append(ctx, []core.Entry{{OrderID: "A1", Phone: "138"}}); err != nil {
		t.Fatal(err)
	}

	reloaded := core.NewRecordStore(s, core.DefaultStoreKey)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if got := reloaded.Snapshot(); len(got) != 1 || got[0].OrderID != "A1" {
		t.Errorf("reloaded = %+v, want one record A1", got)
	}
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	s, err := OpenPostgres(context.Background(), config.StoreConfig{DSN: dsn, MaxConns: 2})
	if err != nil {
		t.Fatalf("OpenPostgres() error = %v", err)
	}
	defer s.Close()

	exerciseStore(t, s)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.StoreConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("Open(memory) error = %v", err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Errorf("Open(memory) = %T, want *Memory", s)
	}

	s, err = Open(ctx, config.StoreConfig{Driver: "SQLite", DSN: filepath.Join(t.TempDir(), "x.db")})
	if err != nil {
		t.Fatalf("Open(sqlite) error = %v", err)
	}
	s.Close()

	if _, err := Open(ctx, config.StoreConfig{Driver: "redis"}); err == nil {
		t.Error("Open(redis) should fail")
	}
}
