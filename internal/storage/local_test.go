package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStorePut(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	defer store.Close()

	key := "shop.tld/widget/price-history.json"
	if err := store.Put(context.Background(), key, []byte(`{"p":10}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "shop.tld", "widget", "price-history.json"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != `{"p":10}` {
		t.Errorf("body = %s", data)
	}

	// No temp file may survive a completed Put.
	entries, err := os.ReadDir(filepath.Join(dir, "shop.tld", "widget"))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestLocalStorePutOverwrites(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	ctx := context.Background()
	if err := store.Put(ctx, "k.json", []byte("old")); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if err := store.Put(ctx, "k.json", []byte("new")); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	data, err := os.ReadFile(store.URI("k.json")[len("file://"):])
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "new" {
		t.Errorf("body = %s, want last write", data)
	}
}

func TestLocalStoreProbe(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	if err := store.Probe(context.Background()); err != nil {
		t.Errorf("Probe: %v", err)
	}
}

func TestLocalStoreURI(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	uri := store.URI("a/b.json")
	if !strings.HasPrefix(uri, "file://") {
		t.Errorf("URI = %q, want file:// scheme", uri)
	}
	if !strings.HasSuffix(uri, filepath.Join("a", "b.json")) {
		t.Errorf("URI = %q, want key path", uri)
	}
}

func TestNewObjectStoreLocal(t *testing.T) {
	store, err := NewObjectStore(Config{Backend: "local", LocalDir: t.TempDir()}, "")
	if err != nil {
		t.Fatalf("NewObjectStore: %v", err)
	}
	if _, ok := store.(*LocalStore); !ok {
		t.Errorf("store type = %T, want *LocalStore", store)
	}
}

func TestNewObjectStoreUnknownBackend(t *testing.T) {
	if _, err := NewObjectStore(Config{Backend: "tape"}, "bucket"); err == nil {
		t.Error("unknown backend accepted")
	}
}
