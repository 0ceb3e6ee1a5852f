package tokenstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/transitwatch/transitwatch/pkg/config"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	if _, ok := store.Get(); ok {
		t.Error("Expected empty store")
	}

	if err := store.Set("token-1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	token, ok := store.Get()
	if !ok || token != "token-1" {
		t.Errorf("Expected token-1, got %q (present=%v)", token, ok)
	}

	// Whole-value replacement
	if err := store.Set("token-2"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	token, _ = store.Get()
	if token != "token-2" {
		t.Errorf("Expected token-2, got %q", token)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok := store.Get(); ok {
		t.Error("Expected empty store after Clear")
	}

	// Clear is idempotent
	if err := store.Clear(); err != nil {
		t.Errorf("Second Clear failed: %v", err)
	}
}

func TestFileStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if _, ok := store.Get(); ok {
		t.Error("Expected empty store for fresh file")
	}

	if err := store.Set("persisted-token"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Token file not written: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected 0600 permissions on token file, got %v", info.Mode().Perm())
	}

	// A second instance sees the token, like a page reload
	reloaded, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore reload failed: %v", err)
	}
	token, ok := reloaded.Get()
	if !ok || token != "persisted-token" {
		t.Errorf("Expected persisted-token after reload, got %q (present=%v)", token, ok)
	}
}

func TestFileStore_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := store.Set("short-lived"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected token file to be removed")
	}
	if _, ok := store.Get(); ok {
		t.Error("Expected empty store after Clear")
	}

	// Clearing again must not fail
	if err := store.Clear(); err != nil {
		t.Errorf("Second Clear failed: %v", err)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte("{broken"), 0600); err != nil {
		t.Fatalf("Failed to write corrupt file: %v", err)
	}

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed on corrupt file: %v", err)
	}
	if _, ok := store.Get(); ok {
		t.Error("Expected corrupt file to be treated as no token")
	}
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		name        string
		storageType string
		wantErr     bool
	}{
		{name: "memory", storageType: "memory", wantErr: false},
		{name: "file", storageType: "file", wantErr: false},
		{name: "default is file", storageType: "", wantErr: false},
		{name: "unknown", storageType: "sqlite", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.StorageConfig{Type: tt.storageType}
			store, err := NewStore(cfg, filepath.Join(t.TempDir(), "token.json"))

			if tt.wantErr {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewStore failed: %v", err)
			}
			if store == nil {
				t.Fatal("NewStore returned nil store")
			}
		})
	}
}
