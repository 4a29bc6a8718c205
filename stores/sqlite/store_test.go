package sqlite

import (
	"path/filepath"
	"testing"

	"nocap-editor/core"
	"nocap-editor/stores/storetest"
)

func newTestStore(t *testing.T) *sqliteStore {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "editor.db"))
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestProjectStore(t *testing.T) {
	storetest.ProjectStore(t, func(t *testing.T) core.ProjectStore { return newTestStore(t) })
}

func TestAssetStore(t *testing.T) {
	storetest.AssetStore(t, func(t *testing.T) core.AssetStore { return newTestStore(t) })
}

func TestKeyValueStore(t *testing.T) {
	kv, err := NewKeyValueStore(filepath.Join(t.TempDir(), "local.db"))
	if err != nil {
		t.Fatalf("NewKeyValueStore() failed: %v", err)
	}
	defer kv.Close()

	storetest.KeyValueStore(t, kv)
}

func TestNewStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "editor.db")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	p, err := store.CreateProject(t.Context(), "user-1", "Poster")
	if err != nil {
		t.Fatalf("CreateProject() failed: %v", err)
	}
	store.Close()

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.FetchProject(t.Context(), p.ID)
	if err != nil {
		t.Fatalf("FetchProject() after reopen failed: %v", err)
	}
	if got.Name != "Poster" {
		t.Errorf("FetchProject() name = %q, want Poster", got.Name)
	}
}
