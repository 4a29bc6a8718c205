package stores

import (
	"context"
	"path/filepath"
	"testing"

	"nocap-editor/config"
)

func TestGetStore(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		cfg  config.Storage
	}{
		{"memory", config.Storage{Type: "memory"}},
		{"default", config.Storage{}},
		{"filesystem", config.Storage{Type: "filesystem", LocalPath: filepath.Join(dir, "fs")}},
		{"sqlite", config.Storage{Type: "sqlite", DataSourceName: filepath.Join(dir, "editor.db")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := GetStore(context.Background(), tt.cfg)
			if err != nil {
				t.Fatalf("GetStore() failed: %v", err)
			}
			defer Close(store)

			p, err := store.CreateProject(context.Background(), "user-1", "Poster")
			if err != nil {
				t.Fatalf("CreateProject() failed: %v", err)
			}
			if _, err := store.FetchProject(context.Background(), p.ID); err != nil {
				t.Errorf("FetchProject() failed: %v", err)
			}
		})
	}
}

func TestGetStore_Invalid(t *testing.T) {
	if _, err := GetStore(context.Background(), config.Storage{Type: "ftp"}); err == nil {
		t.Error("GetStore() accepted an unknown type")
	}
	if _, err := GetStore(context.Background(), config.Storage{Type: "s3"}); err == nil {
		t.Error("GetStore() accepted s3 without a bucket")
	}
}

func TestGetLocalStore(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		cfg  config.Storage
	}{
		{"memory", config.Storage{LocalStoreType: "memory"}},
		{"filesystem", config.Storage{LocalStoreType: "filesystem", LocalStorePath: filepath.Join(dir, "kv")}},
		{"sqlite", config.Storage{LocalStoreType: "sqlite", LocalStorePath: filepath.Join(dir, "local.db")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv, err := GetLocalStore(tt.cfg)
			if err != nil {
				t.Fatalf("GetLocalStore() failed: %v", err)
			}
			defer Close(kv)

			ctx := context.Background()
			if err := kv.Put(ctx, map[string]string{"history-index": "0"}); err != nil {
				t.Fatalf("Put() failed: %v", err)
			}
			v, ok, err := kv.Get(ctx, "history-index")
			if err != nil || !ok || v != "0" {
				t.Errorf("Get() = %q, %v, %v; want 0, true, nil", v, ok, err)
			}
		})
	}

	if _, err := GetLocalStore(config.Storage{LocalStoreType: "redis"}); err == nil {
		t.Error("GetLocalStore() accepted an unknown type")
	}
}
