package filesystem

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

type kvStore struct {
	dir string
	mu  sync.Mutex
}

// NewKeyValueStore stores each key as a file under dir.
func NewKeyValueStore(dir string) (*kvStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create kv directory: %w", err)
	}
	return &kvStore{dir: dir}, nil
}

func (s *kvStore) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+".val")
}

func (s *kvStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

// Put writes every entry to a temporary file first and renames them once all
// writes succeeded.
func (s *kvStore) Put(ctx context.Context, entries map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]string, len(entries))
	defer func() {
		for tmp := range staged {
			os.Remove(tmp)
		}
	}()
	for k, v := range entries {
		f, err := os.CreateTemp(s.dir, ".tmp-*")
		if err != nil {
			return err
		}
		staged[f.Name()] = s.path(k)
		_, werr := f.WriteString(v)
		cerr := f.Close()
		if werr != nil {
			return werr
		}
		if cerr != nil {
			return cerr
		}
	}
	for tmp, dst := range staged {
		if err := os.Rename(tmp, dst); err != nil {
			return err
		}
		delete(staged, tmp)
	}
	return nil
}

func (s *kvStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		if err := os.Remove(s.path(k)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
