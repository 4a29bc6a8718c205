package stores

import (
	"context"
	"fmt"
	"io"

	"nocap-editor/config"
	"nocap-editor/core"
	"nocap-editor/stores/aws"
	"nocap-editor/stores/filesystem"
	"nocap-editor/stores/memory"
	"nocap-editor/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// Store is a union interface that includes all store types.
type Store interface {
	core.ProjectStore
	core.AssetStore
}

// GetStore opens the project and asset backend selected by cfg.Type.
func GetStore(ctx context.Context, cfg config.Storage) (Store, error) {
	var (
		store Store
		err   error
	)
	storageField := logrus.Fields{"storage_type": cfg.Type}

	switch cfg.Type {
	case "filesystem":
		storageField["base_path"] = cfg.LocalPath
		store, err = filesystem.NewStore(cfg.LocalPath)
	case "sqlite":
		storageField["data_source_name"] = cfg.DataSourceName
		store, err = sqlite.NewStore(cfg.DataSourceName)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET_NAME must be set for s3 storage")
		}
		storageField["bucket_name"] = cfg.S3Bucket
		store, err = aws.NewStore(ctx, cfg.S3Bucket)
	case "memory", "":
		store = memory.NewStore()
		storageField["storage_type"] = "in-memory"
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store, nil
}

// GetLocalStore opens the key-value store editing sessions mirror their
// history into.
func GetLocalStore(cfg config.Storage) (core.KeyValueStore, error) {
	field := logrus.Fields{"local_store_type": cfg.LocalStoreType}
	var (
		kv  core.KeyValueStore
		err error
	)
	switch cfg.LocalStoreType {
	case "filesystem":
		field["path"] = cfg.LocalStorePath
		kv, err = filesystem.NewKeyValueStore(cfg.LocalStorePath)
	case "sqlite":
		field["path"] = cfg.LocalStorePath
		kv, err = sqlite.NewKeyValueStore(cfg.LocalStorePath)
	case "memory", "":
		kv = memory.NewKeyValueStore()
	default:
		return nil, fmt.Errorf("unknown local store type %q", cfg.LocalStoreType)
	}
	if err != nil {
		return nil, err
	}
	logrus.WithFields(field).Debug("Use local store")
	return kv, nil
}

// Close releases v if it holds resources.
func Close(v any) {
	if c, ok := v.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close store")
		}
	}
}
