package core

import (
	"context"
	"time"
)

type (
	// Asset is an uploaded file a user can place on the canvas.
	Asset struct {
		ID        string    `json:"id"`
		UserID    string    `json:"userId"`
		URL       string    `json:"url"`
		Name      string    `json:"name,omitempty"`
		Size      int64     `json:"size,omitempty"`
		Type      string    `json:"type,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// NewAsset describes an asset to create.
	NewAsset struct {
		UserID string `json:"userId"`
		URL    string `json:"url"`
		Name   string `json:"name,omitempty"`
		Size   int64  `json:"size,omitempty"`
		Type   string `json:"type,omitempty"`
	}

	// AssetStore persists uploaded assets. The editor only consumes Asset.URL.
	AssetStore interface {
		// ListAssets returns a user's assets, newest first.
		ListAssets(ctx context.Context, userID string) ([]*Asset, error)
		CreateAsset(ctx context.Context, asset NewAsset) (*Asset, error)
		DeleteAsset(ctx context.Context, id string) error
	}
)

// KeyValueStore is the local durable storage the editor mirrors its history
// into.
type KeyValueStore interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Put writes all entries together.
	Put(ctx context.Context, entries map[string]string) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}
