package interfaces

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Gateway.Load when nothing was saved under the key.
var ErrKeyNotFound = errors.New("key not found")

// Storage keys used by the layer tree.
const (
	KeyZOrder  = "zorder"
	KeyFolders = "folders"
	KeyLayers  = "layers"
)

// Gateway is the key/value store behind z-order, folder and layer persistence.
// Writes are synchronous; retries, if any, are the store's business.
type Gateway interface {
	// Save stores value under key, replacing any previous value.
	Save(ctx context.Context, key string, value []byte) error

	// Load returns the value stored under key or ErrKeyNotFound.
	Load(ctx context.Context, key string) ([]byte, error)

	// Close releases the store.
	Close() error
}

// Refresher is notified when the tree changed and views should re-render.
type Refresher interface {
	Refresh(ctx context.Context)
}

// RefreshFunc adapts a function to Refresher.
type RefreshFunc func(ctx context.Context)

func (f RefreshFunc) Refresh(ctx context.Context) { f(ctx) }
