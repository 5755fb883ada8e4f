package repositories

import (
	"context"
	"time"
)

// SessionStore is the persisted key-value snapshot layer.
type SessionStore interface {
	// GetItem decodes the value stored under key into dst. It returns
	// ErrItemNotFound when nothing is stored.
	GetItem(ctx context.Context, key string, dst any) error
	SetItem(ctx context.Context, key string, value any) error
	// SetItemDebounced coalesces writes to key made within delay into one.
	SetItemDebounced(key string, value any, delay time.Duration) error
	RemoveItem(ctx context.Context, key string) error
	FlushPendingWrites(ctx context.Context) error
}
