package providers

import (
	"context"
	"errors"
	"time"
)

// ErrCursorNotFound is returned by Load for unknown or expired cursors
var ErrCursorNotFound = errors.New("cursor not found")

// CursorStore keeps scroll session state shared by all replicas
type CursorStore interface {
	// Save stores state under cursor for ttl
	Save(ctx context.Context, cursor string, state []byte, ttl time.Duration) error

	// Load returns the state and renews its ttl
	Load(ctx context.Context, cursor string, ttl time.Duration) ([]byte, error)

	// Delete removes the cursor
	Delete(ctx context.Context, cursor string) error
}
