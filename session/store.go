package session

import (
	"context"

	"github.com/hupe1980/agentloop/core"
)

// Store persists threads. Implementations must be safe for concurrent use and
// must not share mutable state with callers: Load returns a copy and Save
// stores a copy.
type Store interface {
	// Load returns the thread with id or an error wrapping core.ErrThreadNotFound.
	Load(ctx context.Context, id string) (*core.Thread, error)
	// Save creates or replaces the thread.
	Save(ctx context.Context, thread *core.Thread) error
}
