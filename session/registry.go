package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/metrics"
)

// ErrLeaseReleased is returned when committing a lease that was already
// committed or released.
var ErrLeaseReleased = errors.New("lease already released")

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Logger  logging.Logger
	Metrics *metrics.Metrics
}

// Registry grants exclusive, per thread access to conversations held in a Store.
type Registry struct {
	store Store
	opts  RegistryOptions

	mu   sync.Mutex
	held map[string]struct{}
}

// NewRegistry creates a registry over store. A nil store uses an InMemoryStore.
func NewRegistry(store Store, optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if store == nil {
		store = NewInMemoryStore()
	}
	return &Registry{store: store, opts: opts, held: make(map[string]struct{})}
}

// Store returns the underlying store.
func (r *Registry) Store() Store { return r.store }

// Lease is exclusive access to one thread for the duration of a loop execution.
type Lease struct {
	// ThreadID is the resolved thread identifier.
	ThreadID string
	// Created reports whether the thread did not exist before Resolve.
	Created bool

	registry *Registry
	thread   *core.Thread
	conv     *core.Conversation
	once     sync.Once
}

// Conversation returns the lease's working copy of the conversation. Changes
// are only persisted by Registry.Commit.
func (l *Lease) Conversation() *core.Conversation { return l.conv }

// CreatedAt returns the creation time of the thread.
func (l *Lease) CreatedAt() time.Time { return l.thread.CreatedAt }

// Release gives up the lease without persisting anything. It is safe to call
// more than once and after Commit.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.registry.release(l.ThreadID)
	})
}

func (l *Lease) take() bool {
	taken := false
	l.once.Do(func() { taken = true })
	return taken
}

// Resolve leases the thread with id. An empty id creates a thread with a fresh
// identifier; an unknown id creates a thread with that identifier. Resolving a
// thread that is currently leased fails with an error wrapping core.ErrThreadBusy.
func (r *Registry) Resolve(ctx context.Context, id string) (*Lease, error) {
	if id == "" {
		id = core.NewID()
	}

	r.mu.Lock()
	if _, busy := r.held[id]; busy {
		r.mu.Unlock()
		r.opts.Metrics.RecordThreadBusy()
		r.opts.Logger.Warn("session.thread.busy", "thread_id", id)
		return nil, fmt.Errorf("%w: %s", core.ErrThreadBusy, id)
	}
	r.held[id] = struct{}{}
	r.mu.Unlock()

	created := false
	thread, err := r.store.Load(ctx, id)
	switch {
	case errors.Is(err, core.ErrThreadNotFound):
		thread = core.NewThread(id)
		created = true
		r.opts.Metrics.RecordThreadCreated()
		r.opts.Logger.Debug("session.thread.created", "thread_id", id)
	case err != nil:
		r.release(id)
		return nil, err
	}

	if thread.Conversation == nil {
		thread.Conversation = &core.Conversation{}
	}

	return &Lease{
		ThreadID: id,
		Created:  created,
		registry: r,
		thread:   thread,
		conv:     thread.Conversation.Clone(),
	}, nil
}

// Commit persists conv as the thread's conversation and releases the lease.
// A conversation with unanswered tool calls, or a cancelled ctx, is rejected
// and the lease is released without persisting.
func (r *Registry) Commit(ctx context.Context, lease *Lease, conv *core.Conversation) error {
	if lease.registry != r {
		return errors.New("lease belongs to a different registry")
	}
	if !lease.take() {
		return fmt.Errorf("%w: %s", ErrLeaseReleased, lease.ThreadID)
	}
	defer r.release(lease.ThreadID)

	if err := ctx.Err(); err != nil {
		return err
	}

	if conv == nil {
		conv = lease.conv
	}
	if pending := conv.Pending(); len(pending) > 0 {
		return fmt.Errorf("%w: %d unanswered tool calls", core.ErrInvalidConversation, len(pending))
	}

	thread := lease.thread.Clone()
	thread.Conversation = conv.Clone()
	thread.UpdatedAt = time.Now().UTC()

	if err := r.store.Save(ctx, thread); err != nil {
		return err
	}

	r.opts.Logger.Debug("session.thread.committed", "thread_id", thread.ID, "messages", thread.Conversation.Len())

	return nil
}

// Get returns a read-only snapshot of the stored thread. It does not take a lease.
func (r *Registry) Get(ctx context.Context, id string) (*core.Thread, error) {
	return r.store.Load(ctx, id)
}

// Busy reports whether the thread is currently leased.
func (r *Registry) Busy(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.held[id]
	return ok
}

func (r *Registry) release(id string) {
	r.mu.Lock()
	delete(r.held, id)
	r.mu.Unlock()
}
