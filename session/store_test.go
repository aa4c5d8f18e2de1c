package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertion)
var (
	_ Store = (*InMemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

func sampleThread(t *testing.T, id string) *core.Thread {
	t.Helper()
	return testutil.NewThreadBuilder(t, id).
		ToolRound("What's the weather in Paris?", "weather in Paris", "22C, sunny", "It's 22C and sunny in Paris.").
		Build()
}

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "threads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewInMemoryStore() },
		"sqlite": func(t *testing.T) Store { return newSQLiteStore(t) },
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			_, err := s.Load(ctx, "missing")
			assert.ErrorIs(t, err, core.ErrThreadNotFound)

			thread := sampleThread(t, "t1")
			require.NoError(t, s.Save(ctx, thread))

			got, err := s.Load(ctx, "t1")
			require.NoError(t, err)
			assert.Equal(t, "t1", got.ID)
			assert.Equal(t, thread.Conversation.Messages(), got.Conversation.Messages())
			assert.WithinDuration(t, thread.CreatedAt, got.CreatedAt, time.Millisecond)

			// Mutating the loaded copy does not affect the store.
			require.NoError(t, got.Conversation.Append(core.NewUserMessage("and tomorrow?")))
			again, err := s.Load(ctx, "t1")
			require.NoError(t, err)
			assert.Equal(t, 4, again.Conversation.Len())

			// Save replaces.
			require.NoError(t, s.Save(ctx, got))
			again, err = s.Load(ctx, "t1")
			require.NoError(t, err)
			assert.Equal(t, 5, again.Conversation.Len())
		})
	}
}

func TestSQLiteStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threads.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, sampleThread(t, "persisted")))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx, "persisted")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Conversation.Len())
	assert.Empty(t, got.Conversation.Pending())
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	_, err := NewSQLiteStore("")
	assert.Error(t, err)
}

func TestInMemoryStore_IDs(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, core.NewThread("b")))
	require.NoError(t, s.Save(ctx, core.NewThread("a")))
	assert.Equal(t, []string{"a", "b"}, s.IDs())
}
