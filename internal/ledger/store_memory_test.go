package ledger

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "trustbridge/pkg/domain"
	"trustbridge/pkg/testutil"
)

func appendN(t *testing.T, store *InMemoryStore, actor string, n int) []*Entry {
	t.Helper()
	var out []*Entry
	for i := 0; i < n; i++ {
		entry := &Entry{ID: id.NewLedgerEntryID(), Actor: actor, ActionType: fmt.Sprintf("TYPE_%d", i)}
		require.NoError(t, store.Append(context.Background(), entry))
		out = append(out, entry)
	}
	return out
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("list returns newest first", func(t *testing.T) {
		store := NewInMemoryStore()
		appended := appendN(t, store, "alice", 3)

		entries, err := store.List(ctx, 10)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, appended[2].ID, entries[0].ID)
		assert.Equal(t, appended[0].ID, entries[2].ID)
	})

	t.Run("limit caps the page", func(t *testing.T) {
		store := NewInMemoryStore()
		appended := appendN(t, store, "alice", 5)

		entries, err := store.List(ctx, 2)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, appended[4].ID, entries[0].ID)
	})

	t.Run("list by actor filters", func(t *testing.T) {
		store := NewInMemoryStore()
		appendN(t, store, "alice", 2)
		bob := appendN(t, store, "bob", 1)

		entries, err := store.ListByActor(ctx, "bob", 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, bob[0].ID, entries[0].ID)
	})

	t.Run("returned entries are copies", func(t *testing.T) {
		store := NewInMemoryStore()
		appendN(t, store, "alice", 1)

		entries, err := store.List(ctx, 1)
		require.NoError(t, err)
		entries[0].ActionType = "TAMPERED"

		again, err := store.List(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "TYPE_0", again[0].ActionType)
	})

	t.Run("concurrent appends are all kept", func(t *testing.T) {
		store := NewInMemoryStore()
		result := testutil.RunConcurrent(50, func(idx int) error {
			return store.Append(ctx, &Entry{ID: id.NewLedgerEntryID(), Actor: "alice", ActionType: "X"})
		})
		assert.Equal(t, int32(50), result.Successes)

		entries, err := store.List(ctx, MaxListLimit)
		require.NoError(t, err)
		assert.Len(t, entries, 50)
	})
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultListLimit, ClampLimit(0))
	assert.Equal(t, DefaultListLimit, ClampLimit(-3))
	assert.Equal(t, 7, ClampLimit(7))
	assert.Equal(t, MaxListLimit, ClampLimit(MaxListLimit+1))
}
