package company

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "trustbridge/pkg/domain"
	"trustbridge/pkg/platform/sentinel"
	"trustbridge/pkg/testutil"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	newCompany := func(name string) *Company {
		c, err := NewCompany(id.NewCompanyID(), name, "fintech", "", time.Now())
		require.NoError(t, err)
		return c
	}

	t.Run("find by id and name", func(t *testing.T) {
		store := NewInMemoryStore()
		c := newCompany("Acme Bank")
		require.NoError(t, store.Create(ctx, c))

		byID, err := store.FindByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "Acme Bank", byID.Name)

		byName, err := store.FindByName(ctx, " acme BANK ")
		require.NoError(t, err)
		assert.Equal(t, c.ID, byName.ID)
	})

	t.Run("missing", func(t *testing.T) {
		store := NewInMemoryStore()
		_, err := store.FindByID(ctx, id.NewCompanyID())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		_, err = store.FindByName(ctx, "nobody")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("list is sorted by name", func(t *testing.T) {
		store := NewInMemoryStore()
		for _, name := range []string{"zenith", "Acme", "MTN"} {
			require.NoError(t, store.Create(ctx, newCompany(name)))
		}
		list, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "Acme", list[0].Name)
		assert.Equal(t, "MTN", list[1].Name)
		assert.Equal(t, "zenith", list[2].Name)
	})

	t.Run("concurrent creates of one name admit exactly one", func(t *testing.T) {
		store := NewInMemoryStore()
		result := testutil.RunConcurrent(20, func(int) error {
			return store.Create(ctx, newCompany("Acme Bank"))
		})
		assert.Equal(t, int32(1), result.Successes)
		assert.Equal(t, int32(19), result.Conflicts)
	})
}
