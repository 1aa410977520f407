package database_test

import (
	"context"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/nais/agentdeploy/pkg/agentd/database"
	"github.com/nais/agentdeploy/pkg/agentd/deployment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemory()

	first := deployment.New("agent-1", "first", "0xowner", "0xwallet", "hash-1", math.LegacyNewDec(10))
	second := deployment.New("agent-2", "second", "0xother", "0xwallet2", "hash-2", math.LegacyNewDec(10))

	handle, err := store.Create(ctx, first)
	require.NoError(t, err)
	assert.NotEmpty(t, handle)
	_, err = store.Create(ctx, second)
	require.NoError(t, err)

	t.Run("ids are unique", func(t *testing.T) {
		_, err := store.Create(ctx, first)
		assert.ErrorIs(t, err, database.ErrDuplicate)
	})

	t.Run("fetch filters", func(t *testing.T) {
		all, err := store.Fetch(ctx, database.Filter{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "agent-1", all[0].ID)
		assert.Equal(t, handle, all[0].Handle)

		byID, err := store.Fetch(ctx, database.Filter{IDs: []string{"agent-2"}})
		require.NoError(t, err)
		require.Len(t, byID, 1)
		assert.Equal(t, "second", byID[0].Name)

		byOwner, err := store.Fetch(ctx, database.Filter{Owners: []string{"0xowner"}, IDs: []string{"agent-2"}})
		require.NoError(t, err)
		assert.Empty(t, byOwner)
	})

	t.Run("amend replaces content and keeps history", func(t *testing.T) {
		advanced, err := first.Advance(time.Now(), func(r *deployment.Record) {
			r.InstanceHash = "instance-1"
		})
		require.NoError(t, err)
		require.NoError(t, store.Amend(ctx, handle, advanced))

		records, err := store.Fetch(ctx, database.Filter{IDs: []string{"agent-1"}})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, deployment.StatusPendingSwap, records[0].Status)
		assert.Equal(t, "instance-1", records[0].InstanceHash)

		amendments := store.Amendments(handle)
		require.Len(t, amendments, 1)
		assert.Equal(t, deployment.StatusPendingSwap, amendments[0].Status)
		assert.Empty(t, amendments[0].Handle)
	})

	t.Run("fetched records are copies", func(t *testing.T) {
		records, err := store.Fetch(ctx, database.Filter{IDs: []string{"agent-1"}})
		require.NoError(t, err)
		records[0].Tags[0] = "mutated"

		again, err := store.Fetch(ctx, database.Filter{IDs: []string{"agent-1"}})
		require.NoError(t, err)
		assert.Equal(t, "agent-1", again[0].Tags[0])
	})

	t.Run("amend unknown handle", func(t *testing.T) {
		err := store.Amend(ctx, "missing", first)
		assert.ErrorIs(t, err, database.ErrNotFound)
		assert.Nil(t, store.Amendments("missing"))
	})
}
