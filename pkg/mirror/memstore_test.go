package mirror

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreMarkDeletedReportsExistence(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, &MessageRecord{SourceID: 1, DestID: 101, Sender: OriginPeer}))

	for range 2 {
		marked, err := store.MarkDeleted(ctx, 1)
		require.NoError(t, err)
		assert.True(t, marked)
	}
	marked, err := store.MarkDeleted(ctx, 2)
	require.NoError(t, err)
	assert.False(t, marked)
}

func TestMemoryStoreCheckpointHolds(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.AdvanceCheckpoint(ctx, 10))
	require.NoError(t, store.HoldCheckpoint(ctx, 9))
	require.NoError(t, store.HoldCheckpoint(ctx, 15))
	require.NoError(t, store.HoldCheckpoint(ctx, 12))

	holds, err := store.CheckpointHolds(ctx)
	require.NoError(t, err)
	assert.Equal(t, []SourceID{12, 15}, holds)

	require.NoError(t, store.AdvanceCheckpoint(ctx, 20))
	checkpoint, err := store.Checkpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceID(11), checkpoint)

	require.NoError(t, store.Put(ctx, &MessageRecord{SourceID: 12, DestID: 112, Sender: OriginSelf}))
	released, err := store.ReleaseCheckpointHold(ctx, 15)
	require.NoError(t, err)
	assert.True(t, released)
	require.NoError(t, store.AdvanceCheckpoint(ctx, 20))
	checkpoint, err = store.Checkpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceID(20), checkpoint)
}
