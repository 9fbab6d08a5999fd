package mirror

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorRunsCatchUpBeforeLiveEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, env.store.AdvanceCheckpoint(ctx, 1))
	env.source.history = []*MessageEvent{textMessage(2, true, "missed")}

	monitor := NewMonitor(env.engine, newTestCatchUp(env, CatchUpOptions{}), env.source, zerolog.Nop(), nil)
	done := make(chan error, 1)
	go func() { done <- monitor.Run(ctx) }()

	env.source.newMessages <- textMessage(3, false, "live")
	env.source.edits <- &MessageEdit{Message: textMessage(3, false, "live, edited")}
	env.source.deletes <- &MessageDelete{IDs: []SourceID{2}}
	// Unbuffered sends only prove receipt, so push one more event to
	// make sure the delete has been handled.
	env.source.newMessages <- textMessage(4, false, "barrier")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop")
	}

	sent := env.group.Sent()
	require.GreaterOrEqual(t, len(sent), 4)
	assert.Equal(t, "missed", sent[0].Body)
	assert.Equal(t, "live", sent[1].Body)
	assert.Equal(t, "✏️ Edited:\n\nlive, edited", sent[2].Body)
	assert.Equal(t, "🗑️ Deleted", sent[3].Body)
	assert.True(t, env.record(t, 2).IsDeleted)
	assert.True(t, env.record(t, 3).IsEdited)
}

func TestMonitorRunsOnce(t *testing.T) {
	env := newTestEnv(t)
	monitor := NewMonitor(env.engine, nil, env.source, zerolog.Nop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, monitor.Run(ctx))
	assert.ErrorIs(t, monitor.Run(ctx), ErrAlreadyRunning)
}

func TestMonitorStopsWhenSubscriptionsClose(t *testing.T) {
	env := newTestEnv(t)
	monitor := NewMonitor(env.engine, nil, env.source, zerolog.Nop(), nil)
	close(env.source.newMessages)
	close(env.source.edits)
	close(env.source.deletes)
	assert.NoError(t, monitor.Run(context.Background()))
}
