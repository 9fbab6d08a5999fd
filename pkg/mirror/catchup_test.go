package mirror

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatchUp(env *testEnv, opts CatchUpOptions) *CatchUp {
	return NewCatchUp(env.engine, env.store, env.source, zerolog.Nop(), opts)
}

func TestCatchUpIsDeterministic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const n SourceID = 40
	require.NoError(t, env.store.AdvanceCheckpoint(ctx, n))

	for id := n + 1; id <= n+5; id++ {
		evt := textMessage(id, id%2 == 0, "message")
		if id == n+3 {
			evt.ReplyToID = n + 1
		}
		env.source.history = append(env.source.history, evt)
	}

	summary, err := newTestCatchUp(env, CatchUpOptions{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Attempted)
	assert.Equal(t, 5, summary.Succeeded)
	assert.Zero(t, summary.Skipped)

	stats, err := env.store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalMessages)
	assert.Equal(t, env.record(t, n+1).DestID, env.record(t, n+3).ReplyToDest)

	checkpoint, err := env.store.Checkpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, n+5, checkpoint)
}

func TestCatchUpSkipsExistingMessages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.AdvanceCheckpoint(ctx, 1))
	env.source.history = []*MessageEvent{
		textMessage(2, true, "two"),
		textMessage(3, false, "three"),
	}
	// Mapped, but the checkpoint write was lost.
	require.NoError(t, env.store.Put(ctx, &MessageRecord{SourceID: 2, DestID: 500, Sender: OriginSelf, Content: "two"}))

	summary, err := newTestCatchUp(env, CatchUpOptions{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Attempted)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Skipped)
	assert.Len(t, env.group.Sent(), 1)

	checkpoint, err := env.store.Checkpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceID(3), checkpoint)
}

func TestCatchUpWithoutCheckpointStartsFresh(t *testing.T) {
	env := newTestEnv(t)
	env.source.history = []*MessageEvent{textMessage(1, true, "old")}

	summary, err := newTestCatchUp(env, CatchUpOptions{}).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Attempted)
	assert.Empty(t, env.group.Sent())
}

func TestCatchUpInitialFullSync(t *testing.T) {
	env := newTestEnv(t)
	env.source.history = []*MessageEvent{textMessage(1, true, "old"), textMessage(2, false, "older reply")}

	summary, err := newTestCatchUp(env, CatchUpOptions{InitialFullSync: true}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Succeeded)
}

func TestCatchUpResolvesPendingReplies(t *testing.T) {
	env := newTestEnv(t)
	env.engine.opts.BackfillReplies = false
	ctx := context.Background()

	reply := textMessage(6, true, "reply")
	reply.ReplyToID = 5
	_, err := env.engine.HandleNewMessage(ctx, reply)
	require.NoError(t, err)
	_, err = env.engine.HandleNewMessage(ctx, textMessage(5, false, "target"))
	require.NoError(t, err)
	require.Zero(t, env.record(t, 6).ReplyToDest)

	summary, err := newTestCatchUp(env, CatchUpOptions{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.RepliesResolved)
	assert.Equal(t, env.record(t, 5).DestID, env.record(t, 6).ReplyToDest)
}

func TestCatchUpRecoversViewOnceMedia(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.AdvanceCheckpoint(ctx, 100))

	viewOnce := textMessage(90, false, "")
	viewOnce.IsSelfDestructing = true
	viewOnce.Media = &MediaRef{Kind: MediaVideo, Downloadable: true}
	env.source.recent = []*MessageEvent{textMessage(95, true, "not tracked"), viewOnce}

	summary, err := newTestCatchUp(env, CatchUpOptions{RecoverViewOnce: true}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ViewOnceRecovered)

	rec := env.record(t, 90)
	assert.True(t, rec.WasSelfDestructing)
	assert.FileExists(t, rec.MediaPath)
	assert.Equal(t, 1, env.source.downloads)
}

func TestCatchUpDetectsOfflineEdits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.engine.HandleNewMessage(ctx, textMessage(30, true, "typo"))
	require.NoError(t, err)
	_, err = env.engine.HandleNewMessage(ctx, textMessage(31, false, "unchanged"))
	require.NoError(t, err)

	env.source.recent = []*MessageEvent{textMessage(31, false, "unchanged"), textMessage(30, true, "fixed")}
	summary, err := newTestCatchUp(env, CatchUpOptions{DetectOfflineEdits: true}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.EditsDetected)
	assert.Equal(t, "fixed", env.record(t, 30).Content)
	assert.False(t, env.record(t, 31).IsEdited)
}

func TestCatchUpRetriesFailedItemOnNextRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.AdvanceCheckpoint(ctx, 10))
	env.source.history = []*MessageEvent{
		textMessage(11, true, "eleven"),
		textMessage(12, false, "twelve"),
		textMessage(13, true, "thirteen"),
	}
	for range 3 {
		env.peer.failures = append(env.peer.failures, &TransportError{Op: "send", Err: errors.New("timeout")})
	}

	summary, err := newTestCatchUp(env, CatchUpOptions{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	checkpoint, err := env.store.Checkpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceID(11), checkpoint)

	summary, err = newTestCatchUp(env, CatchUpOptions{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Attempted)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, "twelve", env.record(t, 12).Content)
	assert.Len(t, env.group.Sent(), 3)

	checkpoint, err = env.store.Checkpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceID(13), checkpoint)
}

func TestCatchUpReplaysHeldMessageWithoutCheckpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.HoldCheckpoint(ctx, 5))
	env.source.history = []*MessageEvent{textMessage(5, false, "first ever")}

	summary, err := newTestCatchUp(env, CatchUpOptions{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, "first ever", env.record(t, 5).Content)
}
