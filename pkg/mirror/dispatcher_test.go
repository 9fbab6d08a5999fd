package mirror

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRequiresBothIdentities(t *testing.T) {
	_, err := NewDispatcher(&fakeIdentity{name: "Me"}, nil)
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Len(t, ce.Problems, 1)
}

func TestDispatcherSelectsIdentityByOrigin(t *testing.T) {
	group := &fakeGroup{}
	self := &fakeIdentity{name: "Me", group: group}
	peer := &fakeIdentity{name: "Her", group: group}
	d, err := NewDispatcher(self, peer)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = d.SendText(ctx, "a", OriginSelf, 0)
	require.NoError(t, err)
	_, err = d.SendFile(ctx, "/tmp/x", OriginPeer, "b", 7)
	require.NoError(t, err)
	_, err = d.SendMediaReference(ctx, &MediaRef{Handle: "h"}, OriginSelf, "c", 0)
	require.NoError(t, err)

	sent := group.Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, []string{"Me", "Her", "Me"}, []string{sent[0].Identity, sent[1].Identity, sent[2].Identity})
	assert.Equal(t, DestID(7), sent[1].ReplyTo)
}

func TestDispatcherRejectsUnknownOrigin(t *testing.T) {
	group := &fakeGroup{}
	d, err := NewDispatcher(&fakeIdentity{name: "Me", group: group}, &fakeIdentity{name: "Her", group: group})
	require.NoError(t, err)

	for _, origin := range []Origin{OriginSystem, "mallory"} {
		_, err = d.SendText(context.Background(), "x", origin, 0)
		assert.ErrorIs(t, err, ErrUnknownOrigin)
		assert.True(t, IsPermanent(err))
	}
	assert.Empty(t, group.Sent())
}
