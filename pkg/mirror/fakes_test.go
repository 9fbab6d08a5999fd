package mirror

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	Identity string
	Kind     string
	Body     string
	Path     string
	Handle   string
	ReplyTo  DestID
	DestID   DestID
}

// fakeGroup hands out destination ids shared by both identities.
type fakeGroup struct {
	lock   sync.Mutex
	nextID DestID
	sent   []sentMessage
}

func (g *fakeGroup) record(msg sentMessage) DestID {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.nextID++
	msg.DestID = g.nextID + 1000
	g.sent = append(g.sent, msg)
	return msg.DestID
}

func (g *fakeGroup) Sent() []sentMessage {
	g.lock.Lock()
	defer g.lock.Unlock()
	return append([]sentMessage(nil), g.sent...)
}

type fakeIdentity struct {
	name  string
	group *fakeGroup

	lock sync.Mutex
	// failures are returned, in order, before any send succeeds.
	failures []error
	calls    int
}

func (f *fakeIdentity) Name() string { return f.name }

func (f *fakeIdentity) fail() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls++
	if len(f.failures) == 0 {
		return nil
	}
	err := f.failures[0]
	f.failures = f.failures[1:]
	return err
}

func (f *fakeIdentity) SendText(_ context.Context, body string, replyTo DestID) (DestID, error) {
	if err := f.fail(); err != nil {
		return 0, err
	}
	return f.group.record(sentMessage{Identity: f.name, Kind: "text", Body: body, ReplyTo: replyTo}), nil
}

func (f *fakeIdentity) SendFile(_ context.Context, path, caption string, replyTo DestID) (DestID, error) {
	if err := f.fail(); err != nil {
		return 0, err
	}
	return f.group.record(sentMessage{Identity: f.name, Kind: "file", Body: caption, Path: path, ReplyTo: replyTo}), nil
}

func (f *fakeIdentity) SendMediaReference(_ context.Context, ref *MediaRef, caption string, replyTo DestID) (DestID, error) {
	if err := f.fail(); err != nil {
		return 0, err
	}
	return f.group.record(sentMessage{Identity: f.name, Kind: "reference", Body: caption, Handle: ref.Handle, ReplyTo: replyTo}), nil
}

type fakeSource struct {
	history []*MessageEvent
	recent  []*MessageEvent

	newMessages chan *MessageEvent
	edits       chan *MessageEdit
	deletes     chan *MessageDelete

	downloads int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		newMessages: make(chan *MessageEvent),
		edits:       make(chan *MessageEdit),
		deletes:     make(chan *MessageDelete),
	}
}

func (s *fakeSource) SubscribeNewMessages(func(*MessageEvent) bool) <-chan *MessageEvent {
	return s.newMessages
}

func (s *fakeSource) SubscribeEdits(func(*MessageEdit) bool) <-chan *MessageEdit {
	return s.edits
}

func (s *fakeSource) SubscribeDeletes(func(*MessageDelete) bool) <-chan *MessageDelete {
	return s.deletes
}

func (s *fakeSource) FetchHistory(_ context.Context, minID SourceID) iter.Seq2[*MessageEvent, error] {
	return func(yield func(*MessageEvent, error) bool) {
		for _, evt := range s.history {
			if evt.ID > minID && !yield(evt, nil) {
				return
			}
		}
	}
}

func (s *fakeSource) FetchRecent(_ context.Context, limit int) iter.Seq2[*MessageEvent, error] {
	return func(yield func(*MessageEvent, error) bool) {
		for i, evt := range s.recent {
			if i >= limit || !yield(evt, nil) {
				return
			}
		}
	}
}

func (s *fakeSource) DownloadAttachment(_ context.Context, msg *MessageEvent, destPath string) (string, error) {
	s.downloads++
	path := filepath.Join(destPath, fmt.Sprintf("%d.bin", msg.ID))
	return path, os.WriteFile(path, []byte("media"), 0600)
}

type testEnv struct {
	store  *MemoryStore
	source *fakeSource
	group  *fakeGroup
	self   *fakeIdentity
	peer   *fakeIdentity
	engine *Engine
}

var fastRetry = RetryPolicy{Attempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:  NewMemoryStore(),
		source: newFakeSource(),
		group:  &fakeGroup{},
	}
	env.self = &fakeIdentity{name: "Me", group: env.group}
	env.peer = &fakeIdentity{name: "Her", group: env.group}
	dispatcher, err := NewDispatcher(env.self, env.peer)
	require.NoError(t, err)
	dir := t.TempDir()
	env.engine = NewEngine(env.store, env.source, dispatcher, zerolog.Nop(), EngineOptions{
		Retry:           fastRetry,
		BackfillReplies: true,
		MediaDir:        filepath.Join(dir, "media"),
		TempDir:         filepath.Join(dir, "tmp"),
	})
	return env
}

func textMessage(id SourceID, outgoing bool, text string) *MessageEvent {
	return &MessageEvent{
		ID:         id,
		IsOutgoing: outgoing,
		Text:       text,
		Date:       time.Unix(1700000000+int64(id), 0),
	}
}

func (env *testEnv) record(t *testing.T, id SourceID) *MessageRecord {
	t.Helper()
	rec, err := env.store.GetMessage(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec, "no record for %d", id)
	return rec
}
