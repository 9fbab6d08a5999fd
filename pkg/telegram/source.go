package telegram

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/gotd/td/session"
	tgclient "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/config"
	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/media"
	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/mirror"
)

var errNotDownloadable = errors.New("message has no downloadable media")

type historyAPI interface {
	MessagesGetHistory(ctx context.Context, request *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error)
}

// Source is the user-account view of the one-to-one conversation with the partner.
type Source struct {
	cfg config.SourceConfig
	log zerolog.Logger

	client  *tgclient.Client
	api     *tg.Client
	gaps    *updates.Manager
	history historyAPI
	peer    tg.InputPeerClass

	queue       *eventQueue
	newMessages hub[*mirror.MessageEvent]
	edits       hub[*mirror.MessageEdit]
	deletes     hub[*mirror.MessageDelete]
	readyOnce   sync.Once
	ready       chan struct{}
}

var _ mirror.Source = (*Source)(nil)

func newSource(cfg config.SourceConfig, log zerolog.Logger) *Source {
	if cfg.HistoryBatchSize <= 0 || cfg.HistoryBatchSize > 100 {
		cfg.HistoryBatchSize = 100
	}
	return &Source{
		cfg:   cfg,
		log:   log.With().Str("component", "source").Logger(),
		queue: newEventQueue(),
		ready: make(chan struct{}),
	}
}

func NewSource(cfg config.SourceConfig, log zerolog.Logger) (*Source, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.SessionFile), 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	s := newSource(cfg, log)
	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewMessage(s.onNewMessage)
	dispatcher.OnEditMessage(s.onEditMessage)
	dispatcher.OnDeleteMessages(s.onDeleteMessages)
	s.gaps = updates.New(updates.Config{Handler: dispatcher})
	s.client = tgclient.NewClient(cfg.APIID, cfg.APIHash, tgclient.Options{
		SessionStorage: &session.FileStorage{Path: cfg.SessionFile},
		UpdateHandler:  s.gaps,
	})
	s.api = s.client.API()
	s.history = s.api
	return s, nil
}

// Run connects the source account, starts receiving updates and calls fn.
// The connection is closed when fn returns or ctx is canceled.
func (s *Source) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	err := s.client.Run(ctx, func(ctx context.Context) error {
		status, err := s.client.Auth().Status(ctx)
		if err != nil {
			return mtprotoError("check authorization", err)
		} else if !status.Authorized {
			return &mirror.ConfigurationError{Problems: []string{"source account is not logged in, run dmmirror login first"}}
		}
		self := status.User
		if err = s.resolvePeer(ctx); err != nil {
			return err
		}
		s.log.Info().
			Int64("user_id", self.ID).
			Str("username", self.Username).
			Int64("partner_id", s.cfg.PartnerUserID).
			Msg("Connected source account")

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return s.gaps.Run(ctx, s.api, self.ID, updates.AuthOptions{})
		})
		g.Go(func() error {
			s.forward(ctx)
			return nil
		})
		g.Go(func() error {
			err := fn(ctx)
			if err == nil {
				cancel()
			}
			return err
		})
		return g.Wait()
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Source) resolvePeer(ctx context.Context) error {
	hash := s.cfg.PartnerAccessHash
	if hash == 0 {
		user, err := findDialogUser(ctx, s.api, s.cfg.PartnerUserID)
		if err != nil {
			return err
		}
		hash = user.AccessHash
		s.log.Info().
			Int64("access_hash", hash).
			Msg("Resolved partner from dialogs, set source.partner_access_hash to skip this lookup")
	}
	s.peer = &tg.InputPeerUser{UserID: s.cfg.PartnerUserID, AccessHash: hash}
	return nil
}

func findDialogUser(ctx context.Context, api *tg.Client, userID int64) (*tg.User, error) {
	res, err := api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      100,
	})
	if err != nil {
		return nil, mtprotoError("fetch dialogs", err)
	}
	var users []tg.UserClass
	switch dialogs := res.(type) {
	case *tg.MessagesDialogs:
		users = dialogs.Users
	case *tg.MessagesDialogsSlice:
		users = dialogs.Users
	}
	for _, item := range users {
		if user, ok := item.(*tg.User); ok && user.ID == userID {
			return user, nil
		}
	}
	return nil, &mirror.ConfigurationError{Problems: []string{
		fmt.Sprintf("partner %d not found in recent dialogs, set source.partner_access_hash", userID),
	}}
}

func (s *Source) onNewMessage(_ context.Context, _ tg.Entities, update *tg.UpdateNewMessage) error {
	if msg, ok := update.Message.(*tg.Message); ok && isPartnerPeer(msg.PeerID, s.cfg.PartnerUserID) {
		s.queue.push(convertMessage(msg))
	}
	return nil
}

func (s *Source) onEditMessage(_ context.Context, _ tg.Entities, update *tg.UpdateEditMessage) error {
	msg, ok := update.Message.(*tg.Message)
	if !ok || !isPartnerPeer(msg.PeerID, s.cfg.PartnerUserID) {
		return nil
	}
	editedAt := time.Now()
	if editDate, ok := msg.GetEditDate(); ok {
		editedAt = time.Unix(int64(editDate), 0)
	}
	s.queue.push(&mirror.MessageEdit{Message: convertMessage(msg), EditedAt: editedAt})
	return nil
}

// onDeleteMessages handles deletes in private chats, which carry no peer.
// Ids from other chats are unseen by the mirror and ignored there.
func (s *Source) onDeleteMessages(_ context.Context, _ tg.Entities, update *tg.UpdateDeleteMessages) error {
	if len(update.Messages) == 0 {
		return nil
	}
	ids := make([]mirror.SourceID, len(update.Messages))
	for i, id := range update.Messages {
		ids[i] = mirror.SourceID(id)
	}
	s.queue.push(&mirror.MessageDelete{IDs: ids})
	return nil
}

// forward delivers queued updates to subscribers in order until ctx is
// canceled, then closes every subscription.
func (s *Source) forward(ctx context.Context) {
	defer func() {
		s.newMessages.close()
		s.edits.close()
		s.deletes.close()
	}()
	select {
	case <-s.ready:
	case <-ctx.Done():
		return
	}
	for {
		item, ok := s.queue.pop(ctx)
		if !ok {
			return
		}
		switch evt := item.(type) {
		case *mirror.MessageEvent:
			ok = s.newMessages.deliver(ctx, evt)
		case *mirror.MessageEdit:
			ok = s.edits.deliver(ctx, evt)
		case *mirror.MessageDelete:
			ok = s.deletes.deliver(ctx, evt)
		}
		if !ok {
			if pending := s.queue.len(); pending > 0 {
				s.log.Warn().Int("pending", pending).Msg("Dropped queued updates on shutdown")
			}
			return
		}
	}
}

// markReady starts delivery once all three kinds of events have a subscriber.
func (s *Source) markReady() {
	if s.newMessages.hasSubscribers() && s.edits.hasSubscribers() && s.deletes.hasSubscribers() {
		s.readyOnce.Do(func() { close(s.ready) })
	}
}

func (s *Source) SubscribeNewMessages(pred func(*mirror.MessageEvent) bool) <-chan *mirror.MessageEvent {
	defer s.markReady()
	return s.newMessages.subscribe(pred)
}

func (s *Source) SubscribeEdits(pred func(*mirror.MessageEdit) bool) <-chan *mirror.MessageEdit {
	defer s.markReady()
	return s.edits.subscribe(pred)
}

func (s *Source) SubscribeDeletes(pred func(*mirror.MessageDelete) bool) <-chan *mirror.MessageDelete {
	defer s.markReady()
	return s.deletes.subscribe(pred)
}

func (s *Source) getHistory(ctx context.Context, req *tg.MessagesGetHistoryRequest) ([]tg.MessageClass, error) {
	req.Peer = s.peer
	res, err := s.history.MessagesGetHistory(ctx, req)
	if err != nil {
		return nil, mtprotoError("fetch history", err)
	}
	switch messages := res.(type) {
	case *tg.MessagesMessages:
		return messages.Messages, nil
	case *tg.MessagesMessagesSlice:
		return messages.Messages, nil
	case *tg.MessagesChannelMessages:
		return messages.Messages, nil
	default:
		return nil, nil
	}
}

// FetchHistory pages forward from minID using a negative offset, so each
// request returns the batch directly above the cursor.
func (s *Source) FetchHistory(ctx context.Context, minID mirror.SourceID) iter.Seq2[*mirror.MessageEvent, error] {
	return func(yield func(*mirror.MessageEvent, error) bool) {
		cursor := int(minID)
		for {
			batch, err := s.getHistory(ctx, &tg.MessagesGetHistoryRequest{
				OffsetID:  cursor + 1,
				AddOffset: -s.cfg.HistoryBatchSize,
				Limit:     s.cfg.HistoryBatchSize,
				MinID:     cursor,
			})
			if err != nil {
				yield(nil, err)
				return
			}
			slices.SortFunc(batch, func(a, b tg.MessageClass) int {
				return cmp.Compare(a.GetID(), b.GetID())
			})
			advanced := false
			for _, item := range batch {
				if item.GetID() <= cursor {
					continue
				}
				cursor = item.GetID()
				advanced = true
				msg, ok := item.(*tg.Message)
				if !ok {
					continue
				}
				if !yield(convertMessage(msg), nil) {
					return
				}
			}
			if !advanced {
				return
			}
		}
	}
}

func (s *Source) FetchRecent(ctx context.Context, limit int) iter.Seq2[*mirror.MessageEvent, error] {
	return func(yield func(*mirror.MessageEvent, error) bool) {
		offset := 0
		for remaining := limit; remaining > 0; {
			batch, err := s.getHistory(ctx, &tg.MessagesGetHistoryRequest{
				OffsetID: offset,
				Limit:    min(remaining, s.cfg.HistoryBatchSize),
			})
			if err != nil {
				yield(nil, err)
				return
			}
			slices.SortFunc(batch, func(a, b tg.MessageClass) int {
				return cmp.Compare(b.GetID(), a.GetID())
			})
			advanced := false
			for _, item := range batch {
				if offset != 0 && item.GetID() >= offset {
					continue
				}
				offset = item.GetID()
				advanced = true
				remaining--
				if msg, ok := item.(*tg.Message); ok && !yield(convertMessage(msg), nil) {
					return
				}
				if remaining == 0 {
					return
				}
			}
			if !advanced {
				return
			}
		}
	}
}

func (s *Source) DownloadAttachment(ctx context.Context, msg *mirror.MessageEvent, destPath string) (string, error) {
	var loc *fileLocation
	if msg.Media != nil {
		loc, _ = msg.Media.Raw.(*fileLocation)
	}
	if loc == nil {
		return "", &mirror.TransportError{Op: "download attachment", Permanent: true, Err: errNotDownloadable}
	}
	path := media.TempPath(destPath, attachmentExtension(msg.Media))
	_, err := downloader.NewDownloader().Download(s.api, loc.location).ToPath(ctx, path)
	if err != nil {
		_ = os.Remove(path)
		return "", mtprotoError("download attachment", err)
	}
	s.log.Debug().
		Int64("source_id", int64(msg.ID)).
		Int64("size", loc.size).
		Str("path", path).
		Msg("Downloaded attachment")
	return path, nil
}

func attachmentExtension(ref *mirror.MediaRef) string {
	if ext := filepath.Ext(ref.FileName); ext != "" {
		return ext
	}
	return media.Extension(ref.MimeType)
}
