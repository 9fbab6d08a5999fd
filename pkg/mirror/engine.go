// dmmirror - A direct-message to backup-group chat mirror.
// Copyright (C) 2026 The dmmirror Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package mirror

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Outcome describes what a handler did with an event.
type Outcome int

const (
	// OutcomeApplied means a transition was dispatched and committed.
	OutcomeApplied Outcome = iota
	// OutcomeDuplicate means the event was already reflected in the store.
	OutcomeDuplicate
	// OutcomeSkipped means the event needed no destination action.
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "skipped"
	}
}

// MediaPreparer transforms a downloaded file before upload. It returns the
// path to send, which may be the input path.
type MediaPreparer interface {
	PrepareUpload(ctx context.Context, path string, kind MediaKind) (string, error)
}

type EngineOptions struct {
	Retry RetryPolicy
	// BackfillReplies patches stored reply anchors of earlier messages once
	// the message they reply to gets mapped.
	BackfillReplies bool
	// MediaDir keeps self-destructing media permanently.
	MediaDir string
	// TempDir holds downloads that are removed after upload.
	TempDir  string
	Preparer MediaPreparer
	Metrics  *Metrics
	Now      func() time.Time
}

// Engine applies conversation events to the identifier map and the destination group.
type Engine struct {
	store      Store
	source     Source
	dispatcher *Dispatcher
	opts       EngineOptions
	log        zerolog.Logger
	locks      *keyLock
}

func NewEngine(store Store, source Source, dispatcher *Dispatcher, log zerolog.Logger, opts EngineOptions) *Engine {
	if opts.Retry.Attempts == 0 {
		opts.Retry = DefaultRetryPolicy
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.MediaDir == "" {
		opts.MediaDir = opts.TempDir
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		store:      store,
		source:     source,
		dispatcher: dispatcher,
		opts:       opts,
		log:        log.With().Str("component", "engine").Logger(),
		locks:      newKeyLock(),
	}
}

// HandleNewMessage maps an unseen message into the destination group.
// It returns ErrConflict without dispatching anything if the message is already mapped.
func (e *Engine) HandleNewMessage(ctx context.Context, evt *MessageEvent) (Outcome, error) {
	return e.handleNewMessage(ctx, evt, false)
}

// HandleNewMessageForced is HandleNewMessage with media downloaded to
// stable storage regardless of how the platform offers it.
func (e *Engine) HandleNewMessageForced(ctx context.Context, evt *MessageEvent) (Outcome, error) {
	return e.handleNewMessage(ctx, evt, true)
}

func (e *Engine) handleNewMessage(ctx context.Context, evt *MessageEvent, forceDownload bool) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return OutcomeSkipped, err
	}
	log := e.log.With().Str("event", "new").Stringer("source_id", evt.ID).Logger()
	unlock := e.locks.Lock(evt.ID)
	defer unlock()

	exists, err := e.store.Exists(ctx, evt.ID)
	if err != nil {
		return OutcomeSkipped, WrapStoreError("exists", err)
	} else if exists {
		log.Debug().Msg("Message already mapped")
		return OutcomeDuplicate, ErrConflict
	}
	if isEmptyMessage(evt) {
		log.Debug().Msg("Skipping message with no content")
		return OutcomeSkipped, nil
	}

	tctx := context.WithoutCancel(ctx)
	rec, err := e.mapMessage(tctx, log, evt, forceDownload)
	if err != nil {
		return OutcomeSkipped, err
	}
	log.Info().
		Stringer("dest_id", rec.DestID).
		Str("sender", string(rec.Sender)).
		Str("media_kind", string(rec.MediaKind)).
		Bool("reply_resolved", rec.ReplyToSource == 0 || rec.ReplyToDest != 0).
		Msg("Mirrored message")
	return OutcomeApplied, nil
}

// mapMessage performs UNSEEN -> MAPPED for a message whose lock is held.
func (e *Engine) mapMessage(ctx context.Context, log zerolog.Logger, evt *MessageEvent, forceDownload bool) (*MessageRecord, error) {
	rec := &MessageRecord{
		SourceID:      evt.ID,
		Sender:        evt.Origin(),
		Content:       TruncateContent(evt.Text),
		CreatedAt:     evt.Date,
		MediaKind:     MediaNone,
		ReplyToSource: evt.ReplyToID,
		IsForwarded:   evt.IsForwarded,
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = e.opts.Now()
	}
	if evt.Media != nil && evt.Media.Kind != MediaNone {
		rec.HasMedia = true
		rec.MediaKind = evt.Media.Kind
	}

	if evt.ReplyToID != 0 {
		dest, ok, err := e.store.ResolveDestID(ctx, evt.ReplyToID)
		if err != nil {
			return nil, WrapStoreError("resolve reply target", err)
		} else if ok {
			rec.ReplyToDest = dest
		} else {
			log.Debug().Stringer("reply_to_source", evt.ReplyToID).Msg("Reply target not mapped, sending without anchor")
		}
	}

	destID, err := e.dispatchMessage(ctx, log, evt, rec, forceDownload)
	if err != nil {
		if IsPermanent(err) {
			return nil, err
		}
		if holdErr := e.store.HoldCheckpoint(ctx, evt.ID); holdErr != nil {
			return nil, WrapStoreError("hold checkpoint", holdErr)
		}
		log.Warn().Err(err).Msg("Holding checkpoint so the message is retried on the next catch-up")
		return nil, err
	}
	rec.DestID = destID

	if err = e.store.Put(ctx, rec); errors.Is(err, ErrConflict) {
		log.Warn().Stringer("dest_id", destID).Msg("Message was mapped concurrently, destination copy is a duplicate")
		return nil, ErrConflict
	} else if err != nil {
		return nil, WrapStoreError("put", err)
	}
	if err = e.CommitCheckpoint(ctx, evt.ID); err != nil {
		return nil, err
	}
	e.opts.Metrics.transition("mapped")

	if e.opts.BackfillReplies {
		e.backfillReplies(ctx, log, evt.ID, destID)
	}
	return rec, nil
}

func (e *Engine) backfillReplies(ctx context.Context, log zerolog.Logger, target SourceID, destID DestID) {
	ids, err := e.store.UnresolvedReplies(ctx, target)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to look up replies waiting for this message")
		return
	}
	for _, id := range ids {
		if err = e.store.SetReplyDest(ctx, id, destID); err != nil {
			log.Warn().Err(err).Stringer("reply_source_id", id).Msg("Failed to backfill reply anchor")
			continue
		}
		log.Debug().Stringer("reply_source_id", id).Msg("Backfilled reply anchor")
	}
}

func isEmptyMessage(evt *MessageEvent) bool {
	return evt.Text == "" && (evt.Media == nil || evt.Media.Kind == MediaNone)
}

func (e *Engine) dispatchMessage(ctx context.Context, log zerolog.Logger, evt *MessageEvent, rec *MessageRecord, forceDownload bool) (DestID, error) {
	origin := rec.Sender
	replyTo := rec.ReplyToDest
	media := evt.Media

	switch {
	case media == nil || media.Kind == MediaNone:
		body := rec.Content
		if body == "" {
			body = MediaNone.Label()
		}
		return e.send(ctx, log, "send text", func() (DestID, error) {
			return e.dispatcher.SendText(ctx, body, origin, replyTo)
		})
	case evt.IsSelfDestructing || (forceDownload && media.Downloadable):
		path, err := e.download(ctx, log, evt, e.opts.MediaDir)
		if err != nil {
			return 0, err
		}
		rec.MediaPath = path
		rec.WasSelfDestructing = evt.IsSelfDestructing
		ident, err := e.dispatcher.IdentityFor(origin)
		if err != nil {
			return 0, err
		}
		caption := rec.Content
		if evt.IsSelfDestructing {
			caption = viewOnceCaption(ident.Name(), rec.Content)
		}
		return e.sendFile(ctx, log, path, media.Kind, origin, caption, replyTo, false)
	case media.Forwardable && media.Handle != "":
		destID, err := e.send(ctx, log, "send media reference", func() (DestID, error) {
			return e.dispatcher.SendMediaReference(ctx, media, origin, rec.Content, replyTo)
		})
		if err == nil || !media.Downloadable || errors.Is(err, ErrUnknownOrigin) {
			return destID, err
		}
		log.Warn().Err(err).Msg("Forwarding media by reference failed, uploading a copy instead")
		fallthrough
	case media.Downloadable:
		path, err := e.download(ctx, log, evt, e.opts.TempDir)
		if err != nil {
			return 0, err
		}
		return e.sendFile(ctx, log, path, media.Kind, origin, rec.Content, replyTo, true)
	default:
		body := media.Kind.Label()
		if media.Description != "" {
			body += " " + media.Description
		}
		if rec.Content != "" {
			body += "\n\n" + rec.Content
		}
		body = TruncateContent(body)
		return e.send(ctx, log, "send text", func() (DestID, error) {
			return e.dispatcher.SendText(ctx, body, origin, replyTo)
		})
	}
}

func (e *Engine) download(ctx context.Context, log zerolog.Logger, evt *MessageEvent, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}
	return withRetry(ctx, log, e.opts.Retry, "download attachment", func() (string, error) {
		return e.source.DownloadAttachment(ctx, evt, dir)
	})
}

func (e *Engine) sendFile(ctx context.Context, log zerolog.Logger, path string, kind MediaKind, origin Origin, caption string, replyTo DestID, temporary bool) (DestID, error) {
	upload := path
	if e.opts.Preparer != nil {
		prepared, err := e.opts.Preparer.PrepareUpload(ctx, path, kind)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to prepare media, sending original")
		} else {
			upload = prepared
		}
	}
	defer func() {
		if upload != path {
			_ = os.Remove(upload)
		}
		if temporary {
			_ = os.Remove(path)
		}
	}()
	return e.send(ctx, log, "send file", func() (DestID, error) {
		return e.dispatcher.SendFile(ctx, upload, origin, caption, replyTo)
	})
}

func (e *Engine) send(ctx context.Context, log zerolog.Logger, op string, fn func() (DestID, error)) (DestID, error) {
	destID, err := withRetry(ctx, log, e.opts.Retry, op, fn)
	if err != nil {
		return 0, fmt.Errorf("failed to %s: %w", op, err)
	}
	return destID, nil
}

// HandleEdit annotates an edited message in the destination group and
// records the edit. An edit for an unseen message maps it first.
func (e *Engine) HandleEdit(ctx context.Context, edit *MessageEdit) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return OutcomeSkipped, err
	}
	msg := edit.Message
	log := e.log.With().Str("event", "edit").Stringer("source_id", msg.ID).Logger()
	unlock := e.locks.Lock(msg.ID)
	defer unlock()
	tctx := context.WithoutCancel(ctx)

	rec, err := e.store.GetMessage(tctx, msg.ID)
	if err != nil {
		return OutcomeSkipped, WrapStoreError("get message", err)
	}
	synthesized := false
	if rec == nil {
		log.Debug().Msg("Edit for unseen message, mapping it first")
		synth := *msg
		if isEmptyMessage(&synth) {
			synth.Text = editedMediaNotice
		}
		rec, err = e.mapMessage(tctx, log, &synth, false)
		if err != nil {
			return OutcomeSkipped, err
		}
		synthesized = true
	}

	newContent := TruncateContent(msg.Text)
	if !synthesized && newContent == rec.Content {
		log.Debug().Msg("Edit did not change content")
		return OutcomeSkipped, nil
	}

	origin := rec.Sender
	if origin == OriginSystem {
		origin = msg.Origin()
	}
	body := editAnnotation(msg.Text)
	notifID, err := e.send(tctx, log, "send edit annotation", func() (DestID, error) {
		return e.dispatcher.SendText(tctx, body, origin, rec.DestID)
	})
	if err != nil {
		return OutcomeSkipped, err
	}
	if err = e.store.MarkEdited(tctx, msg.ID, newContent, notifID, edit.EditedAt); err != nil {
		return OutcomeSkipped, WrapStoreError("mark edited", err)
	}
	e.opts.Metrics.transition("edited")
	log.Info().
		Stringer("dest_id", rec.DestID).
		Stringer("notification_dest_id", notifID).
		Bool("synthesized", synthesized).
		Bool("deleted", rec.IsDeleted).
		Msg("Mirrored edit")
	return OutcomeApplied, nil
}

// HandleDelete annotates a deleted message. The destination copy stays in place.
func (e *Engine) HandleDelete(ctx context.Context, id SourceID) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return OutcomeSkipped, err
	}
	log := e.log.With().Str("event", "delete").Stringer("source_id", id).Logger()
	unlock := e.locks.Lock(id)
	defer unlock()
	tctx := context.WithoutCancel(ctx)

	rec, err := e.store.GetMessage(tctx, id)
	if err != nil {
		return OutcomeSkipped, WrapStoreError("get message", err)
	} else if rec == nil {
		log.Debug().Msg("Delete for unseen message, nothing to annotate")
		return OutcomeSkipped, nil
	} else if rec.IsDeleted {
		log.Debug().Msg("Message already marked deleted")
		return OutcomeDuplicate, nil
	}

	origin := rec.Sender
	if origin == OriginSystem {
		origin = OriginPeer
	}
	body := deleteAnnotation(rec.HasMedia)
	notifID, err := e.send(tctx, log, "send delete annotation", func() (DestID, error) {
		return e.dispatcher.SendText(tctx, body, origin, rec.DestID)
	})
	if err != nil {
		return OutcomeSkipped, err
	}
	if _, err = e.store.MarkDeleted(tctx, id); err != nil {
		return OutcomeSkipped, WrapStoreError("mark deleted", err)
	}
	e.opts.Metrics.transition("deleted")
	log.Info().
		Stringer("dest_id", rec.DestID).
		Stringer("notification_dest_id", notifID).
		Msg("Mirrored delete")
	return OutcomeApplied, nil
}

// HandleDeletes applies a batch delete notification in order. Per-message
// failures are logged and do not stop the batch.
func (e *Engine) HandleDeletes(ctx context.Context, evt *MessageDelete) int {
	applied := 0
	for _, id := range evt.IDs {
		outcome, err := e.HandleDelete(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return applied
			}
			e.opts.Metrics.dispatchFailed("delete")
			e.log.Err(err).Str("event", "delete").Stringer("source_id", id).Msg("Failed to mirror delete")
			continue
		}
		if outcome == OutcomeApplied {
			applied++
		}
	}
	return applied
}

// CommitCheckpoint advances the checkpoint past a processed message. Held
// ids below it keep the checkpoint back.
func (e *Engine) CommitCheckpoint(ctx context.Context, id SourceID) error {
	if err := e.store.AdvanceCheckpoint(ctx, id); err != nil {
		return WrapStoreError("advance checkpoint", err)
	}
	if e.opts.Metrics != nil {
		checkpoint, err := e.store.Checkpoint(ctx)
		if err != nil {
			return WrapStoreError("read checkpoint", err)
		}
		e.opts.Metrics.setCheckpoint(checkpoint)
	}
	return nil
}

// ResolvePendingReplies fills in reply anchors for records whose reply
// target has since been mapped. It returns the number of links resolved.
func (e *Engine) ResolvePendingReplies(ctx context.Context) (int, error) {
	links, err := e.store.AllUnresolvedReplies(ctx)
	if err != nil {
		return 0, WrapStoreError("list unresolved replies", err)
	}
	resolved := 0
	for _, link := range links {
		dest, ok, err := e.store.ResolveDestID(ctx, link.ReplyToSource)
		if err != nil {
			return resolved, WrapStoreError("resolve reply target", err)
		} else if !ok {
			continue
		}
		if err = e.store.SetReplyDest(ctx, link.SourceID, dest); err != nil {
			return resolved, WrapStoreError("set reply anchor", err)
		}
		resolved++
	}
	return resolved, nil
}
