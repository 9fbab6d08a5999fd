// dmmirror - A direct-message to backup-group chat mirror.
// Copyright (C) 2026 The dmmirror Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package mirrordb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"go.mau.fi/util/dbutil"

	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/mirror"
)

const checkpointName = "last_processed"

// Store is the SQL-backed identifier map. It works on SQLite and Postgres.
type Store struct {
	db    *dbutil.Database
	cache Cache
	log   zerolog.Logger

	// cacheLock orders cache fills against invalidations. generation counts
	// invalidations so a fill that raced with a write can be discarded.
	cacheLock  sync.Mutex
	generation uint64
}

var (
	_ mirror.Store        = (*Store)(nil)
	_ mirror.HistoryStore = (*Store)(nil)
)

// Open connects to the configured database.
func Open(cfg dbutil.Config, log zerolog.Logger) (*dbutil.Database, error) {
	db, err := dbutil.NewFromConfig("dmmirror", cfg, dbutil.ZeroLogger(log.With().Str("db_section", "main").Logger()))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Type, err)
	}
	return db, nil
}

// New wraps an open database. A nil cache disables read caching.
func New(db *dbutil.Database, cache Cache, log zerolog.Logger) *Store {
	if cache == nil {
		cache = noopCache{}
	}
	return &Store{db: db, cache: cache, log: log.With().Str("component", "store").Logger()}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Upgrade creates any missing tables and indexes.
func (s *Store) Upgrade(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			source_id BIGINT PRIMARY KEY,
			dest_id BIGINT NOT NULL,
			sender TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			created_ms BIGINT NOT NULL,
			has_media BOOLEAN NOT NULL DEFAULT FALSE,
			media_kind TEXT NOT NULL DEFAULT 'none',
			media_path TEXT,
			reply_to_source BIGINT,
			reply_to_dest BIGINT,
			is_forwarded BOOLEAN NOT NULL DEFAULT FALSE,
			is_edited BOOLEAN NOT NULL DEFAULT FALSE,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			was_self_destructing BOOLEAN NOT NULL DEFAULT FALSE,
			updated_ms BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS edit_history (
			source_id BIGINT NOT NULL,
			seq INTEGER NOT NULL,
			edited_ms BIGINT NOT NULL,
			old_content TEXT NOT NULL DEFAULT '',
			new_content TEXT NOT NULL DEFAULT '',
			notification_dest_id BIGINT,
			PRIMARY KEY (source_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS reply_links (
			source_id BIGINT PRIMARY KEY,
			reply_to_source BIGINT NOT NULL,
			reply_to_dest BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS checkpoint (
			name TEXT PRIMARY KEY,
			source_id BIGINT NOT NULL,
			updated_ms BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS checkpoint_holds (
			source_id BIGINT PRIMARY KEY,
			created_ms BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS reply_links_target_idx
			ON reply_links (reply_to_source)`,
	}
	for _, query := range queries {
		if _, err := s.db.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to ensure mirror schema: %w", err)
		}
	}
	return nil
}

func (s *Store) dropCached(ctx context.Context, id mirror.SourceID) error {
	s.cacheLock.Lock()
	defer s.cacheLock.Unlock()
	s.generation++
	return s.cache.Invalidate(ctx, id)
}

// invalidate drops a cached record. A cache that cannot be cleared would
// serve stale state, so failures abort the write that triggered them.
func (s *Store) invalidate(ctx context.Context, id mirror.SourceID) error {
	if err := s.dropCached(ctx, id); err != nil {
		return fmt.Errorf("failed to invalidate cached message %d: %w", id, err)
	}
	return nil
}

func (s *Store) afterWrite(ctx context.Context, id mirror.SourceID) {
	if err := s.dropCached(ctx, id); err != nil {
		s.log.Warn().Err(err).Stringer("source_id", id).Msg("Failed to invalidate cached message after write")
	}
}

func (s *Store) cacheGeneration() uint64 {
	s.cacheLock.Lock()
	defer s.cacheLock.Unlock()
	return s.generation
}

// fillCache caches a record read at generation gen, unless a write happened since.
func (s *Store) fillCache(ctx context.Context, gen uint64, rec *mirror.MessageRecord) {
	s.cacheLock.Lock()
	defer s.cacheLock.Unlock()
	if s.generation == gen {
		s.cache.Set(ctx, rec)
	}
}

func (s *Store) Put(ctx context.Context, rec *mirror.MessageRecord) error {
	if err := s.invalidate(ctx, rec.SourceID); err != nil {
		return mirror.WrapStoreError("put", err)
	}
	err := s.put(ctx, rec)
	s.afterWrite(ctx, rec.SourceID)
	return mirror.WrapStoreError("put", err)
}

func (s *Store) put(ctx context.Context, rec *mirror.MessageRecord) error {
	nowMS := time.Now().UnixMilli()
	mediaKind := rec.MediaKind
	if mediaKind == "" {
		mediaKind = mirror.MediaNone
	}
	return s.db.DoTxn(ctx, nil, func(ctx context.Context) error {
		res, err := s.db.Exec(ctx, `
			INSERT INTO messages (
				source_id, dest_id, sender, content, created_ms,
				has_media, media_kind, media_path, reply_to_source, reply_to_dest,
				is_forwarded, is_edited, is_deleted, was_self_destructing, updated_ms
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			ON CONFLICT (source_id) DO NOTHING
		`,
			int64(rec.SourceID), int64(rec.DestID), string(rec.Sender), mirror.TruncateContent(rec.Content), rec.CreatedAt.UnixMilli(),
			rec.HasMedia, string(mediaKind), nullableString(rec.MediaPath), nullableID(int64(rec.ReplyToSource)), nullableID(int64(rec.ReplyToDest)),
			rec.IsForwarded, rec.IsEdited, rec.IsDeleted, rec.WasSelfDestructing, nowMS,
		)
		if err != nil {
			return fmt.Errorf("failed to insert message %d: %w", rec.SourceID, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return mirror.ErrConflict
		}

		if rec.ReplyToSource != 0 {
			_, err = s.db.Exec(ctx, `
				INSERT INTO reply_links (source_id, reply_to_source, reply_to_dest)
				VALUES ($1, $2, $3)
				ON CONFLICT (source_id) DO NOTHING
			`, int64(rec.SourceID), int64(rec.ReplyToSource), nullableID(int64(rec.ReplyToDest)))
			if err != nil {
				return fmt.Errorf("failed to insert reply link for %d: %w", rec.SourceID, err)
			}
		}
		_, err = s.db.Exec(ctx, `DELETE FROM checkpoint_holds WHERE source_id=$1`, int64(rec.SourceID))
		if err != nil {
			return fmt.Errorf("failed to release checkpoint hold for %d: %w", rec.SourceID, err)
		}
		return nil
	})
}

func (s *Store) ResolveDestID(ctx context.Context, id mirror.SourceID) (mirror.DestID, bool, error) {
	rec, err := s.GetMessage(ctx, id)
	if err != nil || rec == nil || rec.DestID == 0 {
		return 0, false, err
	}
	return rec.DestID, true, nil
}

func (s *Store) Exists(ctx context.Context, id mirror.SourceID) (bool, error) {
	if _, ok := s.cache.Get(ctx, id); ok {
		return true, nil
	}
	var count int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE source_id=$1`, int64(id)).Scan(&count)
	if err != nil {
		return false, mirror.WrapStoreError("exists", err)
	}
	return count > 0, nil
}

const messageColumns = `
	source_id, dest_id, sender, content, created_ms,
	has_media, media_kind, media_path, reply_to_source, reply_to_dest,
	is_forwarded, is_edited, is_deleted, was_self_destructing
`

func scanMessage(row dbutil.Scannable) (*mirror.MessageRecord, error) {
	var rec mirror.MessageRecord
	var sourceID, destID, createdMS int64
	var sender, mediaKind string
	var mediaPath sql.NullString
	var replyToSource, replyToDest sql.NullInt64
	err := row.Scan(
		&sourceID, &destID, &sender, &rec.Content, &createdMS,
		&rec.HasMedia, &mediaKind, &mediaPath, &replyToSource, &replyToDest,
		&rec.IsForwarded, &rec.IsEdited, &rec.IsDeleted, &rec.WasSelfDestructing,
	)
	if err != nil {
		return nil, err
	}
	rec.SourceID = mirror.SourceID(sourceID)
	rec.DestID = mirror.DestID(destID)
	rec.Sender = mirror.Origin(sender)
	rec.CreatedAt = time.UnixMilli(createdMS)
	rec.MediaKind = mirror.MediaKind(mediaKind)
	rec.MediaPath = mediaPath.String
	rec.ReplyToSource = mirror.SourceID(replyToSource.Int64)
	rec.ReplyToDest = mirror.DestID(replyToDest.Int64)
	return &rec, nil
}

func (s *Store) GetMessage(ctx context.Context, id mirror.SourceID) (*mirror.MessageRecord, error) {
	if rec, ok := s.cache.Get(ctx, id); ok {
		return rec, nil
	}
	gen := s.cacheGeneration()
	rec, err := scanMessage(s.db.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE source_id=$1`, int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, mirror.WrapStoreError("get message", err)
	}
	s.fillCache(ctx, gen, rec)
	return rec, nil
}

// MarkEdited records an edit made at editedAt, or now if editedAt is zero.
func (s *Store) MarkEdited(ctx context.Context, id mirror.SourceID, newContent string, notificationDestID mirror.DestID, editedAt time.Time) error {
	if err := s.invalidate(ctx, id); err != nil {
		return mirror.WrapStoreError("mark edited", err)
	}
	if editedAt.IsZero() {
		editedAt = time.Now()
	}
	err := s.markEdited(ctx, id, mirror.TruncateContent(newContent), notificationDestID, editedAt)
	s.afterWrite(ctx, id)
	return mirror.WrapStoreError("mark edited", err)
}

func (s *Store) markEdited(ctx context.Context, id mirror.SourceID, newContent string, notificationDestID mirror.DestID, editedAt time.Time) error {
	return s.db.DoTxn(ctx, nil, func(ctx context.Context) error {
		var oldContent string
		err := s.db.QueryRow(ctx, `SELECT content FROM messages WHERE source_id=$1`, int64(id)).Scan(&oldContent)
		if errors.Is(err, sql.ErrNoRows) {
			return mirror.ErrNotFound
		} else if err != nil {
			return fmt.Errorf("failed to read current content: %w", err)
		}

		var seq int
		err = s.db.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM edit_history WHERE source_id=$1`, int64(id)).Scan(&seq)
		if err != nil {
			return fmt.Errorf("failed to allocate edit sequence: %w", err)
		}

		_, err = s.db.Exec(ctx, `
			INSERT INTO edit_history (source_id, seq, edited_ms, old_content, new_content, notification_dest_id)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, int64(id), seq, editedAt.UnixMilli(), oldContent, newContent, nullableID(int64(notificationDestID)))
		if err != nil {
			return fmt.Errorf("failed to append edit event: %w", err)
		}
		_, err = s.db.Exec(ctx, `
			UPDATE messages SET content=$2, is_edited=TRUE, updated_ms=$3 WHERE source_id=$1
		`, int64(id), newContent, time.Now().UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to update message content: %w", err)
		}
		return nil
	})
}

// MarkDeleted soft-deletes a message and reports whether the row exists.
// A deleted row is never flipped back to live.
func (s *Store) MarkDeleted(ctx context.Context, id mirror.SourceID) (bool, error) {
	if err := s.invalidate(ctx, id); err != nil {
		return false, mirror.WrapStoreError("mark deleted", err)
	}
	defer s.afterWrite(ctx, id)
	res, err := s.db.Exec(ctx, `
		UPDATE messages
		SET is_deleted=TRUE, updated_ms=CASE WHEN is_deleted THEN updated_ms ELSE $2 END
		WHERE source_id=$1
	`, int64(id), time.Now().UnixMilli())
	if err != nil {
		return false, mirror.WrapStoreError("mark deleted", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mirror.WrapStoreError("mark deleted", err)
	}
	return n > 0, nil
}

func (s *Store) Checkpoint(ctx context.Context) (mirror.SourceID, error) {
	var id int64
	err := s.db.QueryRow(ctx, `SELECT source_id FROM checkpoint WHERE name=$1`, checkpointName).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	} else if err != nil {
		return 0, mirror.WrapStoreError("read checkpoint", err)
	}
	return mirror.SourceID(id), nil
}

// AdvanceCheckpoint only ever moves the checkpoint forward, and never
// past a held source id.
func (s *Store) AdvanceCheckpoint(ctx context.Context, id mirror.SourceID) error {
	err := s.db.DoTxn(ctx, nil, func(ctx context.Context) error {
		var held sql.NullInt64
		err := s.db.QueryRow(ctx, `SELECT MIN(source_id) FROM checkpoint_holds`).Scan(&held)
		if err != nil {
			return err
		}
		target := int64(id)
		if held.Valid && held.Int64 <= target {
			target = held.Int64 - 1
		}
		if target <= 0 {
			return nil
		}
		_, err = s.db.Exec(ctx, `
			INSERT INTO checkpoint (name, source_id, updated_ms)
			VALUES ($1, $2, $3)
			ON CONFLICT (name) DO UPDATE SET
				source_id=excluded.source_id,
				updated_ms=excluded.updated_ms
			WHERE excluded.source_id > checkpoint.source_id
		`, checkpointName, target, time.Now().UnixMilli())
		return err
	})
	return mirror.WrapStoreError("advance checkpoint", err)
}

// HoldCheckpoint keeps the checkpoint below id until id is mapped or the
// hold is released. Ids at or below the current checkpoint are ignored.
func (s *Store) HoldCheckpoint(ctx context.Context, id mirror.SourceID) error {
	err := s.db.DoTxn(ctx, nil, func(ctx context.Context) error {
		var current int64
		err := s.db.QueryRow(ctx, `SELECT source_id FROM checkpoint WHERE name=$1`, checkpointName).Scan(&current)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		} else if int64(id) <= current {
			return nil
		}
		_, err = s.db.Exec(ctx, `
			INSERT INTO checkpoint_holds (source_id, created_ms) VALUES ($1, $2)
			ON CONFLICT (source_id) DO NOTHING
		`, int64(id), time.Now().UnixMilli())
		return err
	})
	return mirror.WrapStoreError("hold checkpoint", err)
}

// CheckpointHolds lists held source ids in ascending order.
func (s *Store) CheckpointHolds(ctx context.Context) ([]mirror.SourceID, error) {
	rows, err := s.db.Query(ctx, `SELECT source_id FROM checkpoint_holds ORDER BY source_id`)
	if err != nil {
		return nil, mirror.WrapStoreError("list checkpoint holds", err)
	}
	defer rows.Close()
	var ids []mirror.SourceID
	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			return nil, mirror.WrapStoreError("list checkpoint holds", err)
		}
		ids = append(ids, mirror.SourceID(id))
	}
	return ids, mirror.WrapStoreError("list checkpoint holds", rows.Err())
}

// ReleaseCheckpointHold gives up on replaying id. It reports whether a hold existed.
func (s *Store) ReleaseCheckpointHold(ctx context.Context, id mirror.SourceID) (bool, error) {
	res, err := s.db.Exec(ctx, `DELETE FROM checkpoint_holds WHERE source_id=$1`, int64(id))
	if err != nil {
		return false, mirror.WrapStoreError("release checkpoint hold", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mirror.WrapStoreError("release checkpoint hold", err)
	}
	return n > 0, nil
}

// SetCheckpoint overwrites the checkpoint unconditionally, ignoring holds.
// Used for administrative restores.
func (s *Store) SetCheckpoint(ctx context.Context, id mirror.SourceID) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO checkpoint (name, source_id, updated_ms)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET
			source_id=excluded.source_id,
			updated_ms=excluded.updated_ms
	`, checkpointName, int64(id), time.Now().UnixMilli())
	return mirror.WrapStoreError("set checkpoint", err)
}

func (s *Store) UnresolvedReplies(ctx context.Context, target mirror.SourceID) ([]mirror.SourceID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT source_id FROM reply_links
		WHERE reply_to_source=$1 AND reply_to_dest IS NULL
		ORDER BY source_id
	`, int64(target))
	if err != nil {
		return nil, mirror.WrapStoreError("list unresolved replies", err)
	}
	defer rows.Close()
	var ids []mirror.SourceID
	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			return nil, mirror.WrapStoreError("list unresolved replies", err)
		}
		ids = append(ids, mirror.SourceID(id))
	}
	return ids, mirror.WrapStoreError("list unresolved replies", rows.Err())
}

func (s *Store) AllUnresolvedReplies(ctx context.Context) ([]mirror.ReplyLink, error) {
	rows, err := s.db.Query(ctx, `
		SELECT source_id, reply_to_source FROM reply_links
		WHERE reply_to_dest IS NULL
		ORDER BY source_id
	`)
	if err != nil {
		return nil, mirror.WrapStoreError("list unresolved replies", err)
	}
	defer rows.Close()
	var links []mirror.ReplyLink
	for rows.Next() {
		var sourceID, replyTo int64
		if err = rows.Scan(&sourceID, &replyTo); err != nil {
			return nil, mirror.WrapStoreError("list unresolved replies", err)
		}
		links = append(links, mirror.ReplyLink{SourceID: mirror.SourceID(sourceID), ReplyToSource: mirror.SourceID(replyTo)})
	}
	return links, mirror.WrapStoreError("list unresolved replies", rows.Err())
}

// SetReplyDest fills in a missing reply anchor. Anchors that are already set are left alone.
func (s *Store) SetReplyDest(ctx context.Context, id mirror.SourceID, replyToDest mirror.DestID) error {
	if err := s.invalidate(ctx, id); err != nil {
		return mirror.WrapStoreError("set reply anchor", err)
	}
	err := s.setReplyDest(ctx, id, replyToDest)
	s.afterWrite(ctx, id)
	return mirror.WrapStoreError("set reply anchor", err)
}

func (s *Store) setReplyDest(ctx context.Context, id mirror.SourceID, replyToDest mirror.DestID) error {
	return s.db.DoTxn(ctx, nil, func(ctx context.Context) error {
		res, err := s.db.Exec(ctx, `
			UPDATE messages SET reply_to_dest=$2, updated_ms=$3
			WHERE source_id=$1 AND reply_to_dest IS NULL
		`, int64(id), int64(replyToDest), time.Now().UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to update reply anchor: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var count int
			if err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE source_id=$1`, int64(id)).Scan(&count); err != nil {
				return err
			} else if count == 0 {
				return mirror.ErrNotFound
			}
		}
		_, err = s.db.Exec(ctx, `
			UPDATE reply_links SET reply_to_dest=$2 WHERE source_id=$1 AND reply_to_dest IS NULL
		`, int64(id), int64(replyToDest))
		if err != nil {
			return fmt.Errorf("failed to update reply link: %w", err)
		}
		return nil
	})
}

// EditHistory returns a message's edits, oldest first.
func (s *Store) EditHistory(ctx context.Context, id mirror.SourceID) ([]mirror.EditEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT edited_ms, old_content, new_content, notification_dest_id
		FROM edit_history WHERE source_id=$1
		ORDER BY edited_ms, seq
	`, int64(id))
	if err != nil {
		return nil, mirror.WrapStoreError("edit history", err)
	}
	defer rows.Close()
	var events []mirror.EditEvent
	for rows.Next() {
		var editedMS int64
		var notif sql.NullInt64
		evt := mirror.EditEvent{SourceID: id}
		if err = rows.Scan(&editedMS, &evt.OldContent, &evt.NewContent, &notif); err != nil {
			return nil, mirror.WrapStoreError("edit history", err)
		}
		evt.EditedAt = time.UnixMilli(editedMS)
		evt.NotificationDestID = mirror.DestID(notif.Int64)
		events = append(events, evt)
	}
	return events, mirror.WrapStoreError("edit history", rows.Err())
}

// ReplyChain follows reply links from id towards the root and returns the
// chain oldest first. Links to messages that are not stored end the chain.
func (s *Store) ReplyChain(ctx context.Context, id mirror.SourceID, maxDepth int) ([]*mirror.MessageRecord, error) {
	var chain []*mirror.MessageRecord
	seen := make(map[mirror.SourceID]bool)
	for cur := id; cur != 0 && len(chain) < maxDepth && !seen[cur]; {
		rec, err := s.GetMessage(ctx, cur)
		if err != nil {
			return nil, err
		} else if rec == nil {
			break
		}
		seen[cur] = true
		chain = append(chain, rec)
		cur = rec.ReplyToSource
	}
	slices.Reverse(chain)
	return chain, nil
}

func (s *Store) Stats(ctx context.Context) (*mirror.Stats, error) {
	var st mirror.Stats
	err := s.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN sender='self' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN sender='peer' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_edited THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_deleted THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN has_media THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN was_self_destructing THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN reply_to_source IS NOT NULL AND reply_to_dest IS NULL THEN 1 ELSE 0 END), 0)
		FROM messages
	`).Scan(
		&st.TotalMessages, &st.SelfMessages, &st.PeerMessages, &st.EditedMessages,
		&st.DeletedMessages, &st.MediaMessages, &st.SelfDestructing, &st.UnresolvedReplies,
	)
	if err != nil {
		return nil, mirror.WrapStoreError("stats", err)
	}
	if err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM edit_history`).Scan(&st.EditEvents); err != nil {
		return nil, mirror.WrapStoreError("stats", err)
	}
	if st.LastProcessed, err = s.Checkpoint(ctx); err != nil {
		return nil, err
	}
	return &st, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableID(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
