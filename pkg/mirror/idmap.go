package mirror

import (
	"context"
	"time"
)

// IdentifierMap is the durable mapping between source and destination message ids.
// All writes are durable before they return.
type IdentifierMap interface {
	// Put stores a new record. It returns ErrConflict if the source id is already mapped.
	Put(ctx context.Context, rec *MessageRecord) error
	// ResolveDestID returns the destination id for a source id, or false if it is unmapped.
	ResolveDestID(ctx context.Context, id SourceID) (DestID, bool, error)
	// MarkEdited appends an edit event made at editedAt (now if zero) and
	// replaces the stored content. It returns ErrNotFound if the source id is unmapped.
	MarkEdited(ctx context.Context, id SourceID, newContent string, notificationDestID DestID, editedAt time.Time) error
	// MarkDeleted flags the record as deleted. It returns false if no record exists.
	MarkDeleted(ctx context.Context, id SourceID) (bool, error)
	Exists(ctx context.Context, id SourceID) (bool, error)
}

// Store is the full durable store used by the engine and the catch-up reconciler.
type Store interface {
	IdentifierMap

	// GetMessage returns the stored record, or nil if the source id is unmapped.
	GetMessage(ctx context.Context, id SourceID) (*MessageRecord, error)

	// Checkpoint returns the highest source id that has been durably processed.
	Checkpoint(ctx context.Context) (SourceID, error)
	// AdvanceCheckpoint moves the checkpoint forward. Lower values are ignored,
	// and the checkpoint stays below the lowest held id.
	AdvanceCheckpoint(ctx context.Context, id SourceID) error
	// HoldCheckpoint keeps the checkpoint below id until Put maps it, so that
	// the next catch-up run retries it. Ids at or below the checkpoint are ignored.
	HoldCheckpoint(ctx context.Context, id SourceID) error
	// CheckpointHolds lists held ids, lowest first.
	CheckpointHolds(ctx context.Context) ([]SourceID, error)

	// UnresolvedReplies lists records that reply to target but have no destination anchor.
	UnresolvedReplies(ctx context.Context, target SourceID) ([]SourceID, error)
	// AllUnresolvedReplies lists every reply link without a destination anchor.
	AllUnresolvedReplies(ctx context.Context) ([]ReplyLink, error)
	// SetReplyDest fills in the destination anchor of a previously unresolved reply.
	SetReplyDest(ctx context.Context, id SourceID, replyToDest DestID) error
}

// HistoryStore exposes the read-only views used by the operator commands.
type HistoryStore interface {
	EditHistory(ctx context.Context, id SourceID) ([]EditEvent, error)
	ReplyChain(ctx context.Context, id SourceID, maxDepth int) ([]*MessageRecord, error)
	Stats(ctx context.Context) (*Stats, error)
	// SetCheckpoint overwrites the checkpoint, including moving it backwards.
	SetCheckpoint(ctx context.Context, id SourceID) error
	// ReleaseCheckpointHold drops a hold without mapping the message.
	ReleaseCheckpointHold(ctx context.Context, id SourceID) (bool, error)
}
