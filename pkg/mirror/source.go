package mirror

import (
	"context"
	"iter"
	"time"
)

// MediaRef describes an attachment on a source message.
type MediaRef struct {
	Kind MediaKind
	// Handle is an opaque platform reference that the destination can reuse
	// without re-uploading. Empty when the media cannot be forwarded by reference.
	Handle       string
	Forwardable  bool
	Downloadable bool
	MimeType     string
	FileName     string
	// Description is a text rendering for media that has no file, such as
	// coordinates or a contact card.
	Description string
	// Raw is the platform-specific payload needed to download the attachment.
	Raw any
}

// MessageEvent is a new (or replayed) message in the source conversation.
type MessageEvent struct {
	ID                SourceID
	IsOutgoing        bool
	Text              string
	ReplyToID         SourceID
	Media             *MediaRef
	IsSelfDestructing bool
	IsForwarded       bool
	Date              time.Time
}

func (evt *MessageEvent) Origin() Origin {
	return OriginOf(evt.IsOutgoing)
}

// MessageEdit carries the current state of an edited message.
type MessageEdit struct {
	Message  *MessageEvent
	EditedAt time.Time
}

// MessageDelete lists source ids removed from the conversation.
type MessageDelete struct {
	IDs []SourceID
}

// Source is the user-account view of the mirrored conversation. A nil
// predicate passed to a Subscribe method accepts every event.
type Source interface {
	SubscribeNewMessages(pred func(*MessageEvent) bool) <-chan *MessageEvent
	SubscribeEdits(pred func(*MessageEdit) bool) <-chan *MessageEdit
	SubscribeDeletes(pred func(*MessageDelete) bool) <-chan *MessageDelete

	// FetchHistory yields messages with an id greater than minID, oldest first.
	FetchHistory(ctx context.Context, minID SourceID) iter.Seq2[*MessageEvent, error]
	// FetchRecent yields up to limit of the newest messages, newest first.
	FetchRecent(ctx context.Context, limit int) iter.Seq2[*MessageEvent, error]
	// DownloadAttachment saves the message's media under destPath and returns the written file path.
	DownloadAttachment(ctx context.Context, msg *MessageEvent, destPath string) (string, error)
}
