// dmmirror - A direct-message to backup-group chat mirror.
// Copyright (C) 2026 The dmmirror Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package mirror

import (
	"strconv"
	"time"
	"unicode/utf8"
)

// SourceID is a message identifier in the mirrored conversation.
// Source ids are assigned by the platform and increase monotonically.
type SourceID int64

// DestID is a message identifier in the backup group. Zero means unset.
type DestID int64

func (id SourceID) String() string { return strconv.FormatInt(int64(id), 10) }
func (id DestID) String() string   { return strconv.FormatInt(int64(id), 10) }

// Origin identifies which participant authored a message.
type Origin string

const (
	OriginSelf   Origin = "self"
	OriginPeer   Origin = "peer"
	OriginSystem Origin = "system"
)

func (o Origin) Valid() bool {
	return o == OriginSelf || o == OriginPeer || o == OriginSystem
}

// OriginOf maps the platform's outgoing flag to an origin.
func OriginOf(isOutgoing bool) Origin {
	if isOutgoing {
		return OriginSelf
	}
	return OriginPeer
}

type MediaKind string

const (
	MediaNone      MediaKind = "none"
	MediaPhoto     MediaKind = "photo"
	MediaVideo     MediaKind = "video"
	MediaDocument  MediaKind = "document"
	MediaVoice     MediaKind = "voice"
	MediaVideoNote MediaKind = "video_note"
	MediaSticker   MediaKind = "sticker"
	MediaGIF       MediaKind = "gif"
	MediaAudio     MediaKind = "audio"
	MediaContact   MediaKind = "contact"
	MediaLocation  MediaKind = "location"
	MediaPoll      MediaKind = "poll"
	MediaOther     MediaKind = "other"
)

// Label is the placeholder text used when a media item cannot be sent as a file.
func (k MediaKind) Label() string {
	switch k {
	case MediaPhoto:
		return "[Photo]"
	case MediaVideo:
		return "[Video]"
	case MediaDocument:
		return "[Document]"
	case MediaVoice:
		return "[Voice message]"
	case MediaVideoNote:
		return "[Video message]"
	case MediaSticker:
		return "[Sticker]"
	case MediaGIF:
		return "[GIF]"
	case MediaAudio:
		return "[Audio]"
	case MediaContact:
		return "[Contact]"
	case MediaLocation:
		return "[Location]"
	case MediaPoll:
		return "[Poll]"
	default:
		return "[Media]"
	}
}

// MaxContentLength is the longest content stored or sent, in characters.
const MaxContentLength = 4096

const truncationSuffix = "..."

// TruncateContent cuts text longer than MaxContentLength characters to
// MaxContentLength-3 characters followed by "...".
func TruncateContent(text string) string {
	if utf8.RuneCountInString(text) <= MaxContentLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:MaxContentLength-len(truncationSuffix)]) + truncationSuffix
}

// MessageRecord is the durable record of one mirrored message.
type MessageRecord struct {
	SourceID  SourceID
	DestID    DestID
	Sender    Origin
	Content   string
	CreatedAt time.Time

	HasMedia  bool
	MediaKind MediaKind
	// MediaPath is only set for self-destructing media kept in stable storage.
	MediaPath string

	ReplyToSource SourceID
	ReplyToDest   DestID

	IsForwarded        bool
	IsEdited           bool
	IsDeleted          bool
	WasSelfDestructing bool
}

// State is the reconciliation state of a source message.
type State int

const (
	StateUnseen State = iota
	StateMapped
	StateEdited
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateMapped:
		return "mapped"
	case StateEdited:
		return "edited"
	case StateDeleted:
		return "deleted"
	default:
		return "unseen"
	}
}

// StateOf derives the reconciliation state from a stored record. A nil record is unseen.
func StateOf(rec *MessageRecord) State {
	switch {
	case rec == nil:
		return StateUnseen
	case rec.IsDeleted:
		return StateDeleted
	case rec.IsEdited:
		return StateEdited
	default:
		return StateMapped
	}
}

// EditEvent is one entry in a message's append-only edit history.
type EditEvent struct {
	SourceID           SourceID
	EditedAt           time.Time
	OldContent         string
	NewContent         string
	NotificationDestID DestID
}

// ReplyLink records that SourceID was sent as a reply to ReplyToSource.
type ReplyLink struct {
	SourceID      SourceID
	ReplyToSource SourceID
	ReplyToDest   DestID
}

// Stats summarizes the durable store.
type Stats struct {
	TotalMessages     int
	SelfMessages      int
	PeerMessages      int
	EditedMessages    int
	DeletedMessages   int
	MediaMessages     int
	SelfDestructing   int
	EditEvents        int
	UnresolvedReplies int
	LastProcessed     SourceID
}
