package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gotd/td/tg"

	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/mirror"
)

// fileLocation is stored in MediaRef.Raw for media that can be downloaded.
type fileLocation struct {
	location tg.InputFileLocationClass
	size     int64
}

func isPartnerPeer(peer tg.PeerClass, partnerID int64) bool {
	user, ok := peer.(*tg.PeerUser)
	return ok && user.UserID == partnerID
}

func convertMessage(msg *tg.Message) *mirror.MessageEvent {
	evt := &mirror.MessageEvent{
		ID:         mirror.SourceID(msg.ID),
		IsOutgoing: msg.Out,
		Text:       msg.Message,
		Date:       time.Unix(int64(msg.Date), 0),
	}
	if header, ok := msg.GetReplyTo(); ok {
		if reply, ok := header.(*tg.MessageReplyHeader); ok {
			if replyTo, ok := reply.GetReplyToMsgID(); ok {
				evt.ReplyToID = mirror.SourceID(replyTo)
			}
		}
	}
	_, evt.IsForwarded = msg.GetFwdFrom()
	if media, ok := msg.GetMedia(); ok {
		evt.Media, evt.IsSelfDestructing = convertMedia(media)
	}
	return evt
}

func convertMedia(media tg.MessageMediaClass) (*mirror.MediaRef, bool) {
	switch m := media.(type) {
	case *tg.MessageMediaPhoto:
		ttl, _ := m.GetTTLSeconds()
		ref := &mirror.MediaRef{Kind: mirror.MediaPhoto, MimeType: "image/jpeg"}
		if photoClass, ok := m.GetPhoto(); ok {
			if photo, ok := photoClass.(*tg.Photo); ok {
				ref.Downloadable = true
				ref.Raw = photoLocation(photo)
			}
		}
		return ref, ttl > 0
	case *tg.MessageMediaDocument:
		ttl, _ := m.GetTTLSeconds()
		ref := &mirror.MediaRef{Kind: mirror.MediaDocument}
		if docClass, ok := m.GetDocument(); ok {
			if doc, ok := docClass.(*tg.Document); ok {
				ref.Kind, ref.FileName = classifyDocument(doc)
				ref.MimeType = doc.MimeType
				ref.Downloadable = true
				ref.Raw = &fileLocation{
					location: &tg.InputDocumentFileLocation{
						ID:            doc.ID,
						AccessHash:    doc.AccessHash,
						FileReference: doc.FileReference,
					},
					size: doc.Size,
				}
			}
		}
		return ref, ttl > 0
	case *tg.MessageMediaGeo:
		return &mirror.MediaRef{Kind: mirror.MediaLocation, Description: describeGeo(m.Geo)}, false
	case *tg.MessageMediaGeoLive:
		return &mirror.MediaRef{Kind: mirror.MediaLocation, Description: describeGeo(m.Geo)}, false
	case *tg.MessageMediaVenue:
		desc := strings.TrimSpace(m.Title + ", " + m.Address)
		if geo := describeGeo(m.Geo); geo != "" {
			desc += " (" + geo + ")"
		}
		return &mirror.MediaRef{Kind: mirror.MediaLocation, Description: strings.Trim(desc, ", ")}, false
	case *tg.MessageMediaContact:
		name := strings.TrimSpace(m.FirstName + " " + m.LastName)
		return &mirror.MediaRef{Kind: mirror.MediaContact, Description: strings.TrimSpace(name + " " + m.PhoneNumber)}, false
	case *tg.MessageMediaPoll:
		return &mirror.MediaRef{Kind: mirror.MediaPoll}, false
	case *tg.MessageMediaDice:
		return &mirror.MediaRef{Kind: mirror.MediaOther, Description: m.Emoticon + " " + strconv.Itoa(m.Value)}, false
	case *tg.MessageMediaWebPage, *tg.MessageMediaEmpty:
		// The link is already part of the text.
		return nil, false
	default:
		return &mirror.MediaRef{Kind: mirror.MediaOther}, false
	}
}

func photoLocation(photo *tg.Photo) *fileLocation {
	var bestType string
	var bestArea, bestSize int
	for _, size := range photo.Sizes {
		var w, h, bytes int
		switch s := size.(type) {
		case *tg.PhotoSize:
			w, h, bytes = s.W, s.H, s.Size
		case *tg.PhotoSizeProgressive:
			w, h = s.W, s.H
			if len(s.Sizes) > 0 {
				bytes = s.Sizes[len(s.Sizes)-1]
			}
		default:
			continue
		}
		if w*h >= bestArea {
			bestType, bestArea, bestSize = size.GetType(), w*h, bytes
		}
	}
	return &fileLocation{
		location: &tg.InputPhotoFileLocation{
			ID:            photo.ID,
			AccessHash:    photo.AccessHash,
			FileReference: photo.FileReference,
			ThumbSize:     bestType,
		},
		size: int64(bestSize),
	}
}

func classifyDocument(doc *tg.Document) (kind mirror.MediaKind, fileName string) {
	kind = mirror.MediaDocument
	var animated bool
	for _, attr := range doc.Attributes {
		switch a := attr.(type) {
		case *tg.DocumentAttributeFilename:
			fileName = a.FileName
		case *tg.DocumentAttributeSticker:
			kind = mirror.MediaSticker
		case *tg.DocumentAttributeAnimated:
			animated = true
		case *tg.DocumentAttributeVideo:
			if kind == mirror.MediaSticker {
				continue
			} else if a.RoundMessage {
				kind = mirror.MediaVideoNote
			} else {
				kind = mirror.MediaVideo
			}
		case *tg.DocumentAttributeAudio:
			if a.Voice {
				kind = mirror.MediaVoice
			} else {
				kind = mirror.MediaAudio
			}
		}
	}
	if animated && kind != mirror.MediaSticker {
		kind = mirror.MediaGIF
	}
	return
}

func describeGeo(point tg.GeoPointClass) string {
	geo, ok := point.(*tg.GeoPoint)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%.6f, %.6f", geo.Lat, geo.Long)
}
