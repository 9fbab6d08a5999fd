package telegram

import (
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/mirror"
)

func partnerMessage(id int, text string) *tg.Message {
	return &tg.Message{ID: id, PeerID: &tg.PeerUser{UserID: 7}, Message: text, Date: 1700000000}
}

func documentMedia(ttl int, attrs ...tg.DocumentAttributeClass) *tg.MessageMediaDocument {
	m := &tg.MessageMediaDocument{}
	m.SetDocument(&tg.Document{ID: 1, AccessHash: 2, MimeType: "application/octet-stream", Attributes: attrs, Size: 1234})
	if ttl > 0 {
		m.SetTTLSeconds(ttl)
	}
	return m
}

func TestConvertMessageBasics(t *testing.T) {
	msg := partnerMessage(42, "hello")
	msg.Out = true
	reply := &tg.MessageReplyHeader{}
	reply.SetReplyToMsgID(40)
	msg.SetReplyTo(reply)
	msg.SetFwdFrom(tg.MessageFwdHeader{Date: 1})

	evt := convertMessage(msg)
	assert.Equal(t, mirror.SourceID(42), evt.ID)
	assert.Equal(t, mirror.OriginSelf, evt.Origin())
	assert.Equal(t, "hello", evt.Text)
	assert.Equal(t, mirror.SourceID(40), evt.ReplyToID)
	assert.True(t, evt.IsForwarded)
	assert.Nil(t, evt.Media)
	assert.Equal(t, int64(1700000000), evt.Date.Unix())
}

func TestConvertSelfDestructingPhoto(t *testing.T) {
	photoMedia := &tg.MessageMediaPhoto{}
	photoMedia.SetPhoto(&tg.Photo{
		ID:         9,
		AccessHash: 10,
		Sizes: []tg.PhotoSizeClass{
			&tg.PhotoStrippedSize{Type: "i"},
			&tg.PhotoSize{Type: "m", W: 320, H: 240, Size: 100},
			&tg.PhotoSize{Type: "y", W: 1280, H: 960, Size: 900},
			&tg.PhotoSize{Type: "x", W: 800, H: 600, Size: 500},
		},
	})
	photoMedia.SetTTLSeconds(10)
	msg := partnerMessage(1, "")
	msg.SetMedia(photoMedia)

	evt := convertMessage(msg)
	require.NotNil(t, evt.Media)
	assert.True(t, evt.IsSelfDestructing)
	assert.Equal(t, mirror.MediaPhoto, evt.Media.Kind)
	assert.True(t, evt.Media.Downloadable)
	assert.False(t, evt.Media.Forwardable)
	loc, ok := evt.Media.Raw.(*fileLocation)
	require.True(t, ok)
	assert.Equal(t, "y", loc.location.(*tg.InputPhotoFileLocation).ThumbSize)
	assert.Equal(t, int64(900), loc.size)
}

func TestClassifyDocuments(t *testing.T) {
	cases := []struct {
		name  string
		attrs []tg.DocumentAttributeClass
		kind  mirror.MediaKind
	}{
		{"plain", []tg.DocumentAttributeClass{&tg.DocumentAttributeFilename{FileName: "a.pdf"}}, mirror.MediaDocument},
		{"video", []tg.DocumentAttributeClass{&tg.DocumentAttributeVideo{W: 10, H: 10}}, mirror.MediaVideo},
		{"round", []tg.DocumentAttributeClass{&tg.DocumentAttributeVideo{RoundMessage: true}}, mirror.MediaVideoNote},
		{"voice", []tg.DocumentAttributeClass{&tg.DocumentAttributeAudio{Voice: true}}, mirror.MediaVoice},
		{"music", []tg.DocumentAttributeClass{&tg.DocumentAttributeAudio{Title: "song"}}, mirror.MediaAudio},
		{"gif", []tg.DocumentAttributeClass{&tg.DocumentAttributeVideo{}, &tg.DocumentAttributeAnimated{}}, mirror.MediaGIF},
		{"video sticker", []tg.DocumentAttributeClass{&tg.DocumentAttributeSticker{}, &tg.DocumentAttributeVideo{}}, mirror.MediaSticker},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := partnerMessage(3, "")
			msg.SetMedia(documentMedia(0, tc.attrs...))
			evt := convertMessage(msg)
			require.NotNil(t, evt.Media)
			assert.Equal(t, tc.kind, evt.Media.Kind)
			assert.False(t, evt.IsSelfDestructing)
		})
	}
}

func TestConvertDocumentKeepsFileName(t *testing.T) {
	msg := partnerMessage(4, "report")
	msg.SetMedia(documentMedia(5, &tg.DocumentAttributeFilename{FileName: "report.pdf"}))
	evt := convertMessage(msg)
	assert.True(t, evt.IsSelfDestructing)
	assert.Equal(t, "report.pdf", evt.Media.FileName)
	assert.Equal(t, ".pdf", attachmentExtension(evt.Media))
}

func TestConvertTextOnlyMedia(t *testing.T) {
	geo := partnerMessage(5, "")
	geo.SetMedia(&tg.MessageMediaGeo{Geo: &tg.GeoPoint{Lat: 48.8584, Long: 2.2945}})
	evt := convertMessage(geo)
	assert.Equal(t, mirror.MediaLocation, evt.Media.Kind)
	assert.Equal(t, "48.858400, 2.294500", evt.Media.Description)
	assert.False(t, evt.Media.Downloadable)

	contact := partnerMessage(6, "")
	contact.SetMedia(&tg.MessageMediaContact{FirstName: "Ada", LastName: "Lovelace", PhoneNumber: "+100"})
	evt = convertMessage(contact)
	assert.Equal(t, mirror.MediaContact, evt.Media.Kind)
	assert.Equal(t, "Ada Lovelace +100", evt.Media.Description)

	link := partnerMessage(7, "https://example.com")
	link.SetMedia(&tg.MessageMediaWebPage{Webpage: &tg.WebPageEmpty{}})
	assert.Nil(t, convertMessage(link).Media)
}

func TestIsPartnerPeer(t *testing.T) {
	assert.True(t, isPartnerPeer(&tg.PeerUser{UserID: 7}, 7))
	assert.False(t, isPartnerPeer(&tg.PeerUser{UserID: 8}, 7))
	assert.False(t, isPartnerPeer(&tg.PeerChat{ChatID: 7}, 7))
}
