package telegram

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/config"
	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/media"
	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/mirror"
)

const (
	// MaxCaptionLength is the Bot API limit for media captions.
	MaxCaptionLength = 1024
	// photoSizeLimit is the largest file the Bot API accepts as a photo.
	photoSizeLimit = 10 << 20
)

type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetChatMember(cfg tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// Thumbnailer renders a preview image for documents.
type Thumbnailer interface {
	Thumbnail(path string) (string, error)
}

// Bot is a Bot API account posting into the destination group.
type Bot struct {
	api    botAPI
	userID int64
	chatID int64
	name   string
	thumbs Thumbnailer
	log    zerolog.Logger
}

var _ mirror.Identity = (*Bot)(nil)

func NewBot(cfg config.BotConfig, chatID int64, thumbs Thumbnailer, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, &http.Client{Timeout: 2 * time.Minute})
	if err != nil {
		return nil, botError("log in bot "+cfg.DisplayName, err)
	}
	bot := newBot(api, api.Self.ID, cfg.DisplayName, chatID, thumbs, log)
	bot.log.Info().Str("username", api.Self.UserName).Msg("Bot logged in")
	return bot, nil
}

func newBot(api botAPI, userID int64, name string, chatID int64, thumbs Thumbnailer, log zerolog.Logger) *Bot {
	return &Bot{
		api:    api,
		userID: userID,
		chatID: chatID,
		name:   name,
		thumbs: thumbs,
		log:    log.With().Str("component", "bot").Str("bot", name).Logger(),
	}
}

func (b *Bot) Name() string {
	return b.name
}

// VerifyMembership checks that the bot can post in the destination group.
func (b *Bot) VerifyMembership(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: b.chatID, UserID: b.userID},
	})
	if err != nil {
		return &mirror.ConfigurationError{Problems: []string{
			fmt.Sprintf("bot %s cannot access group %d: %v", b.name, b.chatID, err),
		}}
	}
	if member.HasLeft() || member.WasKicked() {
		return &mirror.ConfigurationError{Problems: []string{
			fmt.Sprintf("bot %s is not a member of group %d (status %s)", b.name, b.chatID, member.Status),
		}}
	}
	return nil
}

func (b *Bot) send(ctx context.Context, op string, msg tgbotapi.Chattable) (mirror.DestID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, botError(op, err)
	}
	return mirror.DestID(sent.MessageID), nil
}

func (b *Bot) baseChat(replyTo mirror.DestID) tgbotapi.BaseChat {
	return tgbotapi.BaseChat{
		ChatID:                   b.chatID,
		ReplyToMessageID:         int(replyTo),
		AllowSendingWithoutReply: true,
	}
}

func (b *Bot) SendText(ctx context.Context, body string, replyTo mirror.DestID) (mirror.DestID, error) {
	msg := tgbotapi.NewMessage(b.chatID, mirror.TruncateContent(body))
	msg.BaseChat = b.baseChat(replyTo)
	msg.DisableWebPagePreview = true
	return b.send(ctx, "send text", msg)
}

// SendFile uploads a local file, choosing the Bot API method from its content.
func (b *Bot) SendFile(ctx context.Context, path, caption string, replyTo mirror.DestID) (mirror.DestID, error) {
	_, kind, err := media.DetectKind(path)
	if err != nil {
		return 0, &mirror.TransportError{Op: "send file", Permanent: true, Err: err}
	}
	if kind == mirror.MediaPhoto {
		if info, err := os.Stat(path); err == nil && info.Size() > photoSizeLimit {
			kind = mirror.MediaDocument
		}
	}
	var thumb tgbotapi.RequestFileData
	if kind == mirror.MediaDocument && b.thumbs != nil {
		if thumbPath, err := b.thumbs.Thumbnail(path); err == nil {
			defer os.Remove(thumbPath)
			thumb = tgbotapi.FilePath(thumbPath)
		}
	}
	return b.send(ctx, "send "+string(kind), b.mediaMessage(kind, tgbotapi.FilePath(path), thumb, caption, replyTo))
}

// SendMediaReference sends media by a Bot API file id or URL without uploading it again.
func (b *Bot) SendMediaReference(ctx context.Context, ref *mirror.MediaRef, caption string, replyTo mirror.DestID) (mirror.DestID, error) {
	if ref == nil || ref.Handle == "" {
		return 0, &mirror.TransportError{Op: "send media reference", Permanent: true, Err: fmt.Errorf("media has no reusable handle")}
	}
	var file tgbotapi.RequestFileData = tgbotapi.FileID(ref.Handle)
	return b.send(ctx, "send "+string(ref.Kind)+" reference", b.mediaMessage(ref.Kind, file, nil, caption, replyTo))
}

func (b *Bot) mediaMessage(kind mirror.MediaKind, file, thumb tgbotapi.RequestFileData, caption string, replyTo mirror.DestID) tgbotapi.Chattable {
	caption = truncateCaption(caption)
	base := b.baseChat(replyTo)
	switch kind {
	case mirror.MediaPhoto:
		msg := tgbotapi.NewPhoto(b.chatID, file)
		msg.BaseChat, msg.Caption = base, caption
		return msg
	case mirror.MediaVideo:
		msg := tgbotapi.NewVideo(b.chatID, file)
		msg.BaseChat, msg.Caption = base, caption
		msg.SupportsStreaming = true
		return msg
	case mirror.MediaGIF:
		msg := tgbotapi.NewAnimation(b.chatID, file)
		msg.BaseChat, msg.Caption = base, caption
		return msg
	case mirror.MediaVoice:
		msg := tgbotapi.NewVoice(b.chatID, file)
		msg.BaseChat, msg.Caption = base, caption
		return msg
	case mirror.MediaAudio:
		msg := tgbotapi.NewAudio(b.chatID, file)
		msg.BaseChat, msg.Caption = base, caption
		return msg
	case mirror.MediaVideoNote:
		if caption == "" {
			msg := tgbotapi.NewVideoNote(b.chatID, 0, file)
			msg.BaseChat = base
			return msg
		}
		msg := tgbotapi.NewVideo(b.chatID, file)
		msg.BaseChat, msg.Caption = base, caption
		return msg
	case mirror.MediaSticker:
		// Stickers cannot carry a caption.
		if caption == "" {
			msg := tgbotapi.NewSticker(b.chatID, file)
			msg.BaseChat = base
			return msg
		}
		fallthrough
	default:
		msg := tgbotapi.NewDocument(b.chatID, file)
		msg.BaseChat, msg.Caption = base, caption
		msg.Thumb = thumb
		return msg
	}
}

func truncateCaption(caption string) string {
	runes := []rune(caption)
	if len(runes) <= MaxCaptionLength {
		return caption
	}
	return string(runes[:MaxCaptionLength-3]) + "..."
}
