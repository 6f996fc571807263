// Package bot is the Telegram chat surface of the acquisition engine. It
// turns messages carrying YouTube links into streamed video replies, /audio
// queries into audio replies, and wires the find-music callback through
// recognition back into audio acquisition.
package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ulugbekdev/savetube"
	"github.com/ulugbekdev/savetube/engine"
	"github.com/ulugbekdev/savetube/internal/sync_"
	"github.com/ulugbekdev/savetube/normalize"
	"github.com/ulugbekdev/savetube/recognize"
)

const (
	callbackFindMusic = "find_music"

	helpText = "Send me a YouTube link (videos and shorts both work) and I'll " +
		"reply with the video. Use /audio <song name> to get music directly."
)

// client is the slice of the Telegram API the bot uses, satisfied by
// *tgbotapi.BotAPI.
type client interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Bot struct {
	api        client
	username   string
	engine     *engine.Engine
	normalizer *normalize.Normalizer
	// recognizer may be nil, which disables the find-music button.
	recognizer recognize.Recognizer
	// delivered maps chat id to the path of the last video sent there, so
	// the find-music callback knows what to sample. One slot per chat is
	// enough: the button belongs to the most recent reply.
	delivered *sync_.Mutexed[map[int64]string]
	log       *zap.SugaredLogger
}

func New(token string, eng *engine.Engine, normalizer *normalize.Normalizer, recognizer recognize.Recognizer) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	return &Bot{
		api:        api,
		username:   api.Self.UserName,
		engine:     eng,
		normalizer: normalizer,
		recognizer: recognizer,
		delivered:  sync_.NewMutexed(make(map[int64]string)),
		log:        zap.S().Named("bot"),
	}, nil
}

// Run consumes the update stream until the context is cancelled. Each update
// is handled on its own goroutine; the engine's worker pool bounds the real
// concurrency underneath.
func (b *Bot) Run(ctx context.Context) error {
	b.log.Infow("bot online", "username", b.username)
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handle(ctx, update)
		}
	}
}

func (b *Bot) handle(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	switch {
	case msg.Command() == "start" || msg.Command() == "help":
		b.reply(msg.Chat.ID, helpText)
	case msg.Command() == "audio":
		b.serveAudio(ctx, msg.Chat.ID, msg.CommandArguments())
	default:
		if link, ok := ExtractLink(msg.Text); ok {
			b.serveVideo(ctx, msg.Chat.ID, link)
			return
		}
		b.reply(msg.Chat.ID, helpText)
	}
}

func (b *Bot) serveVideo(ctx context.Context, chatID int64, link string) {
	b.chatAction(chatID, tgbotapi.ChatUploadVideo)
	media, err := b.engine.FetchVideoByURL(ctx, link)
	if err != nil {
		b.log.Errorw("video acquisition failed", "chat", chatID, "link", link, "error", err)
		b.reply(chatID, UserMessage(err))
		return
	}

	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(media.Path))
	video.SupportsStreaming = true
	video.Duration = int(media.Duration.Seconds())
	if b.recognizer != nil {
		video.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Find the music", callbackFindMusic),
			),
		)
	}
	if _, err := b.api.Send(video); err != nil {
		b.log.Errorw("failed to send video", "chat", chatID, "error", err)
		b.reply(chatID, UserMessage(err))
		return
	}
	b.delivered.Locked(func(m map[int64]string) error {
		m[chatID] = media.Path
		return nil
	})
}

func (b *Bot) serveAudio(ctx context.Context, chatID int64, query string) {
	if query == "" {
		b.reply(chatID, "Usage: /audio <song name>")
		return
	}
	b.chatAction(chatID, tgbotapi.ChatUploadDocument)
	media, err := b.engine.FetchAudioByQuery(ctx, query)
	if err != nil {
		b.log.Errorw("audio acquisition failed", "chat", chatID, "query", query, "error", err)
		b.reply(chatID, UserMessage(err))
		return
	}
	audio := tgbotapi.NewAudio(chatID, tgbotapi.FilePath(media.Path))
	audio.Duration = int(media.Duration.Seconds())
	if _, err := b.api.Send(audio); err != nil {
		b.log.Errorw("failed to send audio", "chat", chatID, "error", err)
		b.reply(chatID, UserMessage(err))
	}
}

// handleCallback runs the find-music flow: sample the delivered video's
// audio track, recognize it, then acquire the full song by query.
func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Data != callbackFindMusic || cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	b.api.Request(tgbotapi.NewCallback(cb.ID, "Listening..."))

	// Buttons outlive deployments in chat history; this run may not have a
	// recognizer at all.
	if b.recognizer == nil {
		b.reply(chatID, "Music recognition isn't available right now.")
		return
	}

	var path string
	b.delivered.Locked(func(m map[int64]string) error {
		path = m[chatID]
		return nil
	})
	if path == "" {
		b.reply(chatID, "I no longer have that video around. Send the link again.")
		return
	}

	sample, err := b.normalizer.ExtractAudio(ctx, path)
	if err != nil {
		b.log.Errorw("audio sampling failed", "chat", chatID, "path", path, "error", err)
		b.reply(chatID, UserMessage(err))
		return
	}
	track, err := b.recognizer.Recognize(ctx, sample)
	if err != nil {
		b.log.Warnw("recognition failed", "chat", chatID, "error", err)
		b.reply(chatID, UserMessage(err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Found it: %s. Fetching...", track))
	b.serveAudio(ctx, chatID, track.Query())
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Warnw("failed to send message", "chat", chatID, "error", err)
	}
}

func (b *Bot) chatAction(chatID int64, action string) {
	b.api.Request(tgbotapi.NewChatAction(chatID, action))
}

// UserMessage maps a pipeline error onto a reply a non-technical user can
// act on. The full error has already been logged by the time this runs.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, savetube.ErrTimeout):
		return "That one took too long to fetch. Try again in a bit, it often works the second time."
	case errors.Is(err, savetube.ErrRestricted):
		return "The platform refused this download right now. Try again later."
	case errors.Is(err, recognize.ErrNoMatch):
		return "I listened but couldn't recognize the music in this one."
	case errors.Is(err, savetube.ErrNotFound):
		return "I couldn't find a downloadable version of that."
	default:
		return "Something went wrong while fetching that. Try again later."
	}
}
