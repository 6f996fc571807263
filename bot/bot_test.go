package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ulugbekdev/savetube"
	"github.com/ulugbekdev/savetube/internal/sync_"
	"github.com/ulugbekdev/savetube/recognize"
)

type fakeClient struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
}

func (f *fakeClient) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeClient) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeClient) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return nil }

func (f *fakeClient) StopReceivingUpdates() {}

func TestExtractLink(t *testing.T) {
	assert := assert.New(t)

	link, ok := ExtractLink("check this out https://youtube.com/shorts/dQw4w9WgXcQ so good")
	assert.True(ok)
	assert.Equal("https://youtube.com/shorts/dQw4w9WgXcQ", link)

	link, ok = ExtractLink("https://youtu.be/dQw4w9WgXcQ")
	assert.True(ok)
	assert.Equal("https://youtu.be/dQw4w9WgXcQ", link)

	// Non-video links in the text are skipped, not mistaken for the target.
	link, ok = ExtractLink("via https://example.com then https://m.youtube.com/watch?v=dQw4w9WgXcQ")
	assert.True(ok)
	assert.Equal("https://m.youtube.com/watch?v=dQw4w9WgXcQ", link)

	_, ok = ExtractLink("no links here")
	assert.False(ok)

	_, ok = ExtractLink("https://example.com/watch?v=dQw4w9WgXcQ")
	assert.False(ok)
}

func TestUserMessage(t *testing.T) {
	assert := assert.New(t)

	timeout := UserMessage(savetube.ErrTimeout)
	restricted := UserMessage(&savetube.RestrictionError{Signature: "sign in to confirm", Cause: errors.New("x")})
	noMatch := UserMessage(fmt.Errorf("recognition: %w", recognize.ErrNoMatch))
	notFound := UserMessage(fmt.Errorf("wrapped: %w", savetube.ErrNotFound))
	generic := UserMessage(errors.New("disk full"))

	// Every class gets its own message, and none of them leak internals.
	distinct := map[string]bool{timeout: true, restricted: true, noMatch: true, notFound: true, generic: true}
	assert.Len(distinct, 5)
	for msg := range distinct {
		assert.NotContains(msg, "error")
		assert.NotEmpty(msg)
	}
}

func TestFindMusicCallbackWithoutRecognizer(t *testing.T) {
	assert := assert.New(t)
	api := &fakeClient{}
	b := &Bot{
		api:       api,
		delivered: sync_.NewMutexed(make(map[int64]string)),
		log:       zap.S().Named("bot"),
	}
	// A video was delivered this run, but recognition is disabled; the
	// button may still exist from an older deployment's message.
	b.delivered.Locked(func(m map[int64]string) error {
		m[7] = "clip.mp4"
		return nil
	})

	cb := &tgbotapi.CallbackQuery{
		ID:      "cb1",
		Data:    callbackFindMusic,
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 7}},
	}
	assert.NotPanics(func() { b.handleCallback(context.Background(), cb) })

	require.Len(t, api.sent, 1)
	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.NotEmpty(msg.Text)
}

func TestUserMessageExhaustionPrefersPrimary(t *testing.T) {
	assert := assert.New(t)
	err := &savetube.ExhaustionError{
		Primary:  &savetube.RestrictionError{Signature: "botdetection", Cause: errors.New("x")},
		Fallback: errors.New("stream fetch failed"),
	}
	assert.Equal(UserMessage(savetube.ErrRestricted), UserMessage(err))
}
