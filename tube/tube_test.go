package tube

import (
	"testing"

	"github.com/kkdai/youtube/v2"
	"github.com/stretchr/testify/assert"

	"github.com/ulugbekdev/savetube"
)

func TestExtractVideoID(t *testing.T) {
	assert := assert.New(t)

	for _, tc := range []struct {
		url string
		id  string
	}{
		{"https://www.youtube.com/watch?v=AbCdEfGhIjK", "AbCdEfGhIjK"},
		{"https://m.youtube.com/watch?v=AbCdEfGhIjK", "AbCdEfGhIjK"},
		{"https://youtube.com/shorts/AbCdEfGhIjK", "AbCdEfGhIjK"},
		{"https://www.youtube.com/shorts/AbCdEfGhIjK?feature=share", "AbCdEfGhIjK"},
		{"https://youtu.be/AbCdEfGhIjK", "AbCdEfGhIjK"},
		{"https://www.youtube.com/v/AbCdEfGhIjK", "AbCdEfGhIjK"},
		{"https://www.youtube.com/embed/AbCdEfGhIjK", "AbCdEfGhIjK"},
		{"https://www.youtube.com/live/AbCdEfGhIjK", "AbCdEfGhIjK"},
	} {
		id, err := ExtractVideoID(tc.url)
		assert.NoError(err, tc.url)
		assert.Equal(tc.id, id, tc.url)
	}

	for _, bad := range []string{
		"https://example.com/watch?v=AbCdEfGhIjK",
		"https://www.youtube.com/watch",
		"https://www.youtube.com/shorts/short",
		"https://youtu.be/",
		"not a url at all ://",
	} {
		_, err := ExtractVideoID(bad)
		assert.Error(err, bad)
	}
}

func TestValidVideoID(t *testing.T) {
	assert := assert.New(t)
	assert.True(ValidVideoID("AbCdEfGhIjK"))
	assert.True(ValidVideoID("a-b_c-d_e-f"))
	assert.False(ValidVideoID("short"))
	assert.False(ValidVideoID("way too long to be an id"))
	assert.False(ValidVideoID("has space!!"))
}

func fmtVideo(mime string, height, audioChannels, bitrate int) youtube.Format {
	return youtube.Format{
		MimeType:      mime,
		Height:        height,
		AudioChannels: audioChannels,
		Bitrate:       bitrate,
	}
}

func TestPickVideoFormatPrefersProgressive(t *testing.T) {
	assert := assert.New(t)
	formats := []youtube.Format{
		fmtVideo("video/mp4; codecs=\"avc1\"", 1080, 0, 0),
		fmtVideo("video/mp4; codecs=\"avc1\"", 360, 2, 0),
		fmtVideo("video/mp4; codecs=\"avc1\"", 720, 2, 0),
		fmtVideo("video/webm; codecs=\"vp9\"", 2160, 2, 0),
	}
	format, err := pickVideoFormat(formats)
	assert.NoError(err)
	assert.Equal(720, format.Height)
	assert.Equal(2, format.AudioChannels)
}

func TestPickVideoFormatAdaptiveFallback(t *testing.T) {
	assert := assert.New(t)
	// No progressive stream at all: highest adaptive video-only mp4 wins.
	formats := []youtube.Format{
		fmtVideo("video/mp4; codecs=\"avc1\"", 720, 0, 0),
		fmtVideo("video/mp4; codecs=\"avc1\"", 1080, 0, 0),
	}
	format, err := pickVideoFormat(formats)
	assert.NoError(err)
	assert.Equal(1080, format.Height)
	assert.Zero(format.AudioChannels)
}

func TestPickVideoFormatNotFound(t *testing.T) {
	assert := assert.New(t)
	_, err := pickVideoFormat([]youtube.Format{
		fmtVideo("video/webm; codecs=\"vp9\"", 1080, 0, 0),
	})
	assert.ErrorIs(err, savetube.ErrNotFound)
}

func TestPickAudioFormat(t *testing.T) {
	assert := assert.New(t)
	formats := []youtube.Format{
		fmtVideo("audio/mp4; codecs=\"mp4a\"", 0, 2, 128000),
		fmtVideo("audio/webm; codecs=\"opus\"", 0, 2, 160000),
		fmtVideo("video/mp4; codecs=\"avc1\"", 720, 2, 0),
	}
	format, err := pickAudioFormat(formats)
	assert.NoError(err)
	assert.Equal(160000, format.Bitrate)

	_, err = pickAudioFormat(formats[2:])
	assert.ErrorIs(err, savetube.ErrNotFound)
}
