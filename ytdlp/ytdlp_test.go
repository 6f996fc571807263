package ytdlp

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigArgs(t *testing.T) {
	assert := assert.New(t)
	cfg := Config{
		OutputTemplate:  "/media/%(id)s.%(ext)s",
		Format:          "bv*[height<=1080]+ba/b",
		NoPlaylist:      true,
		GeoBypass:       true,
		SocketTimeout:   15 * time.Second,
		Retries:         3,
		FragmentRetries: 3,
		CookieFile:      "/cookies/main.txt",
		PlayerClients:   []string{"web", "mweb"},
		MergeFormat:     "mp4",
	}
	args := strings.Join(cfg.Args(), " ")
	assert.Contains(args, "--no-playlist")
	assert.Contains(args, "--geo-bypass")
	assert.Contains(args, "--socket-timeout 15")
	assert.Contains(args, "--retries 3")
	assert.Contains(args, "--fragment-retries 3")
	assert.Contains(args, "-o /media/%(id)s.%(ext)s")
	assert.Contains(args, "-f bv*[height<=1080]+ba/b")
	assert.Contains(args, "--merge-output-format mp4")
	assert.Contains(args, "--cookies /cookies/main.txt")
	assert.Contains(args, "--extractor-args youtube:player_client=web,mweb")
	assert.NotContains(args, "-x")
}

func TestConfigArgsAudio(t *testing.T) {
	assert := assert.New(t)
	cfg := Config{
		ExtractAudio: true,
		AudioFormat:  "mp3",
		AudioQuality: "192",
	}
	args := strings.Join(cfg.Args(), " ")
	assert.Contains(args, "-x")
	assert.Contains(args, "--audio-format mp3")
	assert.Contains(args, "--audio-quality 192")
	// Anonymous attempts never pass a cookie jar.
	assert.NotContains(args, "--cookies")
}

func TestClassify(t *testing.T) {
	assert := assert.New(t)

	for _, tc := range []struct {
		output string
		class  Class
	}{
		{"ERROR: Requested format is not available", ClassNotFound},
		{"ERROR: [youtube] abc: Sign in to confirm you're not a bot", ClassRestricted},
		{"ERROR: This video is not available on this app", ClassRestricted},
		{"ERROR: [youtube] BotDetection triggered", ClassRestricted},
		{"ERROR: unable to download video data: timed out", ClassTransient},
		{"", ClassTransient},
	} {
		class, _ := Classify(&BackendError{Output: tc.output, Err: errors.New("exit status 1")})
		assert.Equal(tc.class, class, "output: %q", tc.output)
	}

	// The matched signature is reported for restrictions.
	class, sig := Classify(&BackendError{Output: "Sign in to confirm your age", Err: errors.New("exit status 1")})
	assert.Equal(ClassRestricted, class)
	assert.Equal("sign in to confirm", sig)

	// Plain errors fall back to their message text.
	class, _ = Classify(errors.New("requested format is not available"))
	assert.Equal(ClassNotFound, class)
}

func TestParseInfo(t *testing.T) {
	assert := assert.New(t)
	out := []byte(strings.Join([]string{
		"[download] Destination: /media/AbCdEfGhIjK.webm",
		`{"id":"AbCdEfGhIjK","title":"clip","ext":"mp4","duration":31.5,` +
			`"webpage_url":"https://www.youtube.com/watch?v=AbCdEfGhIjK",` +
			`"requested_downloads":[{"filepath":"/media/AbCdEfGhIjK.mp4"}]}`,
	}, "\n"))
	info, ok := parseInfo(out)
	assert.True(ok)
	assert.Equal("AbCdEfGhIjK", info.ID)
	assert.Equal("/media/AbCdEfGhIjK.mp4", info.ReportedPath())
	assert.Equal("https://www.youtube.com/watch?v=AbCdEfGhIjK", info.CanonicalURL())

	_, ok = parseInfo([]byte("no json here"))
	assert.False(ok)
}

func TestCanonicalURLFallback(t *testing.T) {
	assert := assert.New(t)
	info := Info{ID: "AbCdEfGhIjK"}
	assert.Equal("https://youtube.com/watch?v=AbCdEfGhIjK", info.CanonicalURL())
}
