// Package tube is the secondary extractor backend: a stream-object client
// over the YouTube player API. It is independent of yt-dlp and is only
// consulted after the primary backend's strategy matrix is fully exhausted.
package tube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kkdai/youtube/v2"
	"go.uber.org/zap"

	"github.com/ulugbekdev/savetube"
)

// Personality is the client platform the backend presents to the player API.
// Which streams and restrictions apply differs per personality, so the fixed
// order below is a last-resort ladder of its own.
type Personality string

const (
	PersonalityWeb     Personality = "web"
	PersonalityAndroid Personality = "android"
	PersonalityIOS     Personality = "ios"
)

// Personalities is the trial order for the audio last-resort path.
var Personalities = []Personality{PersonalityWeb, PersonalityAndroid, PersonalityIOS}

var userAgents = map[Personality]string{
	PersonalityWeb:     "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	PersonalityAndroid: "com.google.android.youtube/19.09.37 (Linux; U; Android 11) gzip",
	PersonalityIOS:     "com.google.ios.youtube/19.09.3 (iPhone14,3; U; CPU iOS 15_6 like Mac OS X)",
}

type uaTransport struct {
	agent string
	next  http.RoundTripper
}

func (t uaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)
	return t.next.RoundTrip(req)
}

// Client downloads media for a known video id.
type Client struct {
	// NewProgress, when set, supplies a writer that receives every
	// downloaded byte (e.g. a progress bar) for a stream of known size.
	NewProgress func(total int64) io.Writer

	log *zap.SugaredLogger
}

func NewClient() *Client {
	return &Client{log: zap.S().Named("tube")}
}

func (c *Client) newBackend(p Personality) *youtube.Client {
	return &youtube.Client{
		HTTPClient: &http.Client{
			Transport: uaTransport{agent: userAgents[p], next: http.DefaultTransport},
		},
	}
}

func isMP4Video(f youtube.Format) bool {
	return strings.HasPrefix(f.MimeType, "video/mp4")
}

func isAudio(f youtube.Format) bool {
	return strings.HasPrefix(f.MimeType, "audio/")
}

// pickVideoFormat selects the best stream: progressive mp4 (video+audio in
// one stream) at the highest resolution, else adaptive video-only mp4 at the
// highest resolution. Some shorts expose no progressive stream at all.
func pickVideoFormat(formats []youtube.Format) (youtube.Format, error) {
	var progressive, adaptive []youtube.Format
	for _, f := range formats {
		if !isMP4Video(f) {
			continue
		}
		if f.AudioChannels > 0 {
			progressive = append(progressive, f)
		} else {
			adaptive = append(adaptive, f)
		}
	}
	byHeightDesc := func(fs []youtube.Format) {
		sort.Slice(fs, func(i, j int) bool { return fs[i].Height > fs[j].Height })
	}
	byHeightDesc(progressive)
	byHeightDesc(adaptive)
	if len(progressive) > 0 {
		return progressive[0], nil
	}
	if len(adaptive) > 0 {
		return adaptive[0], nil
	}
	return youtube.Format{}, fmt.Errorf("%w: no mp4 stream available", savetube.ErrNotFound)
}

func pickAudioFormat(formats []youtube.Format) (youtube.Format, error) {
	var audio []youtube.Format
	for _, f := range formats {
		if isAudio(f) {
			audio = append(audio, f)
		}
	}
	sort.Slice(audio, func(i, j int) bool { return audio[i].Bitrate > audio[j].Bitrate })
	if len(audio) == 0 {
		return youtube.Format{}, fmt.Errorf("%w: no audio stream available", savetube.ErrNotFound)
	}
	return audio[0], nil
}

func (c *Client) save(ctx context.Context, backend *youtube.Client, video *youtube.Video, format *youtube.Format, dest string) error {
	stream, size, err := backend.GetStreamContext(ctx, video, format)
	if err != nil {
		return fmt.Errorf("failed to get stream: %w", err)
	}
	defer stream.Close()

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to open target file: %w", err)
	}
	defer f.Close()

	var w io.Writer = f
	if c.NewProgress != nil {
		w = io.MultiWriter(f, c.NewProgress(size))
	}
	if _, err := io.Copy(w, stream); err != nil {
		return fmt.Errorf("failed to save stream: %w", err)
	}
	return nil
}

func usable(path string, floor int64) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > floor
}

// FetchVideo downloads the best available mp4 rendition of a video into
// dir/<id>.mp4. An existing non-trivial file at that path is reused.
func (c *Client) FetchVideo(ctx context.Context, id, dir string) (string, error) {
	dest := filepath.Join(dir, id+".mp4")
	if usable(dest, savetube.MinVideoBytes) {
		return dest, nil
	}

	backend := c.newBackend(PersonalityWeb)
	video, err := backend.GetVideoContext(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to get video info: %w", err)
	}
	format, err := pickVideoFormat(video.Formats)
	if err != nil {
		return "", err
	}
	c.log.Debugw("downloading stream", "id", id, "itag", format.ItagNo, "height", format.Height)
	if err := c.save(ctx, backend, video, &format, dest); err != nil {
		return "", err
	}
	if !usable(dest, savetube.MinVideoBytes) {
		return "", fmt.Errorf("%w: downloaded file is trivial", savetube.ErrInvalidArtifact)
	}
	return dest, nil
}

// FetchAudio downloads the highest-bitrate audio stream of a video into
// dir/<id>.m4a, trying each client personality in order. It is the audio
// path's last resort after the primary backend is exhausted.
func (c *Client) FetchAudio(ctx context.Context, id, dir string) (string, error) {
	dest := filepath.Join(dir, id+".m4a")
	if usable(dest, savetube.MinAudioBytes) {
		return dest, nil
	}

	var lastErr error
	for _, p := range Personalities {
		backend := c.newBackend(p)
		video, err := backend.GetVideoContext(ctx, id)
		if err != nil {
			lastErr = err
			c.log.Debugw("personality failed", "personality", p, "id", id, "error", err)
			continue
		}
		format, err := pickAudioFormat(video.Formats)
		if err != nil {
			lastErr = err
			continue
		}
		if err := c.save(ctx, backend, video, &format, dest); err != nil {
			lastErr = err
			continue
		}
		if usable(dest, savetube.MinAudioBytes) {
			return dest, nil
		}
		lastErr = fmt.Errorf("%w: downloaded file is trivial", savetube.ErrInvalidArtifact)
	}
	if lastErr == nil {
		lastErr = savetube.ErrNotFound
	}
	return "", fmt.Errorf("all personalities failed: %w", lastErr)
}
