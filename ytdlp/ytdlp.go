// Package ytdlp is the boundary to the primary extractor backend, invoked as
// a yt-dlp subprocess. Each invocation is configured by a typed Config, and
// failures are classified by matching the backend's stderr against a
// versioned signature table — yt-dlp exposes no structured error channel
// over exec, so text matching is the only classification input available.
package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config describes exactly one backend invocation. Optional fields are
// enumerated here rather than passed as an open-ended option map.
type Config struct {
	// OutputTemplate is the yt-dlp -o template, usually keyed by item id.
	OutputTemplate string
	// Format is the format selector for this attempt.
	Format string
	// NoPlaylist suppresses playlist expansion.
	NoPlaylist bool
	// SocketTimeout bounds each network operation inside the backend.
	SocketTimeout time.Duration
	// Retries and FragmentRetries are backend-internal retry counts for
	// transient network and fragment errors, separate from the outer
	// strategy loop.
	Retries         int
	FragmentRetries int
	// CookieFile is the credential reference, empty for anonymous.
	CookieFile string
	// PlayerClients are client personalities for the youtube extractor,
	// e.g. ["web", "mweb"]. Empty means backend default.
	PlayerClients []string
	// GeoBypass enables geo-restriction bypass.
	GeoBypass bool
	// MergeFormat is the merge container for split video+audio downloads.
	MergeFormat string
	// ExtractAudio post-processes the download into AudioFormat at
	// AudioQuality (e.g. "mp3" at "192").
	ExtractAudio bool
	AudioFormat  string
	AudioQuality string
}

// Args renders the invocation argv, excluding the binary and the target.
func (c Config) Args() []string {
	args := []string{"--no-warnings", "--quiet"}
	if c.NoPlaylist {
		args = append(args, "--no-playlist")
	}
	if c.GeoBypass {
		args = append(args, "--geo-bypass")
	}
	if c.SocketTimeout > 0 {
		args = append(args, "--socket-timeout", strconv.Itoa(int(c.SocketTimeout.Seconds())))
	}
	if c.Retries > 0 {
		args = append(args, "--retries", strconv.Itoa(c.Retries))
	}
	if c.FragmentRetries > 0 {
		args = append(args, "--fragment-retries", strconv.Itoa(c.FragmentRetries))
	}
	if c.OutputTemplate != "" {
		args = append(args, "-o", c.OutputTemplate)
	}
	if c.Format != "" {
		args = append(args, "-f", c.Format)
	}
	if c.MergeFormat != "" {
		args = append(args, "--merge-output-format", c.MergeFormat)
	}
	if c.CookieFile != "" {
		args = append(args, "--cookies", c.CookieFile)
	}
	if len(c.PlayerClients) > 0 {
		args = append(args, "--extractor-args", "youtube:player_client="+strings.Join(c.PlayerClients, ","))
	}
	if c.ExtractAudio {
		args = append(args, "-x")
		if c.AudioFormat != "" {
			args = append(args, "--audio-format", c.AudioFormat)
		}
		if c.AudioQuality != "" {
			args = append(args, "--audio-quality", c.AudioQuality)
		}
	}
	return args
}

// Info is the structured metadata the backend reports about a resolved item.
type Info struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Ext        string  `json:"ext"`
	Duration   float64 `json:"duration"`
	WebpageURL string  `json:"webpage_url"`

	RequestedDownloads []struct {
		Filepath string `json:"filepath"`
	} `json:"requested_downloads"`
}

// ReportedPath is the backend's self-reported output path, which is not
// reliable across merge/remux/post-process steps. Empty when unreported.
func (i Info) ReportedPath() string {
	if len(i.RequestedDownloads) > 0 {
		return i.RequestedDownloads[0].Filepath
	}
	return ""
}

// CanonicalURL is the resolved watch URL for a search entry.
func (i Info) CanonicalURL() string {
	if i.WebpageURL != "" {
		return i.WebpageURL
	}
	return "https://youtube.com/watch?v=" + i.ID
}

// Runner invokes the backend. Download fetches the media; Resolve only
// extracts metadata (used for ytsearch lookups, whose results carry
// incomplete metadata until the concrete entry is re-extracted).
type Runner interface {
	Download(ctx context.Context, cfg Config, target string) (Info, error)
	Resolve(ctx context.Context, cfg Config, target string) (Info, error)
}

// Exec runs the real yt-dlp binary.
type Exec struct {
	// Bin is the yt-dlp executable, "yt-dlp" when empty.
	Bin string

	log *zap.SugaredLogger
}

func NewExec(bin string) *Exec {
	return &Exec{Bin: bin, log: zap.S().Named("ytdlp")}
}

func (e *Exec) bin() string {
	if e.Bin != "" {
		return e.Bin
	}
	return "yt-dlp"
}

func (e *Exec) Download(ctx context.Context, cfg Config, target string) (Info, error) {
	args := append(cfg.Args(), "--print-json", target)
	return e.run(ctx, args)
}

func (e *Exec) Resolve(ctx context.Context, cfg Config, target string) (Info, error) {
	args := append(cfg.Args(), "--dump-json", "--skip-download", target)
	return e.run(ctx, args)
}

func (e *Exec) run(ctx context.Context, args []string) (Info, error) {
	cmd := exec.CommandContext(ctx, e.bin(), args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.log.Debugw("invoking backend", "args", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return Info{}, &BackendError{
			Output: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}

	info, ok := parseInfo(stdout.Bytes())
	if !ok {
		return Info{}, &BackendError{
			Output: strings.TrimSpace(stderr.String()),
			Err:    fmt.Errorf("backend produced no item metadata"),
		}
	}
	return info, nil
}

// parseInfo scans stdout for the first JSON object line; the backend may
// interleave plain-text progress lines even in quiet mode.
func parseInfo(out []byte) (Info, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var info Info
		if err := json.Unmarshal([]byte(line), &info); err != nil {
			continue
		}
		if info.ID != "" {
			return info, true
		}
	}
	return Info{}, false
}

// BackendError preserves the backend's stderr for classification.
type BackendError struct {
	Output string
	Err    error
}

func (e *BackendError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("yt-dlp: %v: %s", e.Err, e.Output)
	}
	return fmt.Sprintf("yt-dlp: %v", e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
