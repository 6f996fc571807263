// Package normalize converts acquired media into a container profile that
// Telegram will play inline: H.264 video in yuv420p, AAC audio, mp4 container
// with the moov atom at the front. Normalization is idempotent — an already
// normalized file, or a previously produced sibling, is returned without
// re-invoking the transcoder.
package normalize

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ulugbekdev/savetube"
	"github.com/ulugbekdev/savetube/probe"
)

// Suffix marks a file as already normalized. CanonicalExt is the only
// container the suffix is ever paired with.
const (
	Suffix       = "_tg"
	CanonicalExt = ".mp4"
)

// Runner executes an external transcoder invocation.
type Runner interface {
	Run(ctx context.Context, args ...string) error
}

// ExecRunner shells out to ffmpeg.
type ExecRunner struct {
	// Bin is the ffmpeg executable, "ffmpeg" when empty.
	Bin string
}

func (r ExecRunner) Run(ctx context.Context, args ...string) error {
	bin := r.Bin
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %v: %s", bin, err, tail(string(out)))
	}
	return nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 512 {
		s = s[len(s)-512:]
	}
	return s
}

// IsNormalized reports whether the path carries the normalized naming
// convention.
func IsNormalized(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, Suffix+CanonicalExt)
}

// OutputPath computes the deterministic normalized sibling of a source file.
func OutputPath(src string) string {
	ext := filepath.Ext(src)
	return strings.TrimSuffix(src, ext) + Suffix + CanonicalExt
}

// Normalizer applies the compatibility profile.
type Normalizer struct {
	runner Runner
	prober probe.Prober
	log    *zap.SugaredLogger
}

func New(runner Runner, prober probe.Prober) *Normalizer {
	return &Normalizer{
		runner: runner,
		prober: prober,
		log:    zap.S().Named("normalize"),
	}
}

// profileArgs is the fixed compatibility-first transcode profile. The first
// video stream is selected explicitly and the first audio stream optionally,
// so sources without audio pass through instead of failing the mapping.
func profileArgs(src, dst string) []string {
	return []string{
		"-y",
		"-i", src,
		"-map", "0:v:0",
		"-map", "0:a:0?",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		dst,
	}
}

// Normalize returns a streaming-ready rendition of the source file.
//
// It never deletes the source; on a transcode failure it degrades to the
// original file as long as that still probes as valid. Only a source that is
// itself invalid makes the whole operation fail.
func (n *Normalizer) Normalize(ctx context.Context, src string) (savetube.Media, error) {
	// Already-normalized input short-circuits, as the engine may be called
	// repeatedly against the same cached artifact.
	if IsNormalized(src) {
		if size, duration, err := probe.Check(ctx, n.prober, src, savetube.KindVideo); err == nil {
			return savetube.Media{Path: src, Kind: savetube.KindVideo, Size: size, Duration: duration}, nil
		}
	}

	if _, _, err := probe.Check(ctx, n.prober, src, savetube.KindVideo); err != nil {
		return savetube.Media{}, fmt.Errorf("refusing to normalize: %w", err)
	}

	dst := OutputPath(src)
	if size, duration, err := probe.Check(ctx, n.prober, dst, savetube.KindVideo); err == nil {
		n.log.Debugw("reusing normalized sibling", "path", dst)
		return savetube.Media{Path: dst, Kind: savetube.KindVideo, Size: size, Duration: duration}, nil
	}

	runErr := n.runner.Run(ctx, profileArgs(src, dst)...)
	if runErr == nil {
		if size, duration, err := probe.Check(ctx, n.prober, dst, savetube.KindVideo); err == nil {
			return savetube.Media{Path: dst, Kind: savetube.KindVideo, Size: size, Duration: duration}, nil
		} else {
			runErr = err
		}
	}
	n.log.Warnw("transcode failed, degrading to source", "src", src, "error", runErr)

	// The unconverted source is still better than failing the request.
	if size, duration, err := probe.Check(ctx, n.prober, src, savetube.KindVideo); err == nil {
		return savetube.Media{Path: src, Kind: savetube.KindVideo, Size: size, Duration: duration}, nil
	}
	return savetube.Media{}, fmt.Errorf("normalization failed: %w", runErr)
}

// ExtractAudio pulls the audio track of a video into a sibling mp3, used by
// the shorts-to-music flow before recognition.
func (n *Normalizer) ExtractAudio(ctx context.Context, src string) (string, error) {
	dst := strings.TrimSuffix(src, filepath.Ext(src)) + ".mp3"
	err := n.runner.Run(ctx,
		"-y",
		"-i", src,
		"-vn",
		"-acodec", "libmp3lame",
		"-b:a", "192k",
		dst,
	)
	if err != nil {
		return "", fmt.Errorf("audio extraction failed: %w", err)
	}
	if _, _, err := probe.Check(ctx, n.prober, dst, savetube.KindAudio); err != nil {
		return "", err
	}
	return dst, nil
}
