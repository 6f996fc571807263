// Package probe inspects local media files. A probe is the engine's only
// notion of "this file is real": it must exist, beat the size floor and have
// a measurable positive duration before any path is returned to a caller.
package probe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ulugbekdev/savetube"
)

// Prober extracts the container duration of a media file.
type Prober interface {
	// Probe returns the duration, or an error wrapping
	// savetube.ErrInvalidArtifact when the file is not a usable container.
	Probe(ctx context.Context, path string) (time.Duration, error)
}

// FFProbe shells out to ffprobe.
type FFProbe struct {
	// Bin is the ffprobe executable, "ffprobe" when empty.
	Bin string
}

func (p FFProbe) bin() string {
	if p.Bin != "" {
		return p.Bin
	}
	return "ffprobe"
}

func (p FFProbe) Probe(ctx context.Context, path string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, p.bin(),
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("%w: ffprobe failed for %s: %v", savetube.ErrInvalidArtifact, path, err)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: unparseable duration for %s: %v", savetube.ErrInvalidArtifact, path, err)
	}
	duration := time.Duration(seconds * float64(time.Second))
	if duration <= savetube.MinDuration {
		return duration, fmt.Errorf("%w: duration %v too short for %s", savetube.ErrInvalidArtifact, duration, path)
	}
	return duration, nil
}

// Check verifies the full artifact invariant: the file exists, exceeds the
// size floor for its kind, and probes to a positive duration. It returns the
// verified size and duration.
func Check(ctx context.Context, prober Prober, path string, kind savetube.Kind) (int64, time.Duration, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", savetube.ErrInvalidArtifact, err)
	}
	if info.Size() <= kind.MinBytes() {
		return info.Size(), 0, fmt.Errorf("%w: %s is only %d bytes", savetube.ErrInvalidArtifact, path, info.Size())
	}
	duration, err := prober.Probe(ctx, path)
	if err != nil {
		return info.Size(), duration, err
	}
	return info.Size(), duration, nil
}
