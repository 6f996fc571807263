// Package cleanup reclaims the working directory. Acquisition leaves files
// behind on purpose (finished artifacts double as a cache, abandoned attempts
// may still be writing), so deletion is deferred to a periodic age-based
// sweep instead of happening inline.
package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/ulugbekdev/savetube"
)

const (
	// DefaultMaxAge comfortably exceeds the acquisition budget, so a file
	// still being written is never swept.
	DefaultMaxAge = 30 * time.Minute
	// DefaultInterval between sweeps.
	DefaultInterval = 10 * time.Minute
)

// sweepExtensions is the set of extensions the sweeper may delete: every
// media container a backend can produce, plus the in-progress leftovers of
// aborted downloads. Anything else in the directory is not ours to touch.
var sweepExtensions = func() map[string]bool {
	set := make(map[string]bool)
	for _, ext := range savetube.VideoExtensions {
		set[ext] = true
	}
	for _, ext := range savetube.AudioExtensions {
		set[ext] = true
	}
	for _, ext := range []string{"part", "ytdl", "temp"} {
		set[ext] = true
	}
	return set
}()

// Sweeper deletes expired media files from a single directory.
type Sweeper struct {
	// Dir is the directory to sweep; subdirectories are not descended into.
	Dir string
	// MaxAge after which a file becomes eligible, DefaultMaxAge when zero.
	MaxAge time.Duration
	// Interval between sweeps in Run, DefaultInterval when zero.
	Interval time.Duration

	log *zap.SugaredLogger
}

func NewSweeper(dir string) *Sweeper {
	return &Sweeper{
		Dir:      dir,
		MaxAge:   DefaultMaxAge,
		Interval: DefaultInterval,
		log:      zap.S().Named("cleanup"),
	}
}

// Eligible reports whether a file name carries a sweepable extension.
func Eligible(name string) bool {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	return sweepExtensions[strings.ToLower(ext)]
}

// Sweep removes eligible files last modified before now-MaxAge and returns
// how many were removed. A file that fails to delete does not stop the sweep.
func (s *Sweeper) Sweep(now time.Time) (int, error) {
	maxAge := s.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	cutoff := now.Add(-maxAge)

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return 0, err
	}
	var removed int
	var errs error
	for _, entry := range entries {
		if entry.IsDir() || !Eligible(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.Dir, entry.Name())
		if err := os.Remove(path); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		removed++
	}
	return removed, errs
}

// Run sweeps on a ticker until the context is cancelled. Errors are logged,
// never fatal; the next tick tries again.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.log == nil {
		s.log = zap.S().Named("cleanup")
	}
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			removed, err := s.Sweep(now)
			if err != nil {
				s.log.Warnw("sweep finished with errors", "removed", removed, "error", err)
			} else if removed > 0 {
				s.log.Infow("swept expired media", "removed", removed)
			}
		}
	}
}
