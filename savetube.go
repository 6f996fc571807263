// Package savetube contains the shared vocabulary of the acquisition
// pipeline: what kinds of media exist, what a finished artifact looks like,
// and how failures are classified on their way back to the chat layer.
package savetube

import (
	"errors"
	"fmt"
	"time"
)

// Kind distinguishes the two artifact families the engine produces. The
// minimum size floor and the set of acceptable container extensions differ
// between them.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// Size floors below which a located file is assumed to be a stub left behind
// by an aborted download. These are corruption heuristics, not proofs of
// correctness; probing still has the final word.
const (
	MinVideoBytes int64 = 1024
	MinAudioBytes int64 = 1000
)

// MinBytes returns the size floor for the kind.
func (k Kind) MinBytes() int64 {
	if k == KindAudio {
		return MinAudioBytes
	}
	return MinVideoBytes
}

// VideoExtensions and AudioExtensions list the container extensions a backend
// may legitimately leave on disk, in lookup preference order.
var (
	VideoExtensions = []string{"mp4", "webm", "mkv", "mov"}
	AudioExtensions = []string{"mp3", "m4a", "webm", "opus", "aac"}
)

// Extensions returns the acceptable extensions for the kind.
func (k Kind) Extensions() []string {
	if k == KindAudio {
		return AudioExtensions
	}
	return VideoExtensions
}

// MinDuration is the epsilon below which a probed duration is treated as a
// corrupt or empty container.
const MinDuration = 100 * time.Millisecond

// Media is the final artifact of a successful acquisition: a local file that
// has been located, size-checked and probed.
type Media struct {
	// Path is the absolute path of the artifact on disk.
	Path string
	// Kind of the artifact.
	Kind Kind
	// Size in bytes, strictly greater than Kind.MinBytes().
	Size int64
	// Duration as reported by the probe, strictly greater than MinDuration.
	Duration time.Duration
	// Backend that produced the file, e.g. "ytdlp" or "tube".
	Backend string
}

var (
	// ErrNotFound means the requested format/selector is unavailable for the
	// item. Cheap and non-diagnostic; the next selector should be tried.
	ErrNotFound = errors.New("requested media not found")
	// ErrRestricted means the platform actively refused the attempt
	// (bot detection, login wall, app restriction).
	ErrRestricted = errors.New("blocked by platform restriction")
	// ErrTimeout means the overall acquisition budget was spent. Distinct
	// from a hard failure: the caller may retry with different input.
	ErrTimeout = errors.New("acquisition timed out")
	// ErrInvalidArtifact means a file exists but failed the probe or the
	// size floor.
	ErrInvalidArtifact = errors.New("invalid media artifact")
	// ErrExhausted means every strategy of every backend was tried without
	// a verified success.
	ErrExhausted = errors.New("all acquisition strategies exhausted")
)

// RestrictionError carries the matched restriction signature so the chat
// layer can map it to a specific user-facing message.
type RestrictionError struct {
	// Signature is the matched substring, one of the ytdlp signature
	// constants.
	Signature string
	Cause     error
}

func (e *RestrictionError) Error() string {
	return fmt.Sprintf("restricted (%q): %v", e.Signature, e.Cause)
}

func (e *RestrictionError) Unwrap() error { return ErrRestricted }

// ExhaustionError is raised when both backends ran out of strategies. Primary
// holds the representative error of the primary backend, which is usually
// more diagnostic than whatever the fallback died with.
type ExhaustionError struct {
	// Primary is the first backend's representative error.
	Primary error
	// Fallback is the secondary backend's error, kept for logging only.
	Fallback error
}

func (e *ExhaustionError) Error() string {
	return fmt.Sprintf("%v: %v", ErrExhausted, e.Primary)
}

func (e *ExhaustionError) Unwrap() error { return e.Primary }

// Is reports true for ErrExhausted as well as anything Primary matches.
func (e *ExhaustionError) Is(target error) bool { return target == ErrExhausted }
