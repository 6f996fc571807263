// Package engine drives the acquisition pipeline: it builds the strategy
// matrix, runs attempts against the primary backend one at a time, falls
// back to the secondary backend only after full exhaustion, and never
// returns a path that has not been probed, size-checked and normalized.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/ulugbekdev/savetube"
	"github.com/ulugbekdev/savetube/identity"
	"github.com/ulugbekdev/savetube/internal/pool"
	"github.com/ulugbekdev/savetube/normalize"
	"github.com/ulugbekdev/savetube/probe"
	"github.com/ulugbekdev/savetube/tube"
	"github.com/ulugbekdev/savetube/ytdlp"
)

// Backend names reported in Media.Backend.
const (
	BackendPrimary  = "ytdlp"
	BackendFallback = "tube"
)

// StreamFetcher is the last-resort stream-object backend, satisfied by
// *tube.Client. Both methods return the path of the fetched file.
type StreamFetcher interface {
	FetchVideo(ctx context.Context, id, dir string) (string, error)
	FetchAudio(ctx context.Context, id, dir string) (string, error)
}

// Config wires the engine's collaborators and budgets.
type Config struct {
	// WorkDir is the shared working directory; output names are keyed by
	// item id, so concurrent distinct requests never collide. Concurrent
	// requests for the same id are not deduplicated at this layer.
	WorkDir string
	// MediaTimeout bounds one whole acquisition (default 90s).
	MediaTimeout time.Duration
	// FallbackTimeout bounds the audio last-resort path (default 30s).
	FallbackTimeout time.Duration
	// SocketTimeout is the backend-internal per-operation network bound.
	SocketTimeout time.Duration
	// Retries is the backend-internal retry count.
	Retries int

	Primary    ytdlp.Runner
	Fallback   StreamFetcher
	Identities identity.Source
	Health     *identity.Health
	Prober     probe.Prober
	Normalizer *normalize.Normalizer
	Pool       *pool.Pool
}

// DefaultConfig carries the budgets; collaborators must still be provided.
var DefaultConfig = Config{
	WorkDir:         ".",
	MediaTimeout:    90 * time.Second,
	FallbackTimeout: 30 * time.Second,
	SocketTimeout:   15 * time.Second,
	Retries:         3,
}

type Engine struct {
	cfg Config
	log *zap.SugaredLogger
}

func New(cfg Config) (*Engine, error) {
	if cfg.Primary == nil || cfg.Prober == nil || cfg.Normalizer == nil || cfg.Pool == nil {
		return nil, errors.New("engine config is missing a collaborator")
	}
	if cfg.Identities == nil {
		cfg.Identities = identity.Static(nil)
	}
	if cfg.MediaTimeout <= 0 {
		cfg.MediaTimeout = DefaultConfig.MediaTimeout
	}
	if cfg.FallbackTimeout <= 0 {
		cfg.FallbackTimeout = DefaultConfig.FallbackTimeout
	}
	if cfg.SocketTimeout <= 0 {
		cfg.SocketTimeout = DefaultConfig.SocketTimeout
	}
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultConfig.Retries
	}
	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	return &Engine{cfg: cfg, log: zap.S().Named("engine")}, nil
}

// await dispatches f to the worker pool and waits for it within the budget.
// A spent budget is a distinct Timeout outcome, not a generic failure, and
// abandons only the wait: the orphaned attempt finishes against its own
// context and at worst writes a file nobody reads, removed by the sweep.
func await[T any](ctx context.Context, e *Engine, budget time.Duration, f func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	v, err := pool.Await(ctx, e.cfg.Pool, func() (T, error) {
		return f(ctx)
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return v, savetube.ErrTimeout
	}
	return v, err
}

// baseConfig is the shared backend configuration for one operation.
func (e *Engine) baseConfig() ytdlp.Config {
	return ytdlp.Config{
		OutputTemplate:  e.cfg.WorkDir + "/%(id)s.%(ext)s",
		NoPlaylist:      true,
		GeoBypass:       true,
		SocketTimeout:   e.cfg.SocketTimeout,
		Retries:         e.cfg.Retries,
		FragmentRetries: e.cfg.Retries,
	}
}

func (e *Engine) identities(kind savetube.Kind) []identity.Token {
	tokens, err := e.cfg.Identities.List(kind)
	if err != nil {
		e.log.Warnw("identity listing failed, proceeding anonymous-only", "error", err)
		return nil
	}
	if e.cfg.Health != nil {
		tokens = e.cfg.Health.Order(kind, tokens)
	}
	return tokens
}

// storedFirst burns through stored identities before falling back to the
// anonymous trial point; anonymousFirst avoids burning rotating identities
// when an unauthenticated attempt usually suffices.
func storedFirst(tokens []identity.Token) []identity.Token {
	return append(tokens[:len(tokens):len(tokens)], identity.Anonymous)
}

func anonymousFirst(tokens []identity.Token) []identity.Token {
	return append([]identity.Token{identity.Anonymous}, tokens...)
}

func (e *Engine) recordOutcome(kind savetube.Kind, token identity.Token, out Outcome) {
	if e.cfg.Health == nil {
		return
	}
	switch out.Kind {
	case OutcomeSuccess:
		_ = e.cfg.Health.RecordSuccess(kind, token)
	case OutcomeRestricted:
		_ = e.cfg.Health.RecordFailure(kind, token)
	}
}

// exhaustPrimary walks the matrix until a verified success or exhaustion.
// verify turns a located path into final media (probe + normalize); a failed
// verification evicts the artifact and the loop continues. The returned
// error on exhaustion favors the first restriction signature, so it is never
// overwritten by a later, less diagnostic failure.
func (e *Engine) exhaustPrimary(
	ctx context.Context,
	reqID string,
	m *Matrix,
	run func(ctx context.Context, tuple Tuple) Outcome,
	verify func(ctx context.Context, path string) (savetube.Media, error),
	kind savetube.Kind,
) (savetube.Media, error) {
	var trail error
	var firstRestriction error
	for {
		if err := ctx.Err(); err != nil {
			return savetube.Media{}, err
		}
		tuple, ok := m.Next()
		if !ok {
			break
		}
		out := run(ctx, tuple)
		e.recordOutcome(kind, tuple.Identity, out)
		if out.Kind == OutcomeSuccess {
			media, err := verify(ctx, out.Path)
			if err != nil {
				e.log.Warnw("located artifact failed verification, evicting",
					"request_id", reqID, "tuple", tuple.String(), "path", out.Path, "error", err)
				_ = os.Remove(out.Path)
				trail = multierror.Append(trail, err)
				continue
			}
			e.log.Infow("attempt succeeded",
				"request_id", reqID, "tuple", tuple.String(), "path", media.Path)
			return media, nil
		}
		e.log.Debugw("attempt failed",
			"request_id", reqID, "tuple", tuple.String(), "outcome", out.Kind.String(), "error", out.Err)
		if out.Kind == OutcomeRestricted && firstRestriction == nil {
			firstRestriction = out.Err
		}
		trail = multierror.Append(trail, fmt.Errorf("[%s] %w", tuple.String(), out.Err))
	}
	if firstRestriction != nil {
		return savetube.Media{}, firstRestriction
	}
	if trail == nil {
		trail = savetube.ErrExhausted
	}
	return savetube.Media{}, trail
}

// evictIfCorrupt removes a cached artifact whose content turned out corrupt,
// so a re-download is not poisoned by it.
func (e *Engine) evictIfCorrupt(ctx context.Context, id string, kind savetube.Kind) (savetube.Media, bool) {
	path, ok := ytdlp.LocateOutput(e.cfg.WorkDir, "", id, kind.Extensions(), kind.MinBytes())
	if !ok {
		return savetube.Media{}, false
	}
	size, duration, err := probe.Check(ctx, e.cfg.Prober, path, kind)
	if err != nil {
		e.log.Warnw("evicting corrupt cached file", "path", path, "error", err)
		_ = os.Remove(path)
		return savetube.Media{}, false
	}
	return savetube.Media{Path: path, Kind: kind, Size: size, Duration: duration}, true
}

func (e *Engine) finishVideo(ctx context.Context, path, backend string) (savetube.Media, error) {
	media, err := e.cfg.Normalizer.Normalize(ctx, path)
	if err != nil {
		return savetube.Media{}, err
	}
	media.Backend = backend
	return media, nil
}

// FetchVideoByURL acquires a Telegram-ready rendition of a video or short.
//
// Primary: every client variant × stored-identities-first × a single ≤1080p
// selector. Fallback, only after full primary exhaustion: the stream-object
// backend, progressive first. The terminal error is the primary backend's
// representative error; the fallback's is kept for logging only.
func (e *Engine) FetchVideoByURL(ctx context.Context, rawURL string) (savetube.Media, error) {
	id, err := tube.ExtractVideoID(rawURL)
	if err != nil {
		return savetube.Media{}, fmt.Errorf("unsupported URL: %w", err)
	}
	reqID := uuid.NewString()
	e.log.Infow("video acquisition", "request_id", reqID, "id", id)

	return await(ctx, e, e.cfg.MediaTimeout, func(ctx context.Context) (savetube.Media, error) {
		if cached, ok := e.evictIfCorrupt(ctx, id, savetube.KindVideo); ok {
			return e.finishVideo(ctx, cached.Path, BackendPrimary)
		}

		base := e.baseConfig()
		base.MergeFormat = "mp4"
		target := "https://youtube.com/watch?v=" + id

		m := NewMatrix(VideoVariants, storedFirst(e.identities(savetube.KindVideo)), []Selector{videoSelector})
		media, primaryErr := e.exhaustPrimary(ctx, reqID, m,
			func(ctx context.Context, tuple Tuple) Outcome {
				return e.attempt(ctx, base, tuple, target, id, savetube.KindVideo)
			},
			func(ctx context.Context, path string) (savetube.Media, error) {
				return e.finishVideo(ctx, path, BackendPrimary)
			},
			savetube.KindVideo,
		)
		if primaryErr == nil {
			return media, nil
		}
		if errors.Is(primaryErr, context.DeadlineExceeded) || errors.Is(primaryErr, context.Canceled) {
			return savetube.Media{}, primaryErr
		}

		if e.cfg.Fallback == nil {
			return savetube.Media{}, primaryErr
		}
		e.log.Warnw("primary exhausted, trying stream fallback", "request_id", reqID, "error", primaryErr)
		path, fallbackErr := e.cfg.Fallback.FetchVideo(ctx, id, e.cfg.WorkDir)
		if fallbackErr == nil {
			if _, _, err := probe.Check(ctx, e.cfg.Prober, path, savetube.KindVideo); err != nil {
				_ = os.Remove(path)
				fallbackErr = err
			} else {
				return e.finishVideo(ctx, path, BackendFallback)
			}
		}
		e.log.Errorw("all backends exhausted",
			"request_id", reqID, "primary", primaryErr, "fallback", fallbackErr)
		return savetube.Media{}, &savetube.ExhaustionError{Primary: primaryErr, Fallback: fallbackErr}
	})
}

// FetchAudioByQuery acquires audio for a free-text title/artist query.
//
// Identities are tried anonymous-first; for each identity the selector
// ladder runs most-preferred-container first. Search and download are two
// distinct backend calls: search results carry incomplete metadata, so the
// resolved entry's canonical URL is re-extracted for the download.
func (e *Engine) FetchAudioByQuery(ctx context.Context, query string) (savetube.Media, error) {
	if query == "" {
		return savetube.Media{}, errors.New("empty query")
	}
	reqID := uuid.NewString()
	e.log.Infow("audio acquisition", "request_id", reqID, "query", query)

	base := e.baseConfig()
	base.PlayerClients = []string{"web", "mweb"}
	base.SocketTimeout = 12 * time.Second
	base.ExtractAudio = true
	base.AudioFormat = "mp3"
	base.AudioQuality = "192"

	// The resolved id travels in the task's return value, never a captured
	// variable: an abandoned primary task may still be running when the
	// fallback starts.
	type primaryResult struct {
		media      savetube.Media
		resolvedID string
	}

	primary, primaryErr := await(ctx, e, e.cfg.MediaTimeout, func(ctx context.Context) (primaryResult, error) {
		var out primaryResult
		m := NewMatrix([]Variant{""}, anonymousFirst(e.identities(savetube.KindAudio)), audioSelectors)
		media, err := e.exhaustPrimary(ctx, reqID, m,
			func(ctx context.Context, tuple Tuple) Outcome {
				cfg := base
				cfg.CookieFile = tuple.Identity.CookieFile
				entry, err := e.cfg.Primary.Resolve(ctx, cfg, "ytsearch1:"+query)
				if err != nil {
					return classifyOutcome(err)
				}
				out.resolvedID = entry.ID
				return e.attempt(ctx, base, tuple, entry.CanonicalURL(), entry.ID, savetube.KindAudio)
			},
			func(ctx context.Context, path string) (savetube.Media, error) {
				size, duration, err := probe.Check(ctx, e.cfg.Prober, path, savetube.KindAudio)
				if err != nil {
					return savetube.Media{}, err
				}
				return savetube.Media{
					Path: path, Kind: savetube.KindAudio,
					Size: size, Duration: duration, Backend: BackendPrimary,
				}, nil
			},
			savetube.KindAudio,
		)
		out.media = media
		return out, err
	})
	if primaryErr == nil {
		return primary.media, nil
	}
	// A spent budget or a caller cancel is terminal; the fallback would only
	// pile more work on a request nobody is waiting for.
	if errors.Is(primaryErr, savetube.ErrTimeout) || errors.Is(primaryErr, context.Canceled) || e.cfg.Fallback == nil {
		return savetube.Media{}, primaryErr
	}

	e.log.Warnw("primary exhausted, trying personality fallback", "request_id", reqID, "error", primaryErr)
	media, fallbackErr := await(ctx, e, e.cfg.FallbackTimeout, func(ctx context.Context) (savetube.Media, error) {
		id := primary.resolvedID
		if id == "" {
			entry, err := e.cfg.Primary.Resolve(ctx, e.baseConfig(), "ytsearch1:"+query)
			if err != nil {
				return savetube.Media{}, fmt.Errorf("search resolution failed: %w", err)
			}
			id = entry.ID
		}
		path, err := e.cfg.Fallback.FetchAudio(ctx, id, e.cfg.WorkDir)
		if err != nil {
			return savetube.Media{}, err
		}
		size, duration, err := probe.Check(ctx, e.cfg.Prober, path, savetube.KindAudio)
		if err != nil {
			_ = os.Remove(path)
			return savetube.Media{}, err
		}
		return savetube.Media{
			Path: path, Kind: savetube.KindAudio,
			Size: size, Duration: duration, Backend: BackendFallback,
		}, nil
	})
	if fallbackErr == nil {
		return media, nil
	}
	e.log.Errorw("all backends exhausted",
		"request_id", reqID, "primary", primaryErr, "fallback", fallbackErr)
	return savetube.Media{}, &savetube.ExhaustionError{Primary: primaryErr, Fallback: fallbackErr}
}

// FetchVideoByID acquires a video at an explicit quality cap. The quality is
// clamped to [480, 1080] before the selector ladder is built. There is no
// stream-object fallback on this path; the ladder already ends in the
// unconstrained selectors.
func (e *Engine) FetchVideoByID(ctx context.Context, id string, quality int) (savetube.Media, error) {
	if !tube.ValidVideoID(id) {
		return savetube.Media{}, fmt.Errorf("invalid video id %q", id)
	}
	reqID := uuid.NewString()
	quality = ClampQuality(quality)
	e.log.Infow("video acquisition by id", "request_id", reqID, "id", id, "quality", quality)

	return await(ctx, e, e.cfg.MediaTimeout, func(ctx context.Context) (savetube.Media, error) {
		// A cached rendition's height is unknown, so explicit-quality
		// requests never serve the cache: evict the artifact and its
		// normalized sibling and re-download at the requested quality.
		if path, ok := ytdlp.LocateOutput(e.cfg.WorkDir, "", id, savetube.KindVideo.Extensions(), savetube.KindVideo.MinBytes()); ok {
			e.log.Debugw("evicting cached file for explicit-quality request", "request_id", reqID, "path", path)
			_ = os.Remove(normalize.OutputPath(path))
			_ = os.Remove(path)
		}

		base := e.baseConfig()
		base.MergeFormat = "mp4"
		base.PlayerClients = []string{"web", "mweb"}
		target := "https://youtube.com/watch?v=" + id

		m := NewMatrix([]Variant{""}, anonymousFirst(e.identities(savetube.KindVideo)), QualityLadder(quality))
		return e.exhaustPrimary(ctx, reqID, m,
			func(ctx context.Context, tuple Tuple) Outcome {
				return e.attempt(ctx, base, tuple, target, id, savetube.KindVideo)
			},
			func(ctx context.Context, path string) (savetube.Media, error) {
				return e.finishVideo(ctx, path, BackendPrimary)
			},
			savetube.KindVideo,
		)
	})
}

// classifyOutcome maps a bare backend error (from a resolve call) onto the
// attempt outcome taxonomy.
func classifyOutcome(err error) Outcome {
	switch class, sig := ytdlp.Classify(err); class {
	case ytdlp.ClassNotFound:
		return Outcome{Kind: OutcomeNotFound, Err: fmt.Errorf("%w: %v", savetube.ErrNotFound, err)}
	case ytdlp.ClassRestricted:
		return Outcome{
			Kind:      OutcomeRestricted,
			Signature: sig,
			Err:       &savetube.RestrictionError{Signature: sig, Cause: err},
		}
	default:
		return Outcome{Kind: OutcomeTransient, Err: err}
	}
}
