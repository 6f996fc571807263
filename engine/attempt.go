package engine

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/ulugbekdev/savetube"
	"github.com/ulugbekdev/savetube/ytdlp"
)

// OutcomeKind tags the result of one attempt.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	// OutcomeNotFound: this selector is unavailable; try the next selector
	// without burning an identity.
	OutcomeNotFound
	// OutcomeRestricted: the platform is actively blocking this identity.
	OutcomeRestricted
	// OutcomeTransient: network/fragment/unexpected failure.
	OutcomeTransient
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeNotFound:
		return "not-found"
	case OutcomeRestricted:
		return "restricted"
	default:
		return "transient"
	}
}

// Outcome is the tagged result of one (variant × identity × selector) trial.
type Outcome struct {
	Kind OutcomeKind
	// Path of the located artifact, only for OutcomeSuccess.
	Path string
	// Signature is the matched restriction substring, only for
	// OutcomeRestricted.
	Signature string
	Err       error
}

// maxAttemptRetries bounds the whole-invocation retries for transient
// failures; fragment-level retries happen inside the backend itself.
const maxAttemptRetries = 2

// attempt executes exactly one matrix tuple against the primary backend:
// configure, invoke, locate the produced file, classify the result. Partial
// files left behind on failure are not cleaned up here; the periodic sweep
// owns that.
func (e *Engine) attempt(ctx context.Context, base ytdlp.Config, tuple Tuple, target, id string, kind savetube.Kind) Outcome {
	cfg := base
	cfg.Format = string(tuple.Selector)
	cfg.CookieFile = tuple.Identity.CookieFile
	if tuple.Variant != "" {
		cfg.PlayerClients = []string{string(tuple.Variant)}
	}

	var info ytdlp.Info
	invoke := func() error {
		var err error
		info, err = e.cfg.Primary.Download(ctx, cfg, target)
		if err == nil {
			return nil
		}
		if class, _ := ytdlp.Classify(err); class != ytdlp.ClassTransient {
			return backoff.Permanent(err)
		}
		return err
	}
	err := backoff.Retry(invoke, backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxAttemptRetries), ctx))

	if err != nil {
		return classifyOutcome(err)
	}

	if info.ID != "" {
		id = info.ID
	}
	path, ok := ytdlp.LocateOutput(e.cfg.WorkDir, info.ReportedPath(), id, kind.Extensions(), kind.MinBytes())
	if !ok {
		return Outcome{
			Kind: OutcomeTransient,
			Err:  fmt.Errorf("%w: backend reported success but no output found for %q", savetube.ErrInvalidArtifact, id),
		}
	}
	return Outcome{Kind: OutcomeSuccess, Path: path}
}
