package ytdlp

import "strings"

// Class is the failure class of one backend invocation.
type Class int

const (
	// ClassTransient covers network, fragment and unexpected errors; the
	// next matrix tuple is worth trying.
	ClassTransient Class = iota
	// ClassNotFound means this exact format selector is unavailable; cheap,
	// try the next selector without burning an identity.
	ClassNotFound
	// ClassRestricted means the platform is actively blocking: stop
	// iterating formats for this identity and escalate.
	ClassRestricted
)

func (c Class) String() string {
	switch c {
	case ClassNotFound:
		return "not-found"
	case ClassRestricted:
		return "restricted"
	default:
		return "transient"
	}
}

// The signature tables are versioned against observed yt-dlp error text.
// Matching is case-insensitive substring search over stderr.
var (
	NotFoundSignatures = []string{
		"requested format is not available",
	}
	RestrictionSignatures = []string{
		"sign in to confirm",
		"sign in to prove",
		"not available on this app",
		"botdetection",
		"account cookies are no longer valid",
	}
)

// Classify maps a backend error to a failure class, returning the matched
// signature for restricted failures so it can surface in user-facing
// messages.
func Classify(err error) (Class, string) {
	if err == nil {
		return ClassTransient, ""
	}
	text := strings.ToLower(err.Error())
	if be, ok := err.(*BackendError); ok && be.Output != "" {
		text = strings.ToLower(be.Output)
	}
	for _, sig := range NotFoundSignatures {
		if strings.Contains(text, sig) {
			return ClassNotFound, sig
		}
	}
	for _, sig := range RestrictionSignatures {
		if strings.Contains(text, sig) {
			return ClassRestricted, sig
		}
	}
	return ClassTransient, ""
}
