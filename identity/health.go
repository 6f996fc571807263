package identity

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/ulugbekdev/savetube"
)

var buckets = struct {
	Metadata []byte
	Health   []byte
}{
	Metadata: []byte("__metadata__"),
	Health:   []byte("health"),
}

var metadataKeys = struct {
	Version []byte
}{
	Version: []byte("version"),
}

const currentVersion = 1

// tokenHealth is the persisted trial bookkeeping for one identity.
type tokenHealth struct {
	Failures    int       `json:"failures"`
	Successes   int       `json:"successes"`
	LastFailure time.Time `json:"last_failure"`
}

// Health persists per-token failure counters across restarts so that
// identities that recently hit restrictions sink to the back of the trial
// order. It does not own the cookie files themselves.
type Health struct {
	db *bbolt.DB
}

func OpenHealth(path string) (*Health, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open identity health store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		metadata, err := tx.CreateBucketIfNotExists(buckets.Metadata)
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(buckets.Health); err != nil {
			return err
		}

		var version int
		if versionBytes := metadata.Get(metadataKeys.Version); versionBytes != nil {
			if err := json.Unmarshal(versionBytes, &version); err != nil {
				return err
			}
		}

		versionBytes, err := json.Marshal(currentVersion)
		if err != nil {
			return err
		}
		return metadata.Put(metadataKeys.Version, versionBytes)
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Health{db: db}, nil
}

func (h *Health) Close() error { return h.db.Close() }

func healthKey(kind savetube.Kind, token Token) []byte {
	return []byte(string(kind) + "/" + token.Name)
}

func (h *Health) get(kind savetube.Kind, token Token) tokenHealth {
	var th tokenHealth
	_ = h.db.View(func(tx *bbolt.Tx) error {
		if data := tx.Bucket(buckets.Health).Get(healthKey(kind, token)); data != nil {
			return json.Unmarshal(data, &th)
		}
		return nil
	})
	return th
}

func (h *Health) put(kind savetube.Kind, token Token, th tokenHealth) error {
	data, err := json.Marshal(th)
	if err != nil {
		return err
	}
	return h.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(buckets.Health).Put(healthKey(kind, token), data)
	})
}

// RecordFailure bumps the failure counter for a token. Anonymous trials are
// not tracked; there is nothing to rotate away from.
func (h *Health) RecordFailure(kind savetube.Kind, token Token) error {
	if token.IsAnonymous() {
		return nil
	}
	th := h.get(kind, token)
	th.Failures++
	th.LastFailure = time.Now()
	return h.put(kind, token, th)
}

// RecordSuccess resets the failure counter for a token.
func (h *Health) RecordSuccess(kind savetube.Kind, token Token) error {
	if token.IsAnonymous() {
		return nil
	}
	th := h.get(kind, token)
	th.Failures = 0
	th.Successes++
	return h.put(kind, token, th)
}

// Order returns the tokens sorted ascending by recorded failure count,
// preserving the incoming order between equals.
func (h *Health) Order(kind savetube.Kind, tokens []Token) []Token {
	ordered := make([]Token, len(tokens))
	copy(ordered, tokens)
	sort.SliceStable(ordered, func(i, j int) bool {
		return h.get(kind, ordered[i]).Failures < h.get(kind, ordered[j]).Failures
	})
	return ordered
}

// OrderedSource wraps a Source, reordering its tokens by health. A nil Health
// passes the underlying order through.
type OrderedSource struct {
	Source Source
	Health *Health
}

func (s OrderedSource) List(kind savetube.Kind) ([]Token, error) {
	tokens, err := s.Source.List(kind)
	if err != nil || s.Health == nil {
		return tokens, err
	}
	return s.Health.Order(kind, tokens), nil
}
