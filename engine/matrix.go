package engine

import (
	"fmt"

	"github.com/ulugbekdev/savetube/identity"
)

// Variant is a client personality hint for the primary backend. The empty
// variant leaves the backend's default client selection in place.
type Variant string

// VideoVariants is the trial order for video-by-URL acquisition. Variant
// changes are the most behavior-altering axis, so they form the outermost
// loop of the matrix.
var VideoVariants = []Variant{"", "web", "mweb", "android", "ios"}

// Selector is one format/quality specification the backend may satisfy.
type Selector string

// Tuple is one concrete attempt: a client variant, an identity and a format
// selector.
type Tuple struct {
	Variant  Variant
	Identity identity.Token
	Selector Selector
}

func (t Tuple) String() string {
	variant := string(t.Variant)
	if variant == "" {
		variant = "default"
	}
	return fmt.Sprintf("%s/%s/%s", variant, t.Identity, t.Selector)
}

// Matrix lazily enumerates the ordered cross product of variants, identities
// and selectors: variant-major, identity-second, selector-minor. For each
// variant the whole identity×selector space is exhausted before the next
// client personality is tried.
type Matrix struct {
	variants   []Variant
	identities []identity.Token
	selectors  []Selector
	i, j, k    int
}

func NewMatrix(variants []Variant, identities []identity.Token, selectors []Selector) *Matrix {
	return &Matrix{
		variants:   variants,
		identities: identities,
		selectors:  selectors,
	}
}

// Len is the total number of tuples the matrix will produce.
func (m *Matrix) Len() int {
	return len(m.variants) * len(m.identities) * len(m.selectors)
}

// Next produces the next tuple, or false when the matrix is exhausted.
func (m *Matrix) Next() (Tuple, bool) {
	if m.i >= len(m.variants) || m.j >= len(m.identities) || m.k >= len(m.selectors) {
		return Tuple{}, false
	}
	t := Tuple{
		Variant:  m.variants[m.i],
		Identity: m.identities[m.j],
		Selector: m.selectors[m.k],
	}
	m.k++
	if m.k >= len(m.selectors) {
		m.k = 0
		m.j++
		if m.j >= len(m.identities) {
			m.j = 0
			m.i++
		}
	}
	return t, true
}
