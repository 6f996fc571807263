// Package identity supplies the ordered authentication contexts an
// acquisition attempt can present to the upstream platform. A token is an
// opaque reference to a cookie jar on disk; the zero token is the anonymous
// identity. Tokens are never interchangeable: ban state differs per identity,
// so each one is a distinct trial point.
package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ulugbekdev/savetube"
)

// Token is an opaque handle to an authentication context. The zero value is
// the anonymous identity.
type Token struct {
	// Name identifies the token in logs and in the health store.
	Name string
	// CookieFile is the path of the Netscape-format cookie jar, empty for
	// the anonymous identity.
	CookieFile string
}

// Anonymous is the sentinel identity carrying no credentials.
var Anonymous = Token{}

func (t Token) IsAnonymous() bool { return t.CookieFile == "" }

func (t Token) String() string {
	if t.IsAnonymous() {
		return "anonymous"
	}
	return t.Name
}

// Source lists candidate identities for a media kind, in trial order. The
// returned sequence may be empty; it never includes the anonymous identity,
// which call sites splice in themselves according to their own policy.
type Source interface {
	List(kind savetube.Kind) ([]Token, error)
}

// DirSource reads tokens from cookie files on disk: every *.txt file under
// <Root>/<kind>/ is one identity, in lexicographic order.
type DirSource struct {
	Root string
}

func (s DirSource) List(kind savetube.Kind) ([]Token, error) {
	dir := filepath.Join(s.Root, string(kind))
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	var tokens []Token
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		tokens = append(tokens, Token{
			Name:       strings.TrimSuffix(entry.Name(), ".txt"),
			CookieFile: filepath.Join(dir, entry.Name()),
		})
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].Name < tokens[j].Name })
	return tokens, nil
}

// Static is a fixed token list, mainly for tests.
type Static []Token

func (s Static) List(savetube.Kind) ([]Token, error) { return s, nil }
