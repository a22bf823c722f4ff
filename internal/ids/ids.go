package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier suitable for storage keys.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewPrefixed returns an identifier with a short type prefix, e.g. "evt_01H...".
// Used for audit events so log consumers can tell id kinds apart.
func NewPrefixed(prefix string) string {
	if prefix == "" {
		return New()
	}
	return prefix + "_" + New()
}
