package workflow

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Document number prefixes.
const (
	QuotationPrefix = "QUO"
	InvoicePrefix   = "INV"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewNumber returns PREFIX-YYYYMMDD-XXXXXXXX where the suffix is taken from the
// random part of a ULID.
func NewNumber(prefix string, now time.Time) string {
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(now), entropy)
	entropyMu.Unlock()

	s := id.String()
	// The first 10 characters encode the timestamp; the remaining 16 are entropy.
	suffix := s[len(s)-8:]
	return strings.Join([]string{prefix, now.UTC().Format("20060102"), suffix}, "-")
}
