package identity

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Monotonic within a millisecond, so ids minted in a burst still sort in
// creation order.
var idEntropy = &ulid.LockedMonotonicReader{MonotonicReader: ulid.Monotonic(rand.Reader, 0)}

// NewAccountID returns a new ULID string (26 chars) stamped with now.
func NewAccountID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ulid.New(ulid.Timestamp(now), idEntropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
