package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New returns a ULID. Ids sort by creation time, which the audit log
// listing relies on.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
