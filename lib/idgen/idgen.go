// Package idgen provides identifier generators used to fill unset primary
// identifiers.
package idgen

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Generator produces collision-resistant unique strings.
type Generator interface {
	New() string
}

// Func adapts a function to Generator.
type Func func() string

// New calls f.
func (f Func) New() string { return f() }

// UUID generates random (v4) UUIDs.
type UUID struct{}

// New generates a new UUID v4.
func (UUID) New() string {
	return uuid.New().String()
}

// ULID generates lexicographically sortable identifiers, lower-cased so they
// read like the rest of the wire format.
type ULID struct{}

// New generates a new ULID.
func (ULID) New() string {
	return strings.ToLower(ulid.Make().String())
}

// Sequential generates sequential IDs (for testing).
type Sequential struct {
	prefix  string
	counter uint64
}

// NewSequential creates a sequential ID generator.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New generates the next sequential ID.
func (s *Sequential) New() string {
	n := atomic.AddUint64(&s.counter, 1)
	return s.prefix + strconv.FormatUint(n, 10)
}

// Reset resets the counter (for testing).
func (s *Sequential) Reset() {
	atomic.StoreUint64(&s.counter, 0)
}

// Default is the generator used when a class does not configure one.
var Default Generator = UUID{}

// Ensure interface compliance.
var (
	_ Generator = UUID{}
	_ Generator = ULID{}
	_ Generator = (*Sequential)(nil)
	_ Generator = Func(nil)
)
