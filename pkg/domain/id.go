package domain

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator hands out node ids. Ids are never reused by the same generator.
type IDGenerator interface {
	NewID() string
}

// Sequence generates "<prefix>-N" ids from a monotonically increasing counter.
// Safe for concurrent use.
type Sequence struct {
	prefix string
	n      atomic.Uint64
}

// NewSequence creates a counter-based generator. An empty prefix defaults to "comp".
func NewSequence(prefix string) *Sequence {
	if prefix == "" {
		prefix = "comp"
	}
	return &Sequence{prefix: prefix}
}

// NewID returns the next id of the sequence.
func (s *Sequence) NewID() string {
	return s.prefix + "-" + strconv.FormatUint(s.n.Add(1), 10)
}

// UUIDGenerator generates random ids that stay unique across processes.
type UUIDGenerator struct {
	prefix string
}

// NewUUIDGenerator creates a random-id generator. An empty prefix yields bare UUIDs.
func NewUUIDGenerator(prefix string) *UUIDGenerator {
	return &UUIDGenerator{prefix: prefix}
}

// NewID returns a fresh random id.
func (g *UUIDGenerator) NewID() string {
	if g.prefix == "" {
		return uuid.NewString()
	}
	return g.prefix + "-" + uuid.NewString()
}
