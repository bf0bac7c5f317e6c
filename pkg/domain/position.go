package domain

import (
	"fmt"
	"strconv"
	"strings"
)

type positionKind uint8

const (
	positionEnd positionKind = iota
	positionStart
	positionIndex
)

// Position says where an inserted node lands among its new siblings.
// The zero value is End.
type Position struct {
	kind  positionKind
	index int
}

var (
	// End appends after the last sibling.
	End = Position{kind: positionEnd}
	// Start prepends before the first sibling.
	Start = Position{kind: positionStart}
)

// At returns a zero-based index position. Out of range indexes clamp to the nearest end.
func At(i int) Position {
	return Position{kind: positionIndex, index: i}
}

// Index returns the numeric index and true for positions built with At.
func (p Position) Index() (int, bool) {
	return p.index, p.kind == positionIndex
}

// Resolve maps the position onto a sibling list of length n.
func (p Position) Resolve(n int) int {
	switch p.kind {
	case positionStart:
		return 0
	case positionIndex:
		return min(max(p.index, 0), n)
	default:
		return n
	}
}

func (p Position) String() string {
	switch p.kind {
	case positionStart:
		return "start"
	case positionIndex:
		return strconv.Itoa(p.index)
	default:
		return "end"
	}
}

// ParsePosition accepts "end", "start" or a decimal index. Empty means End.
func ParsePosition(s string) (Position, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "end":
		return End, nil
	case "start":
		return Start, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return End, fmt.Errorf("invalid position %q: want start, end or an index", s)
	}
	return At(i), nil
}

// MarshalText implements encoding.TextMarshaler.
func (p Position) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Position) UnmarshalText(text []byte) error {
	parsed, err := ParsePosition(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
