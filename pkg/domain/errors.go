package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownNodeType is returned when a tag is not registered in the catalog.
var ErrUnknownNodeType = errors.New("unknown node type")

// ErrNotFound is returned when an operation references a node id that does not exist.
var ErrNotFound = errors.New("node not found")

// ErrParentNotFound is returned when an insertion or move targets a missing parent.
var ErrParentNotFound = errors.New("parent not found")

// ErrTemplateNotFound is returned when a template name cannot be found in the store.
var ErrTemplateNotFound = errors.New("template not found")

// ErrReadOnly is returned by stores that refuse writes.
var ErrReadOnly = errors.New("template store is read-only")

// ParseError reports malformed markup.
type ParseError struct {
	Line   int    // 1-based, 0 when unknown
	Reason string // human-readable
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Reason)
	}
	return "parse error: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NestingKind classifies a containment violation.
type NestingKind string

const (
	NestingUnknownType      NestingKind = "unknown_type"
	NestingDisallowedParent NestingKind = "disallowed_parent"
	NestingDisallowedChild  NestingKind = "disallowed_child"
	NestingLeafWithChildren NestingKind = "leaf_with_children"
)

// NestingError is an advisory containment violation found by tree validation.
// It is collected, never returned as a failure.
type NestingError struct {
	NodeID    string      `json:"node_id"`
	Tag       string      `json:"tag"`
	ParentTag string      `json:"parent_tag,omitempty"`
	Kind      NestingKind `json:"kind"`
	Message   string      `json:"message"`
}

func (e NestingError) Error() string {
	return e.Message
}
