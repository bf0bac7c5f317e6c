package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventParse     EventType = "parse"
	EventSerialize EventType = "serialize"
	EventMutation  EventType = "mutation"
	EventValidate  EventType = "validate"
	EventRender    EventType = "render"
)

// Mutation operations reported by MutationEvent.
const (
	OpInsert  = "insert"
	OpRemove  = "remove"
	OpMove    = "move"
	OpAttrs   = "update_attributes"
	OpContent = "update_content"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// ParseEvent reports a markup to tree conversion.
type ParseEvent struct {
	EventBase
	Bytes    int           `json:"bytes"`
	Nodes    int           `json:"nodes"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// SerializeEvent reports a tree to markup conversion.
type SerializeEvent struct {
	EventBase
	Nodes int `json:"nodes"`
	Bytes int `json:"bytes"`
}

// MutationEvent reports a tree mutation. OK is false when the target was not found.
type MutationEvent struct {
	EventBase
	Op       string `json:"op"`
	NodeID   string `json:"node_id"`
	NodeType string `json:"node_type,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
	OK       bool   `json:"ok"`
}

// ValidationEvent reports a whole-tree validation run.
type ValidationEvent struct {
	EventBase
	Nodes      int `json:"nodes"`
	Violations int `json:"violations"`
}

// RenderEvent reports a completed remote render call.
type RenderEvent struct {
	EventBase
	Token    uint64        `json:"token"`
	Duration time.Duration `json:"duration"`
	Errors   int           `json:"errors"`
	Stale    bool          `json:"stale"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnParse     func(context.Context, *ParseEvent)
	OnSerialize func(context.Context, *SerializeEvent)
	OnMutation  func(context.Context, *MutationEvent)
	OnValidate  func(context.Context, *ValidationEvent)
	OnRender    func(context.Context, *RenderEvent)
}

// Combine returns hooks that call every non-nil callback of each input in order.
func Combine(hooks ...LifecycleHooks) LifecycleHooks {
	var out LifecycleHooks
	for _, h := range hooks {
		out.OnParse = chain(out.OnParse, h.OnParse)
		out.OnSerialize = chain(out.OnSerialize, h.OnSerialize)
		out.OnMutation = chain(out.OnMutation, h.OnMutation)
		out.OnValidate = chain(out.OnValidate, h.OnValidate)
		out.OnRender = chain(out.OnRender, h.OnRender)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
