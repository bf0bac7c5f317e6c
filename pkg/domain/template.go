package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Mode is the editor layout a template was last edited in.
type Mode string

const (
	ModeVisual Mode = "visual"
	ModeCode   Mode = "code"
	ModeSplit  Mode = "split"
)

// ParseMode validates a mode name. Empty means ModeCode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return ModeCode, nil
	case ModeVisual, ModeCode, ModeSplit:
		return m, nil
	default:
		return "", fmt.Errorf("invalid mode %q: want visual, code or split", s)
	}
}

// Template is a named markup document.
// Markup is canonical; Tree is an optional cache that saves a re-parse.
type Template struct {
	Name         string    `json:"name" validate:"required,max=200,templatename"`
	Markup       string    `json:"markup" validate:"required,markup"`
	Tree         Forest    `json:"tree,omitempty"`
	Mode         Mode      `json:"mode,omitempty" validate:"omitempty,oneof=visual code split"`
	CreatedAt    time.Time `json:"created_at"`
	LastEditedAt time.Time `json:"last_edited_at"`
}

// Stamp sets the edit timestamp and, for new templates, the creation timestamp.
// previous is the stored version being replaced, or nil.
func (t *Template) Stamp(previous *Template, now time.Time) {
	t.LastEditedAt = now
	switch {
	case previous != nil && !previous.CreatedAt.IsZero():
		t.CreatedAt = previous.CreatedAt
	case t.CreatedAt.IsZero():
		t.CreatedAt = now
	}
	if t.Mode == "" {
		t.Mode = ModeCode
	}
}

// Clone returns a copy that shares no mutable state with t.
func (t *Template) Clone() *Template {
	out := *t
	out.Tree = t.Tree.Clone()
	return &out
}

// SortByRecent orders templates most recently edited first, then by name.
func SortByRecent(list []*Template) {
	slices.SortStableFunc(list, func(a, b *Template) int {
		if c := b.LastEditedAt.Compare(a.LastEditedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
}
