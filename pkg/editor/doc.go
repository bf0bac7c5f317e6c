// Package editor holds the state behind a visual document editor: the forest
// being edited, the selected node and the view mode.
//
// Placement actions (Drop, Move) are checked with validate.Validator.CanDrop
// before anything changes. The forest root is the document body, so only types
// the body accepts can be dropped there.
package editor
