// Package markup converts between component forests and their textual markup.
//
// The Serializer produces deterministic, two-space indented text. The Parser is
// its inverse, built on encoding/xml in strict mode with HTML entities accepted.
// Elements of opaque catalog types keep their inner markup verbatim as content and
// are never descended into.
//
// Parsing normalizes: content is trimmed, comments are dropped and catalog
// defaults are not filled in, so
//
//	ToMarkup(ParseFragment(ToMarkup(f))) == ToMarkup(f)
//
// holds byte for byte.
package markup
