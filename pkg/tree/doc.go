// Package tree implements the component Tree Model: catalog-backed node creation
// and the find, update, insert, remove and move operations a drag-and-drop editor
// performs on a forest.
//
// Operations report a missing node id with a false result rather than an error,
// since stale ids are an expected, transient condition during interactive editing.
// Containment rules are not enforced here; see package validate.
package tree
