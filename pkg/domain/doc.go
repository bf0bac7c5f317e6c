/*
Package domain contains the core entities of the mjtree engine.

It defines the component tree (Nodes, their ordered Attributes and the Forest that owns
them), insertion positions, identity generation and the error kinds shared by every other
package. This package is kept pure and free of I/O, following Hexagonal Architecture
principles.

# Key Entities

  - Node: One element of the component tree (tag, attributes, children, content).
  - Forest: The ordered top-level sequence of Nodes that represents a document body.
  - Attributes: Insertion-ordered key/value pairs, stable across re-serialization.
  - Position: Where an inserted node lands among its siblings (Start, End or At(i)).
  - Template: A named markup document as persisted by template stores.
*/
package domain
