// Package catalog is the registry of known component types.
//
// Each NodeType carries display metadata, default attributes and content, the
// allowed parent and child tags and the editable-attribute schema. The built-in
// catalog ships as embedded YAML and is decoded once; custom catalogs can be loaded
// with Load or Parse. Catalogs never change after construction.
package catalog
