/*
Package mjtree is an engine for MJML email documents held as component trees.

It keeps a document as a forest of typed nodes, checks it against a catalog of
component types and their nesting rules, and converts between trees and markup
text without losing anything: serializing a parsed tree reproduces the same text.

# Concept

The catalog is the single source of truth. It lists every component type with its
default attributes, its editable attribute schema and the types it may contain or
be contained by. The tree model creates and rearranges nodes; the validator decides
whether a placement is allowed before an editor commits it.

# Usage

	eng := mjtree.New()
	ctx := context.Background()

	body, err := eng.ParseBody(ctx, markup)
	if err != nil {
		return err
	}
	if res := eng.ValidateBody(ctx, body); !res.Valid {
		for _, e := range res.Errors {
			fmt.Println(e.Message)
		}
	}
	fmt.Println(eng.WrapAsDocument(ctx, body))

Rendering to HTML needs a ports.Renderer such as the MJML API client in
pkg/adapters/mjmlapi, passed with WithRenderer. Templates are kept in a
ports.TemplateStore (memory, file or Redis) passed with WithTemplateStore.
*/
package mjtree
