/*
Package dsl provides a fluent Go builder for component forests.

It lets callers describe a document in code instead of markup text. Nodes are
created through a tree.Model, so catalog defaults are filled in and every node
gets a fresh id. This is useful for tests, premade templates and examples.

Example usage:

	b := dsl.New(nil)

	b.Add("mj-section").Attr("background-color", "#f0f0f0").
		Add("mj-column").
		Add("mj-text").Content("Hello").Up().
		Add("mj-button").Attr("href", "https://example.com").Content("Go")

	forest, err := b.Build()
	// ... serialize with markup.NewSerializer().WrapAsDocument(forest)
*/
package dsl
