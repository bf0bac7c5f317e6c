package domain

// RenderResult is the outcome of converting markup to HTML.
// Errors lists problems the render service found in the markup.
type RenderResult struct {
	HTML   string   `json:"html"`
	Errors []string `json:"errors"`
}

// OK reports whether the service reported no markup errors.
func (r *RenderResult) OK() bool {
	return len(r.Errors) == 0
}
