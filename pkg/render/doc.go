// Package render turns document markup into HTML through a ports.Renderer.
//
// Previews are usually requested on every edit, and responses may arrive out of
// order. A Dispatcher stamps each request with a token so callers can discard
// any response that is not the latest:
//
//	d := render.NewDispatcher(client, render.WithMinify())
//	f := d.Submit(ctx, markup)
//	res, err := f.Wait(ctx)
//	if err == nil && !f.Stale() {
//		show(res.HTML)
//	}
package render
