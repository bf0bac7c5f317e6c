package middleware

import "github.com/aretw0/mjtree/pkg/ports"

// Middleware allows wrapping a TemplateStore to add behavior.
type Middleware func(ports.TemplateStore) ports.TemplateStore

// Chain wraps store with mws. The first middleware is the outermost.
func Chain(store ports.TemplateStore, mws ...Middleware) ports.TemplateStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}

// watchable pairs a wrapped store with the Watch of the store it wraps.
type watchable struct {
	ports.TemplateStore
	ports.Watchable
}

// keepWatch lets wrapped report changes when next can.
func keepWatch(wrapped, next ports.TemplateStore) ports.TemplateStore {
	if w, ok := next.(ports.Watchable); ok {
		return watchable{TemplateStore: wrapped, Watchable: w}
	}
	return wrapped
}
