package inbuilt

import (
	"github.com/indigo-web/kiln/http"
	"github.com/indigo-web/kiln/http/method"
)

// Get is a shortcut for Route(method.GET, ...)
func (r *Router) Get(path string, handler http.Handler) *Router {
	return r.Route(method.GET, path, handler)
}

// Put is a shortcut for Route(method.PUT, ...)
func (r *Router) Put(path string, handler http.Handler) *Router {
	return r.Route(method.PUT, path, handler)
}

// Post is a shortcut for Route(method.POST, ...)
func (r *Router) Post(path string, handler http.Handler) *Router {
	return r.Route(method.POST, path, handler)
}

// Head is a shortcut for Route(method.HEAD, ...)
func (r *Router) Head(path string, handler http.Handler) *Router {
	return r.Route(method.HEAD, path, handler)
}

// Patch is a shortcut for Route(method.PATCH, ...)
func (r *Router) Patch(path string, handler http.Handler) *Router {
	return r.Route(method.PATCH, path, handler)
}

// Delete is a shortcut for Route(method.DELETE, ...)
func (r *Router) Delete(path string, handler http.Handler) *Router {
	return r.Route(method.DELETE, path, handler)
}

// Options is a shortcut for Route(method.OPTIONS, ...)
func (r *Router) Options(path string, handler http.Handler) *Router {
	return r.Route(method.OPTIONS, path, handler)
}

// Any registers the route in the fallback trie, serving CONNECT, TRACE and extension
// methods. Methods having a trie of their own don't look into the fallback one.
func (r *Router) Any(path string, handler http.Handler) *Router {
	return r.Route(method.Unknown, path, handler)
}
