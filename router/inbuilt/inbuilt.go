package inbuilt

import (
	"errors"
	"fmt"

	"github.com/indigo-web/kiln/http"
	"github.com/indigo-web/kiln/http/method"
	"github.com/indigo-web/kiln/router"
)

// ErrNoDefaultHandler is returned when a request matches no route and there's no default
// handler to fall back to.
var ErrNoDefaultHandler = errors.New("no default handler registered")

var _ router.Router = new(Router)

// Router is a built-in implementation of router.Router. Routes are stored in a trie per
// method, keyed by path segments. A segment may be a literal, a named parameter (:name) or
// a wildcard (*) swallowing the rest of the path. Methods without a dedicated trie, as well
// as routes registered via Any, share a single fallback trie.
type Router struct {
	roots    [method.Count + 1]*node
	fallback *node
	// defaultHandler serves every request that matched nothing.
	defaultHandler http.Handler
	started        bool
}

// New constructs a new instance of inbuilt router
func New() *Router {
	r := &Router{
		fallback: newNode(),
	}

	for _, m := range dedicated {
		r.roots[m] = newNode()
	}

	return r
}

// dedicated are methods having a trie of their own.
var dedicated = []method.Method{
	method.GET, method.PUT, method.POST, method.HEAD, method.PATCH, method.DELETE, method.OPTIONS,
}

func (r *Router) root(m method.Method) *node {
	if root := r.roots[m]; root != nil {
		return root
	}

	return r.fallback
}

// Route registers the handler for the method and the path template. The "*" template sets
// the default handler instead. Registering routes after the server has started panics.
func (r *Router) Route(m method.Method, path string, handler http.Handler) *Router {
	if r.started {
		panic(fmt.Sprintf("inbuilt: route %s %s registered after the server started", m, path))
	}

	if handler == nil {
		panic(fmt.Sprintf("inbuilt: nil handler for %s %s", m, path))
	}

	switch path {
	case "*":
		r.defaultHandler = handler
	case "/":
		r.root(m).handler = handler
	default:
		r.root(m).Insert(path, handler)
	}

	return r
}

// Default sets the handler for requests matching no route.
func (r *Router) Default(handler http.Handler) *Router {
	return r.Route(method.Unknown, "*", handler)
}

// OnStart freezes the router. A missing default handler refuses to start.
func (r *Router) OnStart() error {
	if r.defaultHandler == nil {
		return ErrNoDefaultHandler
	}

	r.started = true

	return nil
}

// Find resolves the request's RawPath in the trie of the request method. Segments are split
// before being percent-decoded, so an encoded slash stays inside its segment. Path parameters
// are added to the request in the order they appear. A miss, or a matched template without a
// handler, results in the default handler.
func (r *Router) Find(request *http.Request) (http.Handler, error) {
	root := r.root(request.Method)

	var handler http.Handler
	if request.RawPath == "/" {
		handler = root.handler
	} else {
		handler = root.Match(request.RawPath, request.Params)
	}

	if handler != nil {
		return handler, nil
	}

	request.Params.Clear()

	if r.defaultHandler == nil {
		return nil, ErrNoDefaultHandler
	}

	return r.defaultHandler, nil
}
