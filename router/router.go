package router

import "github.com/indigo-web/kiln/http"

// Router resolves requests into handlers. It's built before the server starts and is read-only
// afterward, so a single instance is safely shared by all the connections.
type Router interface {
	// OnStart is called once before the first connection is accepted. An error refuses
	// to start the server.
	OnStart() error
	// Find returns the handler for the request and fills its path parameters. A non-nil
	// error is fatal for the connection the request came from.
	Find(request *http.Request) (http.Handler, error)
}
