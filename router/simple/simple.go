package simple

import (
	"errors"

	"github.com/indigo-web/kiln/http"
	"github.com/indigo-web/kiln/router"
)

var _ router.Router = Router{}

// Router sends every request into a single handler.
type Router struct {
	handler http.Handler
}

func New(handler http.Handler) Router {
	return Router{handler: handler}
}

func (r Router) OnStart() error {
	if r.handler == nil {
		return errors.New("simple router: no handler")
	}

	return nil
}

func (r Router) Find(*http.Request) (http.Handler, error) {
	return r.handler, nil
}
