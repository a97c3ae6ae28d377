package response

import (
	"github.com/indigo-web/kiln/http/mime"
	"github.com/indigo-web/kiln/http/status"
	"github.com/indigo-web/kiln/kv"
)

const DefaultContentType = mime.Plain

// Fields is everything a handler has set on a response, waiting to be serialized.
type Fields struct {
	Code        status.Code
	Status      status.Status
	ContentType string
	Headers     []kv.Pair
	Body        []byte
	// Shutdown asks for the connection to be closed right after the response is written.
	Shutdown bool
}

func (f *Fields) Clear() {
	f.Code = status.OK
	f.Status = ""
	f.ContentType = DefaultContentType
	f.Headers = f.Headers[:0]
	// the body may alias memory the response doesn't own, so it must never be appended to
	f.Body = nil
	f.Shutdown = false
}
