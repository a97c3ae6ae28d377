package http

// readState tells what the bytes at the beginning of the buffer are.
type readState uint8

const (
	// eRequest expects a request head.
	eRequest readState = iota
	// eBody expects the rest of a body framed by Content-Length.
	eBody
	// eChunk expects the next frame of a chunked body.
	eChunk
)

// processState tells whether a handler call is pending. Exactly one of them holds at a time.
type processState uint8

const (
	// eReady means the request is owned by the connection, which is reading and parsing.
	eReady processState = iota
	// eProcessing means the request is handed over to a handler.
	eProcessing
)
