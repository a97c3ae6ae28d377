package inbuilt

import (
	"iter"
	"strings"

	"github.com/indigo-web/kiln/http"
	"github.com/indigo-web/kiln/internal/uridecode"
	"github.com/indigo-web/utils/uf"
)

const (
	paramKey    = ":"
	wildcardKey = "*"
)

type node struct {
	// param is the name of the parameter the ":" child binds. Only set on nodes stored under
	// the paramKey.
	param    string
	handler  http.Handler
	children map[string]*node
}

func newNode() *node {
	return new(node)
}

func (n *node) child(key string) *node {
	if n.children == nil {
		n.children = make(map[string]*node)
	}

	next, found := n.children[key]
	if !found {
		next = newNode()
		n.children[key] = next
	}

	return next
}

// Insert binds the handler to the path template. Empty segments are ignored. Re-inserting
// the same template overwrites the handler.
func (n *node) Insert(path string, handler http.Handler) {
	current := n

	for segment := range segments(path) {
		switch {
		case segment[0] == ':':
			_, found := current.children[paramKey]
			current = current.child(paramKey)
			if !found {
				current.param = segment[1:]
			}
		default:
			current = current.child(segment)
		}
	}

	current.handler = handler
}

// Match walks the percent-encoded path, decoding every segment on its own. Literal children
// win over the parameter one, which in turn wins over the wildcard. The wildcard terminates
// the walk no matter how many segments are left. Returns nil if the path isn't bound.
func (n *node) Match(path string, params http.Params) http.Handler {
	current := n

	for len(path) > 0 {
		var raw string
		raw, path = cutSegment(path)
		if len(raw) == 0 {
			continue
		}

		segment, ok := unescape(raw)
		if !ok {
			return nil
		}

		// reserved keys never match literally, even when they arrive encoded
		if next, found := current.children[segment]; found && !isReserved(segment) {
			current = next
			continue
		}

		if next, found := current.children[paramKey]; found {
			if len(next.param) > 0 {
				params.Add(next.param, segment)
			}

			current = next
			continue
		}

		if next, found := current.children[wildcardKey]; found {
			if len(path) > 0 {
				if segment, ok = unescape(raw + "/" + path); !ok {
					return nil
				}
			}

			params.Add(wildcardKey, segment)
			return next.handler
		}

		return nil
	}

	return current.handler
}

func isReserved(segment string) bool {
	return segment == paramKey || segment == wildcardKey
}

// unescape percent-decodes a single segment. Segments without escapes are returned as is.
func unescape(segment string) (string, bool) {
	if strings.IndexByte(segment, '%') == -1 {
		return segment, true
	}

	decoded, err := uridecode.Decode(uf.S2B(segment), nil)
	if err != nil {
		return "", false
	}

	return uf.B2S(decoded), true
}

// cutSegment returns the first segment of the path and the rest after the slash.
func cutSegment(path string) (segment, rest string) {
	path = strings.TrimLeft(path, "/")
	segment, rest, _ = strings.Cut(path, "/")
	return segment, rest
}

// segments iterates over non-empty path segments.
func segments(path string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for len(path) > 0 {
			var segment string
			segment, path = cutSegment(path)
			if len(segment) > 0 && !yield(segment) {
				return
			}
		}
	}
}
