package http

import (
	"strings"

	"github.com/indigo-web/utils/strcomp"
)

// tokenEqual compares a comma-separated header value against a single token
// case-insensitively, e.g. "Keep-Alive, Upgrade" contains "keep-alive".
func tokenEqual(value, token string) bool {
	for len(value) > 0 {
		var elem string
		comma := strings.IndexByte(value, ',')
		if comma == -1 {
			elem, value = value, ""
		} else {
			elem, value = value[:comma], value[comma+1:]
		}

		if strcomp.EqualFold(strings.TrimSpace(elem), token) {
			return true
		}
	}

	return false
}
