package uridecode

import (
	"bytes"

	"github.com/indigo-web/kiln/http/status"
	"github.com/indigo-web/kiln/internal/hexconv"
)

// Decode translates percent-encoded octets into their true form. The result is appended to
// buff, unless src has nothing to decode, in which case src is returned as is.
func Decode(src, buff []byte) ([]byte, error) {
	if bytes.IndexByte(src, '%') == -1 {
		return src, nil
	}

	for i := bytes.IndexByte(src, '%'); i != -1; i = bytes.IndexByte(src, '%') {
		if i >= len(src)-2 {
			return nil, status.ErrURIDecoding
		}

		hi, ok1 := hexconv.Parse(src[i+1])
		lo, ok2 := hexconv.Parse(src[i+2])
		if !ok1 || !ok2 {
			return nil, status.ErrURIDecoding
		}

		buff = append(buff, src[:i]...)
		buff = append(buff, hi<<4|lo)
		src = src[i+3:]
	}

	return append(buff, src...), nil
}
