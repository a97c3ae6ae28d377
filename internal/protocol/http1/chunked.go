package http1

import (
	"bytes"

	"github.com/indigo-web/kiln/config"
	"github.com/indigo-web/kiln/http/status"
	"github.com/indigo-web/kiln/internal/buffer"
	"github.com/indigo-web/kiln/internal/hexconv"
)

// maxChunkLengthDigits limits a chunk length to what fits into 64 bits.
const maxChunkLengthDigits = 64 / 4

// Chunk is a single decoded frame of a chunked body.
type Chunk struct {
	// Complete is false when the frame isn't fully buffered yet.
	Complete bool
	// IsLast marks the zero-length terminating chunk. Its payload is always empty.
	IsLast bool
	// Payload locates the chunk data in the decoded slice.
	Payload buffer.Span
}

// ChunkDecoder decodes chunked transfer-encoded bodies frame by frame. It holds no state
// between calls: a frame is either decoded as a whole or not at all.
type ChunkDecoder struct {
	maxChunkSize uint64
	maxLineSize  int
}

func NewChunkDecoder(cfg *config.Config) ChunkDecoder {
	return ChunkDecoder{
		maxChunkSize: cfg.Body.MaxSize,
		maxLineSize:  cfg.Headers.MaxTrailerSize,
	}
}

// Decode decodes one frame from the beginning of data. Chunk extensions are ignored, bare
// LF line terminators are tolerated. Trailer field lines following the terminating chunk
// are consumed along with it, but their content is discarded. When the frame isn't
// complete, nothing is consumed.
func (c ChunkDecoder) Decode(data []byte) (chunk Chunk, consumed int, err error) {
	var (
		length uint64
		offset int
	)

	for ; offset < len(data); offset++ {
		value, ok := hexconv.Parse(data[offset])
		if !ok {
			break
		}

		if offset == maxChunkLengthDigits {
			return chunk, 0, status.ErrBadChunk
		}

		length = length<<4 | uint64(value)
	}

	if offset == len(data) {
		return chunk, 0, nil
	}

	if offset == 0 {
		return chunk, 0, status.ErrBadChunk
	}

	if length > c.maxChunkSize {
		return chunk, 0, status.ErrBodyTooLarge
	}

	switch data[offset] {
	case ';':
		lf := bytes.IndexByte(data[offset:], '\n')
		if lf == -1 {
			if len(data)-offset > c.maxLineSize {
				return chunk, 0, status.ErrBadChunk
			}

			return chunk, 0, nil
		}

		offset += lf + 1
	case '\r':
		if offset+1 == len(data) {
			return chunk, 0, nil
		}

		if data[offset+1] != '\n' {
			return chunk, 0, status.ErrBadChunk
		}

		offset += 2
	case '\n':
		offset++
	default:
		return chunk, 0, status.ErrBadChunk
	}

	if length == 0 {
		return c.trailer(data, offset)
	}

	// at least a single LF must follow the payload
	if length >= uint64(len(data)-offset) {
		return chunk, 0, nil
	}

	end := offset + int(length)
	chunk.Payload = buffer.Span{Start: offset, End: end}

	switch data[end] {
	case '\r':
		if end+1 == len(data) {
			return Chunk{}, 0, nil
		}

		if data[end+1] != '\n' {
			return Chunk{}, 0, status.ErrBadChunk
		}

		consumed = end + 2
	case '\n':
		consumed = end + 1
	default:
		return Chunk{}, 0, status.ErrBadChunk
	}

	chunk.Complete = true

	return chunk, consumed, nil
}

func (c ChunkDecoder) trailer(data []byte, offset int) (chunk Chunk, consumed int, err error) {
	begin := offset

	for offset < len(data) {
		switch data[offset] {
		case '\n':
			return Chunk{Complete: true, IsLast: true}, offset + 1, nil
		case '\r':
			if offset+1 == len(data) {
				return chunk, 0, nil
			}

			if data[offset+1] != '\n' {
				return chunk, 0, status.ErrBadChunk
			}

			return Chunk{Complete: true, IsLast: true}, offset + 2, nil
		}

		lf := bytes.IndexByte(data[offset:], '\n')
		if lf == -1 {
			break
		}

		offset += lf + 1
		if offset-begin > c.maxLineSize {
			return chunk, 0, status.ErrHeaderFieldsTooLarge
		}
	}

	if len(data)-begin > c.maxLineSize {
		return chunk, 0, status.ErrHeaderFieldsTooLarge
	}

	return chunk, 0, nil
}
