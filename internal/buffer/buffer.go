package buffer

// Span is a half-open range [Start, End) of offsets into the live region of a Buffer. It
// stays valid only until the next Consume, Split or Grow call.
type Span struct {
	Start, End int
}

func (s Span) Len() int {
	return s.End - s.Start
}

// Buffer accumulates bytes read from a socket. Unconsumed bytes always sit at the beginning
// of the memory, so spans taken from Bytes() are offsets from the first unconsumed byte.
// The buffer grows on demand and never shrinks.
type Buffer struct {
	memory []byte
}

func New(initialSize int) *Buffer {
	return &Buffer{
		memory: make([]byte, 0, initialSize),
	}
}

// Bytes returns the unconsumed data.
func (b *Buffer) Bytes() []byte {
	return b.memory
}

// Slice returns the bytes covered by the span.
func (b *Buffer) Slice(span Span) []byte {
	return b.memory[span.Start:span.End]
}

// String returns a copy of the bytes covered by the span. Unlike Slice, the result outlives
// any later mutation.
func (b *Buffer) String(span Span) string {
	return string(b.memory[span.Start:span.End])
}

// Len returns the number of unconsumed bytes.
func (b *Buffer) Len() int {
	return len(b.memory)
}

// Spare returns the writable tail of the memory. It's empty when Grow is due.
func (b *Buffer) Spare() []byte {
	return b.memory[len(b.memory):cap(b.memory)]
}

// Commit marks n bytes of the spare tail as filled.
func (b *Buffer) Commit(n int) {
	b.memory = b.memory[:len(b.memory)+n]
}

// Full reports whether there's no spare capacity left.
func (b *Buffer) Full() bool {
	return len(b.memory) == cap(b.memory)
}

// Grow extends the capacity by n bytes, keeping the unconsumed data.
func (b *Buffer) Grow(n int) {
	grown := make([]byte, len(b.memory), cap(b.memory)+n)
	copy(grown, b.memory)
	b.memory = grown
}

// Consume drops the first n bytes, moving the rest to the beginning.
func (b *Buffer) Consume(n int) {
	if n >= len(b.memory) {
		b.memory = b.memory[:0]
		return
	}

	b.memory = b.memory[:copy(b.memory, b.memory[n:])]
}

// Split detaches the first n bytes into a separate slice owned by the caller and consumes
// them.
func (b *Buffer) Split(n int) []byte {
	n = min(n, len(b.memory))
	detached := make([]byte, n)
	copy(detached, b.memory[:n])
	b.Consume(n)

	return detached
}
