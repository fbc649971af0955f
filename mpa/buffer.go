package mpa

// compactThreshold is the minimum consumed prefix worth reclaiming.
const compactThreshold = 4096

// ingestBuffer is a FIFO byte queue. Producers append at the back, the
// extractor consumes from the front by advancing an offset; the consumed
// prefix is reclaimed lazily on append.
type ingestBuffer struct {
	data []byte
	off  int
}

// Len returns the number of unconsumed bytes.
func (b *ingestBuffer) Len() int {
	return len(b.data) - b.off
}

// Append adds p to the back of the queue.
func (b *ingestBuffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	if b.off >= compactThreshold && b.off >= len(b.data)/2 {
		n := copy(b.data, b.data[b.off:])
		b.data = b.data[:n]
		b.off = 0
	}
	b.data = append(b.data, p...)
}

// Peek returns a view of the first n bytes without consuming them. The view
// is only valid until the next Append.
func (b *ingestBuffer) Peek(n int) []byte {
	if n > b.Len() {
		n = b.Len()
	}
	return b.data[b.off : b.off+n]
}

// Next consumes n bytes and returns a copy of them.
func (b *ingestBuffer) Next(n int) []byte {
	out := make([]byte, n)
	copy(out, b.data[b.off:b.off+n])
	b.Discard(n)
	return out
}

// Discard consumes n bytes.
func (b *ingestBuffer) Discard(n int) {
	b.off += n
	if b.off >= len(b.data) {
		b.data = b.data[:0]
		b.off = 0
	}
}
