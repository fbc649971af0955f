package mpa

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIngestBufferFIFO(t *testing.T) {
	var b ingestBuffer
	b.Append([]byte("abc"))
	b.Append([]byte("def"))

	assert.Equal(t, 6, b.Len())
	assert.Equal(t, []byte("ab"), b.Peek(2))
	assert.Equal(t, []byte("abcdef"), b.Peek(100))

	out := b.Next(4)
	assert.Equal(t, []byte("abcd"), out)
	assert.Equal(t, 2, b.Len())

	b.Discard(2)
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Peek(1))
}

func TestIngestBufferNextReturnsCopy(t *testing.T) {
	var b ingestBuffer
	b.Append([]byte{1, 2, 3, 4})
	out := b.Next(2)
	out[0] = 9
	assert.Equal(t, []byte{3, 4}, b.Peek(2))
}

func TestIngestBufferCompaction(t *testing.T) {
	var b ingestBuffer
	chunk := bytes.Repeat([]byte{0x5A}, 1000)
	var want []byte

	for i := 0; i < 50; i++ {
		b.Append(chunk)
		want = append(want, chunk...)
		b.Discard(900)
		want = want[900:]
		assert.Equal(t, len(want), b.Len())
	}

	assert.Equal(t, want, b.Peek(b.Len()))
	assert.Less(t, b.off, compactThreshold+1000)
}
