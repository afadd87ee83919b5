package mqtt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingBufferWriteReadRoundTrip(t *testing.T) {
	r := newRingBuffer(8)
	require.Equal(t, 8, r.free())

	n := r.write([]byte("hello"))
	require.Equal(t, 5, n)
	require.Equal(t, 5, r.len())
	require.Equal(t, 3, r.free())

	block := r.linearReadBlock()
	require.Equal(t, []byte("hello"), block)
	r.skip(len(block))
	require.True(t, r.isEmpty())
}

func TestRingBufferWrapsAround(t *testing.T) {
	r := newRingBuffer(4)
	require.Equal(t, 4, r.free())

	r.write([]byte("ab"))
	r.skip(len(r.linearReadBlock()))
	require.True(t, r.isEmpty())

	n := r.write([]byte("cdef"))
	require.Equal(t, 4, n)
	require.True(t, r.isFull())

	// head has wrapped past the end of the backing array; tail has not, so
	// the first linear block is the tail-to-end run, not the whole buffer.
	first := r.linearReadBlock()
	r.skip(len(first))
	if !r.isEmpty() {
		second := r.linearReadBlock()
		r.skip(len(second))
	}
	require.True(t, r.isEmpty())
}

func TestRingBufferFreeWhenFull(t *testing.T) {
	r := newRingBuffer(4)
	r.write([]byte("abcd"))
	require.Equal(t, 0, r.free())
	n := r.write([]byte("e"))
	require.Equal(t, 0, n)
}

func TestRingBufferReset(t *testing.T) {
	r := newRingBuffer(8)
	r.write([]byte("abc"))
	r.reset()
	require.True(t, r.isEmpty())
	require.Equal(t, r.free(), len(r.buf))
}

func TestNextPowerOfTwo(t *testing.T) {
	cases := map[int]int{0: 1, 1: 1, 2: 2, 3: 4, 4: 4, 5: 8, 1024: 1024, 1025: 2048}
	for in, want := range cases {
		require.Equal(t, want, nextPowerOfTwo(in), "in=%d", in)
	}
}
