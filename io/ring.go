package io

import (
	"iter"
)

// RING_DEFAULT_CAPACITY is the default capacity in bytes of a new ring.
const RING_DEFAULT_CAPACITY = 256

// Ring is a fixed capacity byte FIFO with separate read and write
// positions.
type Ring struct {
	Capacity int // Capacity in bytes.

	ReadIndex  int
	WriteIndex int
	Size       int
	Data       []byte
}

// Rewind empties the ring, allocating its buffer at Capacity.
func (ring *Ring) Rewind() {
	if ring.Capacity == 0 {
		ring.Capacity = RING_DEFAULT_CAPACITY
	}
	ring.ReadIndex = 0
	ring.WriteIndex = 0
	ring.Size = 0
	ring.Data = make([]byte, ring.Capacity)
}

// Len is the number of bytes waiting to be received.
func (ring *Ring) Len() int {
	return ring.Size
}

// Full is true when Send would fail.
func (ring *Ring) Full() bool {
	return ring.Size >= ring.Capacity
}

// Peek returns the byte n positions from the read position.
func (ring *Ring) Peek(n int) (value byte, ok bool) {
	if n < 0 || n >= ring.Size {
		return
	}
	value = ring.Data[(ring.ReadIndex+n)%ring.Capacity]
	ok = true
	return
}

// Receive returns an iterator that removes and yields bytes until the
// ring is empty.
func (ring *Ring) Receive() iter.Seq[byte] {
	return func(yield func(value byte) bool) {
		for ring.Size > 0 {
			value := ring.Data[ring.ReadIndex]
			ring.ReadIndex++
			if ring.ReadIndex == ring.Capacity {
				ring.ReadIndex = 0
			}
			ring.Size--
			if !yield(value) {
				return
			}
		}
	}
}

// Send appends a byte at the write position.
// Returns ErrChannelFull if the ring has reached capacity.
func (ring *Ring) Send(value byte) (err error) {
	if ring.Data == nil {
		ring.Rewind()
	}

	if ring.Full() {
		err = ErrChannelFull
		return
	}

	ring.Data[ring.WriteIndex] = value

	ring.WriteIndex++
	if ring.WriteIndex == ring.Capacity {
		ring.WriteIndex = 0
	}
	ring.Size++

	return
}
