package audio

import "sync"

// RingBuffer is a thread-safe fixed-capacity byte FIFO used to regroup
// incoming PCM chunks into whole frames. One slot stays unused to tell full
// from empty, so a buffer of size n holds at most n-1 bytes.
type RingBuffer struct {
	buffer []byte
	size   int
	read   int
	write  int
	mu     sync.Mutex
}

// NewRingBuffer creates a new ring buffer with the specified size
func NewRingBuffer(size int) *RingBuffer {
	if size < 2 {
		size = 2
	}
	return &RingBuffer{
		buffer: make([]byte, size),
		size:   size,
	}
}

// Write copies as much of data as fits and returns the number of bytes written.
func (rb *RingBuffer) Write(data []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := rb.spaceLocked()
	if n > len(data) {
		n = len(data)
	}
	first := copy(rb.buffer[rb.write:], data[:n])
	if first < n {
		copy(rb.buffer, data[first:n])
	}
	rb.write = (rb.write + n) % rb.size
	return n
}

// Read copies up to len(data) buffered bytes into data and returns the count.
func (rb *RingBuffer) Read(data []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := rb.availableLocked()
	if n > len(data) {
		n = len(data)
	}
	first := copy(data[:n], rb.buffer[rb.read:])
	if first < n {
		copy(data[first:n], rb.buffer)
	}
	rb.read = (rb.read + n) % rb.size
	return n
}

// Available returns the number of bytes available to read
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.availableLocked()
}

// Clear drops everything buffered
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.read = 0
	rb.write = 0
}

func (rb *RingBuffer) availableLocked() int {
	if rb.write >= rb.read {
		return rb.write - rb.read
	}
	return rb.size - rb.read + rb.write
}

func (rb *RingBuffer) spaceLocked() int {
	return rb.size - rb.availableLocked() - 1
}
