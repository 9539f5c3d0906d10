package modem

import (
	"sync"

	"i4.energy/across/pulsemon/at"
)

// DefaultBufferSize is the capacity of the response buffer. It holds a full
// SMS read response with a 160 character body.
const DefaultBufferSize = 256

// ResponseBuffer collects the bytes the receive path delivers during one
// exchange. Its capacity never changes; bytes arriving once it is full are
// dropped and counted.
type ResponseBuffer struct {
	mu       sync.Mutex
	data     []byte
	received int
	dropped  int
	notify   chan struct{}
}

// NewResponseBuffer returns an empty buffer holding at most size bytes.
func NewResponseBuffer(size int) *ResponseBuffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &ResponseBuffer{
		data:   make([]byte, 0, size),
		notify: make(chan struct{}, 1),
	}
}

// Reset clears the contents and the receive counter.
func (b *ResponseBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = b.data[:0]
	b.received = 0
	b.dropped = 0
	select {
	case <-b.notify:
	default:
	}
}

// Append stores p and wakes a waiting exchange. It returns how many bytes
// did not fit.
func (b *ResponseBuffer) Append(p []byte) int {
	b.mu.Lock()
	room := cap(b.data) - len(b.data)
	n := min(room, len(p))
	b.data = append(b.data, p[:n]...)
	b.received += n
	b.dropped += len(p) - n
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return len(p) - n
}

// Status runs the terminator classifier over the current contents.
func (b *ResponseBuffer) Status() at.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return at.Terminal(b.data)
}

// Bytes returns a copy of the current contents.
func (b *ResponseBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.data...)
}

// Received is the number of bytes stored since the last Reset.
func (b *ResponseBuffer) Received() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.received
}

// Dropped is the number of bytes discarded since the last Reset.
func (b *ResponseBuffer) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Full reports whether no room is left.
func (b *ResponseBuffer) Full() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data) == cap(b.data)
}

// Cap is the fixed capacity.
func (b *ResponseBuffer) Cap() int { return cap(b.data) }

// Notify is signalled after every Append.
func (b *ResponseBuffer) Notify() <-chan struct{} { return b.notify }
