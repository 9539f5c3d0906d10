package modem

import (
	"context"
	"io"
	"slices"
	"sync"
)

// TestTransport is a test helper that simulates a blocking transport using channels.
// Reads block until data is available, like a real serial port would. Replies
// can be scripted per command: when a write matches an expected command,
// its reply is queued for reading before Write returns, so the reply always
// lands after the exchange cleared its buffer.
type TestTransport struct {
	mu       sync.Mutex
	readChan chan []byte
	closed   bool
	script   []scriptedReply
	written  []string

	readMu sync.Mutex
	rest   []byte
}

type scriptedReply struct {
	command string
	reply   string
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		readChan: make(chan []byte, 32),
	}
}

// Expect scripts reply to be sent once command, exactly as written to the
// wire, arrives. Each expectation fires once; repeated commands match their
// expectations in the order they were added.
func (t *TestTransport) Expect(command, reply string) *TestTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.script = append(t.script, scriptedReply{command: command, reply: reply})
	return t
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}
	t.written = append(t.written, string(p))
	for i, next := range t.script {
		if next.command != string(p) {
			continue
		}
		t.script = slices.Delete(t.script, i, i+1)
		if next.reply != "" {
			t.readChan <- []byte(next.reply)
		}
		break
	}
	return len(p), nil
}

// Read returns queued data, carrying over what does not fit in p.
func (t *TestTransport) Read(p []byte) (n int, err error) {
	t.readMu.Lock()
	defer t.readMu.Unlock()
	if len(t.rest) == 0 {
		data, ok := <-t.readChan
		if !ok {
			return 0, io.EOF
		}
		t.rest = data
	}
	n = copy(p, t.rest)
	t.rest = t.rest[n:]
	return n, nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.readChan)
	return nil
}

// SendData queues data to be read by the transport.
// This simulates receiving unsolicited data from the modem.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.readChan <- []byte(data)
	}
}

// Written returns every write seen so far, in order.
func (t *TestTransport) Written() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.written...)
}

// Pending reports how many scripted replies have not been triggered.
func (t *TestTransport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.script)
}

// TestDialer hands out a fixed transport.
type TestDialer struct {
	Transport Transport
}

func (d TestDialer) Dial(_ context.Context) (Transport, error) {
	return d.Transport, nil
}
