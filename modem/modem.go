package modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"i4.energy/across/pulsemon/at"
)

// Modem represents a SIM800 class cellular modem driven by AT commands.
//
// Every operation is one synchronous exchange: the response buffer is
// cleared, the command is transmitted, and the caller blocks until the
// receive path has put an OK or ERROR terminator into the buffer. Only one
// exchange is in flight at a time.
type Modem struct {
	// transport provides the physical connection to the modem
	transport Transport
	// config contains the modem configuration settings
	config Config
	logger *slog.Logger

	// buf is filled by the receive path and polled by the exchange
	buf *ResponseBuffer
	// exchangeMu serializes exchanges
	exchangeMu sync.Mutex

	closed  atomic.Bool
	running atomic.Bool
	// stopped is closed when Loop returns
	stopped  chan struct{}
	stopOnce sync.Once

	// urcChan receives Unsolicited Result Codes from the modem
	urcChan chan string
	// pending holds received bytes not yet split into lines; Loop only
	pending []byte

	// loopCtx is cancelled by Close to stop Loop
	loopCtx    context.Context
	loopCancel context.CancelFunc
}

// PollConfig defines configuration for polling operations like waiting for SIM readiness.
type PollConfig struct {
	// Interval is the time between polling attempts
	Interval time.Duration
	// Timeout is the maximum time to wait for the condition
	Timeout time.Duration
	// MaxRetries is the maximum number of polling attempts
	MaxRetries int
}

// New creates a new Modem instance with the given configuration.
// It establishes the transport connection and runs the bring-up sequence
// directly on the transport, before any receive loop exists.
//
// Returns an error if the transport connection or modem initialization
// fails.
func New(ctx context.Context, config Config) (*Modem, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial modem: %w", err)
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	m := &Modem{
		transport: transport,
		config:    config,
		logger:    config.logger.With("component", "modem"),
		buf:       NewResponseBuffer(config.bufferSize),
		stopped:   make(chan struct{}),
		urcChan:   make(chan string, 100),
	}
	m.loopCtx, m.loopCancel = context.WithCancel(context.WithoutCancel(ctx))

	initCtx, cancel := context.WithTimeout(ctx, config.initTimeout)
	defer cancel()

	// A silent modem leaves Read blocked; closing the transport releases it.
	closeOnDone := context.AfterFunc(initCtx, func() { transport.Close() })

	err = m.init(initCtx)
	if !closeOnDone() {
		m.loopCancel()
		return nil, fmt.Errorf("initialize modem: %w", contextError(initCtx))
	}
	if err != nil {
		m.loopCancel()
		transport.Close()
		return nil, fmt.Errorf("initialize modem: %w", err)
	}

	m.logger.Info("modem initialized")
	return m, nil
}

// Loop is the receive path. It is the only goroutine that reads from the
// transport once New has returned: every byte is appended to the response
// buffer, and complete URC lines are dispatched to the URC channel.
//
// Loop runs until ctx is cancelled, Close is called, or the transport
// fails. Exchanges still waiting when it returns fail with ErrNoResponse.
//
// Usage:
//
//	m, err := modem.New(ctx, config)
//	if err != nil { return err }
//	go m.Loop(ctx)
//	rssi, err := m.SignalStrength(ctx)
func (m *Modem) Loop(ctx context.Context) error {
	if m.closed.Load() {
		return ErrAlreadyClosed
	}
	if !m.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer m.running.Store(false)
	defer m.stopOnce.Do(func() { close(m.stopped) })

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(m.loopCtx, cancel)
	defer stop()

	chunks := make(chan []byte, 16)
	readErrs := make(chan error, 1)

	go func() {
		defer close(chunks)
		p := make([]byte, m.buf.Cap())
		for {
			n, err := m.transport.Read(p)
			if n > 0 {
				chunk := append([]byte(nil), p[:n]...)
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErrs <- err
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case chunk, ok := <-chunks:
			if !ok {
				select {
				case err := <-readErrs:
					return fmt.Errorf("read transport: %w", err)
				default:
					return io.EOF
				}
			}
			m.receive(chunk)
		}
	}
}

// receive stores p for the running exchange and picks URCs out of it.
func (m *Modem) receive(p []byte) {
	if dropped := m.buf.Append(p); dropped > 0 {
		m.logger.Warn("response buffer full, bytes dropped",
			"dropped", dropped, "capacity", m.buf.Cap())
	}

	m.pending = append(m.pending, p...)
	for {
		advance, token, _ := at.Splitter(m.pending, false)
		if advance == 0 {
			break
		}
		m.pending = m.pending[advance:]

		line := strings.TrimSpace(string(token))
		if at.Classify(line) != at.TypeURC {
			continue
		}
		select {
		case m.urcChan <- line:
		default:
			m.logger.Warn("URC channel full, dropping", "urc", line)
		}
	}
	// A line longer than the buffer cannot be a URC worth keeping.
	if len(m.pending) > m.buf.Cap() {
		m.pending = m.pending[:0]
	}
}

// URC returns a read-only channel that receives Unsolicited Result Codes.
// These are asynchronous notifications from the modem (e.g., incoming SMS,
// ringing). The channel is buffered, but may drop some URC if not consumed
// fast enough.
func (m *Modem) URC() <-chan string {
	return m.urcChan
}

// Close shuts down the modem and releases all resources.
// It stops the receive loop, closes the transport connection, and marks
// the modem as closed. After calling Close(), the modem cannot be reused.
func (m *Modem) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return ErrAlreadyClosed
	}
	m.loopCancel()
	return m.transport.Close()
}

// Exchange clears the response buffer, transmits cmd followed by a
// carriage return and blocks until the modem answers OK or ERROR.
//
// ERROR yields ErrModemError. A context deadline, or the configured AT
// timeout when ctx has none, yields ErrTimeout; cancellation yields the
// context's error. The parsed response is returned in every case.
func (m *Modem) Exchange(ctx context.Context, cmd []byte) (at.Response, error) {
	m.exchangeMu.Lock()
	defer m.exchangeMu.Unlock()

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	m.buf.Reset()
	if err := m.write(cmd, at.CR); err != nil {
		return at.Response{}, err
	}
	return m.await(ctx)
}

func (m *Modem) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); !ok && m.config.atTimeout > 0 {
		return context.WithTimeout(ctx, m.config.atTimeout)
	}
	return context.WithCancel(ctx)
}

// write transmits cmd and suffix in one write without touching the buffer.
func (m *Modem) write(cmd []byte, suffix string) error {
	if m.closed.Load() {
		return ErrAlreadyClosed
	}
	wire := make([]byte, 0, len(cmd)+len(suffix))
	wire = append(append(wire, cmd...), suffix...)

	m.logger.Debug("transmit", "command", strings.TrimSpace(string(cmd)))
	if _, err := m.transport.Write(wire); err != nil {
		return fmt.Errorf("write command %q: %w", cmd, err)
	}
	return nil
}

// await polls the classifier each time the receive path appends.
func (m *Modem) await(ctx context.Context) (at.Response, error) {
	for {
		if resp, done, err := m.outcome(); done {
			return resp, err
		}
		select {
		case <-m.buf.Notify():
		case <-m.stopped:
			if resp, done, err := m.outcome(); done {
				return resp, err
			}
			return at.Parse(m.buf.Bytes()), ErrNoResponse
		case <-ctx.Done():
			return at.Parse(m.buf.Bytes()), contextError(ctx)
		}
	}
}

// outcome reports whether the buffer holds a terminator yet.
func (m *Modem) outcome() (at.Response, bool, error) {
	switch m.buf.Status() {
	case at.StatusOK:
		return at.Parse(m.buf.Bytes()), true, nil
	case at.StatusError:
		resp := at.Parse(m.buf.Bytes())
		m.logger.Debug("modem answered ERROR", "response", string(resp.Raw))
		return resp, true, ErrModemError
	}
	if m.buf.Full() {
		// Nothing more fits, so the terminator can never arrive.
		resp := at.Parse(m.buf.Bytes())
		m.logger.Warn("response overflowed buffer", "dropped", m.buf.Dropped())
		return resp, true, ErrResponseOverflow
	}
	return at.Response{}, false, nil
}

func contextError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ctx.Err()
}

// execDirect runs one exchange by reading the transport itself. It is used
// during initialization, before Loop owns the receive path.
//
// WARNING: This method should only be used during initialization.
// Use Exchange for normal operations.
func (m *Modem) execDirect(ctx context.Context, cmd string) (at.Response, error) {
	if err := ctx.Err(); err != nil {
		return at.Response{}, contextError(ctx)
	}

	m.buf.Reset()
	if err := m.write([]byte(cmd), at.CR); err != nil {
		return at.Response{}, err
	}

	p := make([]byte, m.buf.Cap())
	for {
		if resp, done, err := m.outcome(); done {
			return resp, err
		}
		if ctx.Err() != nil {
			return at.Parse(m.buf.Bytes()), contextError(ctx)
		}
		n, err := m.transport.Read(p)
		if n > 0 {
			m.buf.Append(p[:n])
		}
		if err != nil {
			if resp, done, rerr := m.outcome(); done {
				return resp, rerr
			}
			if ctx.Err() != nil {
				return at.Parse(m.buf.Bytes()), contextError(ctx)
			}
			return at.Parse(m.buf.Bytes()), fmt.Errorf("read response: %w", err)
		}
	}
}

// expectOkDirect executes an AT command during initialization and
// discards the response.
func (m *Modem) expectOkDirect(ctx context.Context, cmd string) error {
	if _, err := m.execDirect(ctx, cmd); err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	return nil
}

// init performs the bring-up sequence for the modem hardware.
// This method is called during New() and must complete successfully
// before the modem can be used.
func (m *Modem) init(ctx context.Context) error {
	// 1. Wake-up / sanity check
	if err := m.expectOkDirect(ctx, at.CmdAt); err != nil {
		return fmt.Errorf("modem not responding: %w", err)
	}

	if err := m.expectOkDirect(ctx, at.CmdEchoOff); err != nil {
		return fmt.Errorf("could not disable echo: %w", err)
	}

	// 3. Plain ERROR instead of +CMS/+CME codes keeps the terminator set closed
	if err := m.expectOkDirect(ctx, at.CmdPlainErrors); err != nil {
		return fmt.Errorf("could not select plain errors: %w", err)
	}

	// 4. Check SIM status
	resp, err := m.execDirect(ctx, at.CmdSimStatus)
	if err != nil {
		return fmt.Errorf("query SIM status: %w", err)
	}

	simStatus := string(resp.Raw)
	switch {
	case strings.Contains(simStatus, at.SimReady):
		// OK

	case strings.Contains(simStatus, at.SimPin):
		if m.config.simPIN == "" {
			return ErrSIMPinRequired
		}
		if err := m.expectOkDirect(ctx, fmt.Sprintf(`AT+CPIN="%s"`, m.config.simPIN)); err != nil {
			return fmt.Errorf("enter SIM PIN: %w", err)
		}

		// Wait until SIM becomes ready
		if err := m.waitForSIMReady(ctx, PollConfig{}); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unsupported SIM state: %q", strings.TrimSpace(simStatus))
	}

	// 5. Software (XON/XOFF) flow control on the UART
	if err := m.expectOkDirect(ctx, at.CmdFlowControl); err != nil {
		return fmt.Errorf("set flow control: %w", err)
	}

	// 6. Select SMS text mode
	textMode, _ := at.SetTextMode(1)
	if err := m.expectOkDirect(ctx, string(textMode)); err != nil {
		return fmt.Errorf("set SMS text mode: %w", err)
	}

	// 7. Keep new messages on the SIM without indications
	cnmi, _ := at.NewMessageIndication(at.CNMI{})
	if err := m.expectOkDirect(ctx, string(cnmi)); err != nil {
		return fmt.Errorf("set new message indication: %w", err)
	}

	return nil
}

// waitForSIMReady polls the SIM card status until it reports ready state.
// This is necessary after entering a SIM PIN, as the SIM card needs time
// to authenticate and become operational. Uses configurable polling interval
// and retry limits to avoid infinite waiting.
func (m *Modem) waitForSIMReady(ctx context.Context, config PollConfig) error {
	var (
		pollInterval = config.Interval
		timeout      = config.Timeout
		maxRetries   = config.MaxRetries
	)

	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = int(timeout / pollInterval)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	retries := 0

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("SIM not ready: %w", ctx.Err())
		case <-ticker.C:
			retries++
			if retries > maxRetries {
				return fmt.Errorf("SIM not ready after %d retries", maxRetries)
			}
			resp, err := m.execDirect(ctx, at.CmdSimStatus)
			if err != nil {
				// Fail fast on critical errors
				if errors.Is(err, ErrAlreadyClosed) || errors.Is(err, ErrNotInitialized) {
					return fmt.Errorf("SIM status check failed: %w", err)
				}
				continue
			}
			if strings.Contains(string(resp.Raw), at.SimReady) {
				return nil
			}
		}
	}
}
