package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"i4.energy/across/pulsemon/at"
)

//go:generate go tool mockgen -destination=mock_sender.go -package=report . SMSSender

// SMSSender sends one text message. *modem.Modem satisfies it.
type SMSSender interface {
	SendSMS(ctx context.Context, recipient, message string) error
}

const (
	DefaultRatePerMinute = 30
	DefaultMaxRetries    = 3
	DefaultRetryBackoff  = 800 * time.Millisecond
	DefaultQueueSize     = 64
)

var (
	// ErrQueueFull is returned by Enqueue when the outbound queue is full.
	ErrQueueFull = errors.New("report: SMS queue is full")
	// ErrInvalidRequest is returned by Enqueue for a request the modem
	// could never send: a missing field, a recipient that does not fill the
	// send header, or an over long message.
	ErrInvalidRequest = errors.New("report: invalid SMS request")
)

type GatewayConfig struct {
	// RatePerMinute caps sends in any sliding minute.
	RatePerMinute int
	MaxRetries    int
	// RetryBackoff is the base delay between attempts; up to 75% jitter is
	// added.
	RetryBackoff time.Duration
	QueueSize    int
	Logger       *slog.Logger
}

func (c *GatewayConfig) setDefaults() {
	if c.RatePerMinute <= 0 {
		c.RatePerMinute = DefaultRatePerMinute
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type job struct {
	id  string
	req SMSRequest
}

// Gateway queues outbound SMS and sends them one at a time, rate limited
// and with retries, so callers on the control loop or an HTTP handler
// never wait on the modem.
type Gateway struct {
	sender  SMSSender
	config  GatewayConfig
	logger  *slog.Logger
	limiter *rateWindow
	queue   chan job
}

func NewGateway(sender SMSSender, config GatewayConfig) *Gateway {
	config.setDefaults()
	return &Gateway{
		sender:  sender,
		config:  config,
		logger:  config.Logger.With("component", "sms-gateway"),
		limiter: newRateWindow(config.RatePerMinute, time.Minute, time.Now),
		queue:   make(chan job, config.QueueSize),
	}
}

// Enqueue validates req and queues it. It returns the id the send is
// logged under.
func (g *Gateway) Enqueue(req SMSRequest) (string, error) {
	if req.To == "" || req.Message == "" {
		return "", fmt.Errorf("%w: needs to and message", ErrInvalidRequest)
	}
	if _, err := at.SendSMSHeader(req.To); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if len(req.Message) > at.MaxMessageLen {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, at.ErrMessageTooLong)
	}
	j := job{id: uuid.NewString(), req: req}
	select {
	case g.queue <- j:
		g.logger.Debug("SMS queued", "id", j.id, "to", req.To)
		return j.id, nil
	default:
		return "", ErrQueueFull
	}
}

// Run sends queued messages until ctx is done.
func (g *Gateway) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-g.queue:
			g.deliver(ctx, j)
		}
	}
}

func (g *Gateway) deliver(ctx context.Context, j job) {
	for attempt := 0; ; attempt++ {
		if wait := g.limiter.reserve(); wait > 0 {
			g.logger.Debug("rate limited", "id", j.id, "wait", wait)
			if err := sleepContext(ctx, wait); err != nil {
				return
			}
			attempt--
			continue
		}

		err := g.sender.SendSMS(ctx, j.req.To, j.req.Message)
		if err == nil {
			g.logger.Info("SMS sent", "id", j.id, "to", j.req.To)
			return
		}
		if attempt >= g.config.MaxRetries || ctx.Err() != nil || rejected(err) {
			g.logger.Error("SMS send failed permanently", "id", j.id, "to", j.req.To, "attempts", attempt+1, "error", err)
			return
		}

		back := g.config.RetryBackoff + rand.N(g.config.RetryBackoff*3/4+1)
		g.logger.Warn("SMS send failed, retrying", "id", j.id, "error", err, "backoff", back)
		if err := sleepContext(ctx, back); err != nil {
			return
		}
	}
}

// rejected reports whether err means the request itself was refused, so a
// retry would fail the same way.
func rejected(err error) bool {
	return errors.Is(err, at.ErrPhoneNumberLength) ||
		errors.Is(err, at.ErrMessageTooLong) ||
		errors.Is(err, at.ErrIndexOutOfRange)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// rateWindow admits at most limit events in any sliding period.
type rateWindow struct {
	mu     sync.Mutex
	limit  int
	period time.Duration
	now    func() time.Time
	events []time.Time
}

func newRateWindow(limit int, period time.Duration, now func() time.Time) *rateWindow {
	return &rateWindow{limit: limit, period: period, now: now}
}

// reserve records an event and returns zero if one is admitted now;
// otherwise it records nothing and returns how long until a slot frees.
func (r *rateWindow) reserve() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cut := now.Add(-r.period)
	kept := r.events[:0]
	for _, t := range r.events {
		if t.After(cut) {
			kept = append(kept, t)
		}
	}
	r.events = kept

	if len(r.events) >= r.limit {
		return r.events[0].Sub(cut)
	}
	r.events = append(r.events, now)
	return 0
}

