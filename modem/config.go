package modem

import (
	"log/slog"
	"time"
)

// Config holds the settings a Modem is built from. Use NewConfigBuilder to
// obtain a validated value.
type Config struct {
	dialer          Dialer
	simPIN          string
	atTimeout       time.Duration
	initTimeout     time.Duration
	sendSettleDelay time.Duration
	bufferSize      int
	logger          *slog.Logger
}

const (
	// DefaultInitTimeout bounds the whole bring-up sequence in New.
	DefaultInitTimeout = 30 * time.Second
	// DefaultSendSettleDelay is the pause between the send header and the
	// message body while the modem raises its prompt.
	DefaultSendSettleDelay = 10 * time.Millisecond
)

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	// atTimeout stays zero: exchanges block until a terminator unless the
	// caller's context says otherwise.
	if c.initTimeout == 0 {
		c.initTimeout = DefaultInitTimeout
	}
	if c.sendSettleDelay == 0 {
		c.sendSettleDelay = DefaultSendSettleDelay
	}
	if c.bufferSize == 0 {
		c.bufferSize = DefaultBufferSize
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
}

// ConfigBuilder assembles a Config step by step.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

func (b *ConfigBuilder) WithSimPIN(pin string) *ConfigBuilder {
	b.config.simPIN = pin
	return b
}

// WithATTimeout bounds every exchange whose context carries no deadline.
// Zero disables the bound.
func (b *ConfigBuilder) WithATTimeout(d time.Duration) *ConfigBuilder {
	b.config.atTimeout = d
	return b
}

func (b *ConfigBuilder) WithInitTimeout(d time.Duration) *ConfigBuilder {
	b.config.initTimeout = d
	return b
}

func (b *ConfigBuilder) WithSendSettleDelay(d time.Duration) *ConfigBuilder {
	b.config.sendSettleDelay = d
	return b
}

func (b *ConfigBuilder) WithBufferSize(n int) *ConfigBuilder {
	b.config.bufferSize = n
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

// Build validates the collected settings and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	c.setDefaults()
	return c, nil
}
