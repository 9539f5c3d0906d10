package monitor

import (
	"context"
	"time"
)

// Tick is the flag a periodic timer raises for the control loop. It holds
// at most one pending tick: setting it again before it is consumed is a
// no-op, so a slow loop skips ticks instead of queueing them.
//
// The channel hand-off orders every write made before Set ahead of the
// read that follows a successful Consume.
type Tick struct {
	c chan struct{}
}

func NewTick() *Tick {
	return &Tick{c: make(chan struct{}, 1)}
}

// Set raises the flag. It never blocks.
func (t *Tick) Set() {
	select {
	case t.c <- struct{}{}:
	default:
	}
}

// Consume clears the flag and reports whether it was raised.
func (t *Tick) Consume() bool {
	select {
	case <-t.c:
		return true
	default:
		return false
	}
}

// C lets a loop block until the flag is raised. Receiving from it
// consumes the tick.
func (t *Tick) C() <-chan struct{} {
	return t.c
}

// RunTimer raises tick every period until ctx is done.
func RunTimer(ctx context.Context, period time.Duration, tick *Tick) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick.Set()
		}
	}
}
