package monitor

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Selector switches the sensor subsystem on and off. A toggle runs to
// completion before the next one starts, so the scheduler never observes
// a half applied state.
type Selector struct {
	sensor  Sensor
	display Display

	mu     sync.Mutex
	active atomic.Bool
}

func NewSelector(sensor Sensor, display Display) *Selector {
	return &Selector{sensor: sensor, display: display}
}

// SetActive enables or disables the sensor. Enabling wakes the sensor,
// reinitializes it and prepares the display for sensor rendering.
// Disabling clears the flag first and then puts the sensor into shutdown.
// Enabling sets the flag only once the whole sequence succeeded.
func (s *Selector) SetActive(enable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !enable {
		s.active.Store(false)
		if err := s.sensor.Shutdown(); err != nil {
			return fmt.Errorf("shut down sensor: %w", err)
		}
		return nil
	}

	if err := s.sensor.StartUp(); err != nil {
		return fmt.Errorf("start up sensor: %w", err)
	}
	if err := s.sensor.Init(); err != nil {
		return fmt.Errorf("initialize sensor: %w", err)
	}
	if err := s.display.Init(); err != nil {
		return fmt.Errorf("initialize display: %w", err)
	}
	s.active.Store(true)
	return nil
}

// Active reports whether the sensor is live.
func (s *Selector) Active() bool {
	return s.active.Load()
}

// whileActive runs fn if the sensor is live, holding off toggles until it
// returns.
func (s *Selector) whileActive(fn func() error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active.Load() {
		return false, nil
	}
	return true, fn()
}
