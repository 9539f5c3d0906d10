package monitor

import (
	"fmt"
	"strings"
)

// DisplayStatus selects what the display machine does on a step.
type DisplayStatus int

const (
	StatusDefault DisplayStatus = iota
	StatusShutdown
	StatusSensor
	StatusBLE
)

func (s DisplayStatus) String() string {
	switch s {
	case StatusDefault:
		return "default"
	case StatusShutdown:
		return "shutdown"
	case StatusSensor:
		return "sensor"
	case StatusBLE:
		return "ble"
	default:
		return fmt.Sprintf("DisplayStatus(%d)", int(s))
	}
}

// ParseDisplayStatus is the inverse of String.
func ParseDisplayStatus(s string) (DisplayStatus, error) {
	for st := StatusDefault; st <= StatusBLE; st++ {
		if strings.EqualFold(s, st.String()) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown display status %q", s)
}

// Default render periods, in steps.
const (
	DefaultSensorTimeout = 10
	DefaultBLETimeout    = 20
)

type DisplayConfig struct {
	// SensorTimeout is the number of SENSOR steps per render.
	SensorTimeout int
	// BLETimeout is the number of BLE steps per render.
	BLETimeout int
	// Payload produces the text rendered in BLE mode.
	Payload func() string
}

// DisplayMachine throttles rendering. A counter persists across steps:
// DEFAULT and SHUTDOWN reset it, SENSOR and BLE advance it and render
// once it reaches their timeout, which resets it again. Starting from
// zero, the first timeout-1 steps never render and step number timeout
// does.
//
// DisplayMachine is driven from the control loop only and is not safe for
// concurrent use.
type DisplayMachine struct {
	display Display
	config  DisplayConfig
	counter int
}

func NewDisplayMachine(display Display, config DisplayConfig) *DisplayMachine {
	if config.SensorTimeout <= 0 {
		config.SensorTimeout = DefaultSensorTimeout
	}
	if config.BLETimeout <= 0 {
		config.BLETimeout = DefaultBLETimeout
	}
	if config.Payload == nil {
		config.Payload = func() string { return "" }
	}
	return &DisplayMachine{display: display, config: config}
}

// Step advances the machine for status. latest supplies the values for a
// SENSOR render. It reports whether the display was drawn.
func (m *DisplayMachine) Step(status DisplayStatus, latest Sample) (bool, error) {
	switch status {
	case StatusDefault:
		m.counter = 0
		return false, nil

	case StatusShutdown:
		m.counter = 0
		if err := m.display.Clear(); err != nil {
			return false, fmt.Errorf("clear display: %w", err)
		}
		return false, nil

	case StatusSensor:
		if !m.advance(m.config.SensorTimeout) {
			return false, nil
		}
		if err := m.display.RenderSensor(latest.HeartRate, latest.SpO2, latest.Diff); err != nil {
			return false, fmt.Errorf("render sensor values: %w", err)
		}
		return true, nil

	case StatusBLE:
		if !m.advance(m.config.BLETimeout) {
			return false, nil
		}
		if err := m.display.RenderStatus(m.config.Payload()); err != nil {
			return false, fmt.Errorf("render status: %w", err)
		}
		return true, nil

	default:
		return false, fmt.Errorf("unknown display status %d", int(status))
	}
}

// advance counts one step and reports whether timeout was reached.
func (m *DisplayMachine) advance(timeout int) bool {
	m.counter++
	if m.counter < timeout {
		return false
	}
	m.counter = 0
	return true
}

// Counter is the number of steps since the last reset.
func (m *DisplayMachine) Counter() int {
	return m.counter
}
