package monitor

import (
	"fmt"
	"sync"
)

// Safe heart rate band in bpm. The bounds themselves are safe.
const (
	LowThreshold  = 60
	HighThreshold = 130
)

// AlarmState is recomputed from scratch on every evaluation. Both flags
// always carry the same value.
type AlarmState struct {
	HighDetected bool `json:"highDetected"`
	LowDetected  bool `json:"lowDetected"`
}

// Active reports whether the alarm is raised.
func (a AlarmState) Active() bool {
	return a.HighDetected || a.LowDetected
}

// Evaluate maps a heart rate to an alarm state. There is no hysteresis: a
// rate oscillating across a bound toggles the alarm on every sample.
func Evaluate(bpm int) AlarmState {
	out := bpm > HighThreshold || bpm < LowThreshold
	return AlarmState{HighDetected: out, LowDetected: out}
}

// Alarm drives the actuator from evaluated samples.
type Alarm struct {
	actuator Actuator

	mu    sync.Mutex
	state AlarmState
}

func NewAlarm(actuator Actuator) *Alarm {
	return &Alarm{actuator: actuator}
}

// Update evaluates bpm, switches the actuator and records the new state.
// The actuator is driven on every call, not only on changes.
func (a *Alarm) Update(bpm int) (AlarmState, error) {
	state := Evaluate(bpm)

	a.mu.Lock()
	a.state = state
	a.mu.Unlock()

	if err := a.actuator.Set(state.Active()); err != nil {
		return state, fmt.Errorf("drive alarm actuator: %w", err)
	}
	return state, nil
}

// State returns the result of the last Update.
func (a *Alarm) State() AlarmState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}
