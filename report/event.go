// Package report fans monitor readings out of the control loop: to
// websocket clients, to an MQTT broker and, on alarm, to a phone by SMS.
package report

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"i4.energy/across/pulsemon/monitor"
)

var (
	_ monitor.Observer = (*Hub)(nil)
	_ monitor.Observer = (*MQTTPublisher)(nil)
	_ monitor.Observer = (*SMSAlerter)(nil)
)

// Kind tells subscribers what an event carries.
type Kind string

const (
	KindSample       Kind = "sample"
	KindAlarmRaised  Kind = "alarm_raised"
	KindAlarmCleared Kind = "alarm_cleared"
)

type Event struct {
	ID      uuid.UUID       `json:"id"`
	Kind    Kind            `json:"kind"`
	Time    time.Time       `json:"time"`
	Reading monitor.Reading `json:"reading"`
}

func NewEvent(kind Kind, r monitor.Reading) Event {
	return Event{
		ID:      uuid.New(),
		Kind:    kind,
		Time:    r.Sample.Taken,
		Reading: r,
	}
}

// edgeDetector reports alarm transitions. The first reading counts as a
// transition only if its alarm is active.
type edgeDetector struct {
	mu     sync.Mutex
	active bool
}

func (d *edgeDetector) transition(state monitor.AlarmState) (Kind, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := state.Active()
	if now == d.active {
		return "", false
	}
	d.active = now
	if now {
		return KindAlarmRaised, true
	}
	return KindAlarmCleared, true
}

// eventsFor expands a reading into the sample event plus, if the alarm
// flipped, a transition event.
func eventsFor(d *edgeDetector, r monitor.Reading) []Event {
	events := []Event{NewEvent(KindSample, r)}
	if kind, ok := d.transition(r.Alarm); ok {
		events = append(events, NewEvent(kind, r))
	}
	return events
}
