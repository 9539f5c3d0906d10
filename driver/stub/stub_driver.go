// Package stub provides host side stand-ins for the monitor drivers so the
// control loop runs without the sensor board attached.
package stub

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"i4.energy/across/pulsemon/monitor"
)

var errShutdown = errors.New("stub: sensor is shut down")

// Sensor synthesizes a slowly drifting pulse. Injected readings take
// precedence over the waveform, one per ReadSample.
type Sensor struct {
	// BaseRate and Swing shape the waveform in bpm. Period is measured in
	// samples.
	BaseRate int
	Swing    int
	Period   int

	mu       sync.Mutex
	awake    bool
	step     int
	last     int
	injected []monitor.Sample
}

func NewSensor() *Sensor {
	return &Sensor{BaseRate: 75, Swing: 12, Period: 240, awake: true}
}

func (s *Sensor) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step = 0
	return nil
}

func (s *Sensor) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.awake = false
	return nil
}

func (s *Sensor) StartUp() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.awake = true
	return nil
}

// Inject queues readings returned before the waveform resumes.
func (s *Sensor) Inject(samples ...monitor.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.injected = append(s.injected, samples...)
}

func (s *Sensor) ReadSample(ctx context.Context) (monitor.Sample, error) {
	if err := ctx.Err(); err != nil {
		return monitor.Sample{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.awake {
		return monitor.Sample{}, errShutdown
	}

	var sample monitor.Sample
	if len(s.injected) > 0 {
		sample = s.injected[0]
		s.injected = s.injected[1:]
	} else {
		phase := 2 * math.Pi * float64(s.step) / float64(max(s.Period, 1))
		sample.HeartRate = s.BaseRate + int(math.Round(float64(s.Swing)*math.Sin(phase)))
		sample.SpO2 = 97 + int(math.Round(math.Cos(phase)))
	}
	s.step++

	sample.Diff = sample.HeartRate - s.last
	s.last = sample.HeartRate
	sample.Taken = time.Now()
	return sample, nil
}

// Display logs what a screen would show.
type Display struct {
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

func NewDisplay(logger *slog.Logger) *Display {
	if logger == nil {
		logger = slog.Default()
	}
	return &Display{logger: logger.With("component", "display")}
}

func (d *Display) Init() error {
	d.logger.Debug("display init")
	return nil
}

func (d *Display) Clear() error {
	d.set("")
	d.logger.Debug("display cleared")
	return nil
}

func (d *Display) RenderSensor(heartRate, spo2, diff int) error {
	d.set("sensor")
	d.logger.Info("render", "heart_rate", heartRate, "spo2", spo2, "diff", diff)
	return nil
}

func (d *Display) RenderStatus(payload string) error {
	d.set(payload)
	d.logger.Info("render", "status", payload)
	return nil
}

func (d *Display) set(s string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = s
}

// Last is the most recent render, empty after Clear.
func (d *Display) Last() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// LED is the alarm output. It logs transitions only.
type LED struct {
	logger *slog.Logger

	mu sync.Mutex
	on bool
}

func NewLED(logger *slog.Logger) *LED {
	if logger == nil {
		logger = slog.Default()
	}
	return &LED{logger: logger.With("component", "alarm_led")}
}

func (l *LED) Set(on bool) error {
	l.mu.Lock()
	changed := l.on != on
	l.on = on
	l.mu.Unlock()

	if changed {
		l.logger.Info("alarm led", "on", on)
	}
	return nil
}

func (l *LED) On() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on
}

var (
	_ monitor.Sensor   = (*Sensor)(nil)
	_ monitor.Display  = (*Display)(nil)
	_ monitor.Actuator = (*LED)(nil)
)
