package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type SchedulerConfig struct {
	Tick     *Tick
	Sensor   Sensor
	Selector *Selector
	Alarm    *Alarm
	Display  *DisplayMachine
	// Status is passed to the display machine on every tick. Zero value
	// StatusDefault never renders, so callers normally set StatusSensor.
	Status DisplayStatus
	Logger *slog.Logger
	// Now stamps samples. Defaults to time.Now.
	Now func() time.Time
}

// Scheduler is the control loop. On every tick it reads the sensor if it
// is active, publishes the sample, evaluates the alarm and steps the
// display machine.
type Scheduler struct {
	tick     *Tick
	sensor   Sensor
	selector *Selector
	alarm    *Alarm
	display  *DisplayMachine
	status   DisplayStatus
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.RWMutex
	latest    Reading
	hasSample bool
	observers []Observer
}

func NewScheduler(config SchedulerConfig) *Scheduler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Scheduler{
		tick:     config.Tick,
		sensor:   config.Sensor,
		selector: config.Selector,
		alarm:    config.Alarm,
		display:  config.Display,
		status:   config.Status,
		logger:   config.Logger.With("component", "scheduler"),
		now:      config.Now,
	}
}

// Subscribe registers o for every reading published from now on.
func (s *Scheduler) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Latest returns the most recent reading, if any.
func (s *Scheduler) Latest() (Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.hasSample
}

// Poll runs one iteration: a no-op unless the tick flag is raised, in which
// case the flag is cleared and one tick is processed.
func (s *Scheduler) Poll(ctx context.Context) error {
	if !s.tick.Consume() {
		return nil
	}
	return s.step(ctx)
}

// Run processes ticks until ctx is done. Driver failures are logged and
// the loop carries on with the next tick.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("control loop started", "display", s.status)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("control loop stopped")
			return ctx.Err()
		case <-s.tick.C():
			if err := s.step(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					continue
				}
				s.logger.Warn("tick failed", "error", err)
			}
		}
	}
}

func (s *Scheduler) step(ctx context.Context) error {
	var sample Sample
	read, err := s.selector.whileActive(func() error {
		var err error
		sample, err = s.sensor.ReadSample(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("read sensor: %w", err)
	}

	if read {
		if sample.Taken.IsZero() {
			sample.Taken = s.now()
		}
		state, err := s.alarm.Update(sample.HeartRate)
		s.publish(Reading{Sample: sample, Alarm: state})
		if err != nil {
			return err
		}
	}

	latest, _ := s.Latest()
	if _, err := s.display.Step(s.status, latest.Sample); err != nil {
		return err
	}
	return nil
}

func (s *Scheduler) publish(r Reading) {
	s.mu.Lock()
	s.latest = r
	s.hasSample = true
	observers := s.observers
	s.mu.Unlock()

	s.logger.Debug("sample",
		"heart_rate", r.Sample.HeartRate,
		"spo2", r.Sample.SpO2,
		"alarm", r.Alarm.Active())

	for _, o := range observers {
		o.Observe(r)
	}
}
