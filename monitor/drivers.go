package monitor

import "context"

//go:generate go tool mockgen -destination=mock_drivers.go -package=monitor . Sensor,Display,Actuator,Observer

// Sensor is the pulse/SpO2 sensor driver. Bus-level transactions live
// behind it.
type Sensor interface {
	// Init programs the sensor for sampling.
	Init() error
	// Shutdown puts the sensor into its low power state.
	Shutdown() error
	// StartUp wakes the sensor from shutdown.
	StartUp() error
	// ReadSample blocks until one sample is available.
	ReadSample(ctx context.Context) (Sample, error)
}

// Display is the status screen driver.
type Display interface {
	Init() error
	Clear() error
	RenderSensor(heartRate, spo2, diff int) error
	RenderStatus(payload string) error
}

// Actuator is the alarm output, an LED on the reference board.
type Actuator interface {
	Set(on bool) error
}

// Observer receives every reading the scheduler publishes. Observe runs on
// the control loop and must not block.
type Observer interface {
	Observe(r Reading)
}
