package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
	"i4.energy/across/pulsemon/at"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the server listens on (e.g. "0.0.0.0:8080")
	BindAddress string `yaml:"bind_address"`
	// SerialPort is the path to the modem's serial port (e.g. "/dev/ttyUSB0").
	// Empty runs without a modem.
	SerialPort string `yaml:"serial_port"`
	// BaudRate is the baud rate for serial communication with the modem (e.g. 115200)
	BaudRate int `yaml:"baud_rate"`
	// SerialDriver picks the serial backend: "bugst" or "tarm"
	SerialDriver string `yaml:"serial_driver"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `yaml:"log_level"`
	// SimPIN is the SIM card PIN code
	SimPIN string `yaml:"sim_pin"`

	ATTimeout   time.Duration `yaml:"at_timeout"`
	InitTimeout time.Duration `yaml:"init_timeout"`

	// TickPeriod is the sampling period of the control loop
	TickPeriod time.Duration `yaml:"tick_period"`
	// SensorTimeout and BLETimeout count ticks between display refreshes
	SensorTimeout int `yaml:"sensor_timeout"`
	BLETimeout    int `yaml:"ble_timeout"`
	// DisplayStatus is the display mode the control loop runs in
	DisplayStatus string `yaml:"display_status"`

	// AlertPhone receives an SMS when the heart rate alarm is raised.
	// Empty disables alerting.
	AlertPhone    string `yaml:"alert_phone"`
	RatePerMinute int    `yaml:"rate_per_minute"`
	MaxRetries    int    `yaml:"max_retries"`

	// MQTTBroker enables telemetry publishing (e.g. "tcp://localhost:1883")
	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTClientID string `yaml:"mqtt_client_id"`
	MQTTTopic    string `yaml:"mqtt_topic"`
	MQTTUsername string `yaml:"mqtt_username"`
	MQTTPassword string `yaml:"mqtt_password"`
}

var (
	errUnknownSerialDriver = errors.New("serial driver must be bugst or tarm")
	errBadTickPeriod       = errors.New("tick period must be positive")
)

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	switch c.SerialDriver {
	case "", "bugst", "tarm":
	default:
		return fmt.Errorf("%w, got %q", errUnknownSerialDriver, c.SerialDriver)
	}
	if c.TickPeriod <= 0 {
		return errBadTickPeriod
	}
	if c.AlertPhone != "" {
		if _, err := at.SendSMSHeader(c.AlertPhone); err != nil {
			return fmt.Errorf("alert phone %q: %w", c.AlertPhone, err)
		}
	}
	return nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = 115200
		c.SerialDriver = "bugst"
		c.LogLevel = "info"
		c.ATTimeout = 5 * time.Second
		c.InitTimeout = 30 * time.Second
		c.TickPeriod = 40 * time.Millisecond
		c.SensorTimeout = 10
		c.BLETimeout = 20
		c.DisplayStatus = "sensor"
		c.RatePerMinute = 30
		c.MaxRetries = 3
		c.MQTTClientID = "pulsemon-1"
		c.MQTTTopic = "pulsemon"
		return nil
	}
}

// WithFile loads configuration from a YAML file. Keys absent from the file
// keep their current value. An empty path is a no-op.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		texts := map[string]*string{
			"BIND_ADDRESS":   &c.BindAddress,
			"SERIAL_PORT":    &c.SerialPort,
			"SERIAL_DRIVER":  &c.SerialDriver,
			"LOG_LEVEL":      &c.LogLevel,
			"SIM_PIN":        &c.SimPIN,
			"DISPLAY_STATUS": &c.DisplayStatus,
			"ALERT_PHONE":    &c.AlertPhone,
			"MQTT_BROKER":    &c.MQTTBroker,
			"MQTT_CLIENT_ID": &c.MQTTClientID,
			"MQTT_TOPIC":     &c.MQTTTopic,
			"MQTT_USERNAME":  &c.MQTTUsername,
			"MQTT_PASSWORD":  &c.MQTTPassword,
		}
		for key, dst := range texts {
			if v := os.Getenv(key); v != "" {
				*dst = v
			}
		}

		ints := map[string]*int{
			"BAUD_RATE":       &c.BaudRate,
			"SENSOR_TIMEOUT":  &c.SensorTimeout,
			"BLE_TIMEOUT":     &c.BLETimeout,
			"RATE_PER_MINUTE": &c.RatePerMinute,
			"MAX_RETRIES":     &c.MaxRetries,
		}
		for key, dst := range ints {
			if v := os.Getenv(key); v != "" {
				if n, err := strconv.Atoi(v); err == nil {
					*dst = n
				}
			}
		}

		durations := map[string]*time.Duration{
			"AT_TIMEOUT":   &c.ATTimeout,
			"INIT_TIMEOUT": &c.InitTimeout,
			"TICK_PERIOD":  &c.TickPeriod,
		}
		for key, dst := range durations {
			if v := os.Getenv(key); v != "" {
				if d, err := time.ParseDuration(v); err == nil {
					*dst = d
				}
			}
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags. Only flags set on
// the command line override earlier options.
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		fSet.Visit(func(f *flag.Flag) {
			v := f.Value.String()
			switch f.Name {
			case "bind-address":
				c.BindAddress = v
			case "serial-port":
				c.SerialPort = v
			case "baud-rate":
				if b, err := strconv.Atoi(v); err == nil {
					c.BaudRate = b
				}
			case "serial-driver":
				c.SerialDriver = v
			case "log-level":
				c.LogLevel = v
			case "sim-pin":
				c.SimPIN = v
			case "at-timeout":
				if d, err := time.ParseDuration(v); err == nil {
					c.ATTimeout = d
				}
			case "tick-period":
				if d, err := time.ParseDuration(v); err == nil {
					c.TickPeriod = d
				}
			case "display-status":
				c.DisplayStatus = v
			case "alert-phone":
				c.AlertPhone = v
			case "mqtt-broker":
				c.MQTTBroker = v
			case "mqtt-topic":
				c.MQTTTopic = v
			}
		})
		return nil
	}
}
