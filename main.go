package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"i4.energy/across/pulsemon/driver/stub"
	"i4.energy/across/pulsemon/modem"
	"i4.energy/across/pulsemon/monitor"
	"i4.energy/across/pulsemon/report"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	flag.String("serial-port", "/dev/ttyUSB0", "Serial port to connect to the modem, empty to run without one")
	flag.Int("baud-rate", 115200, "Baud rate for serial communication")
	flag.String("serial-driver", "bugst", "Serial backend (bugst, tarm)")
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.String("sim-pin", "", "SIM card PIN code (if required)")
	flag.Duration("at-timeout", 5*time.Second, "Timeout of a single AT exchange")
	flag.Duration("tick-period", 40*time.Millisecond, "Sampling period of the control loop")
	flag.String("display-status", "sensor", "Display mode (default, shutdown, sensor, ble)")
	flag.String("alert-phone", "", "Phone number alerted by SMS when the alarm is raised")
	flag.String("mqtt-broker", "", "MQTT broker URL, empty disables telemetry")
	flag.String("mqtt-topic", "pulsemon", "MQTT topic prefix")
	flag.Parse()

	config, err := LoadConfig(WithDefaults(), WithFile(*configPath), WithEnv(), WithFlags(flag.CommandLine))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(config.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config, logger); err != nil {
		logger.Error("Monitor failed", "error", err)
		os.Exit(1)
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newDialer(config *Config) modem.Dialer {
	if config.SerialDriver == "tarm" {
		return modem.TarmDialer{PortName: config.SerialPort, BaudRate: config.BaudRate}
	}
	return modem.SerialDialer{PortName: config.SerialPort, BaudRate: config.BaudRate}
}

func run(ctx context.Context, config *Config, logger *slog.Logger) error {
	status, err := monitor.ParseDisplayStatus(config.DisplayStatus)
	if err != nil {
		return err
	}

	sensor := stub.NewSensor()
	display := stub.NewDisplay(logger)
	led := stub.NewLED(logger)

	var scheduler *monitor.Scheduler
	tick := monitor.NewTick()
	selector := monitor.NewSelector(sensor, display)
	machine := monitor.NewDisplayMachine(display, monitor.DisplayConfig{
		SensorTimeout: config.SensorTimeout,
		BLETimeout:    config.BLETimeout,
		Payload: func() string {
			latest, _ := scheduler.Latest()
			return fmt.Sprintf("HR:%d SpO2:%d", latest.Sample.HeartRate, latest.Sample.SpO2)
		},
	})
	scheduler = monitor.NewScheduler(monitor.SchedulerConfig{
		Tick:     tick,
		Sensor:   sensor,
		Selector: selector,
		Alarm:    monitor.NewAlarm(led),
		Display:  machine,
		Status:   status,
		Logger:   logger,
	})

	if status == monitor.StatusSensor {
		if err := selector.SetActive(true); err != nil {
			return fmt.Errorf("activate sensor: %w", err)
		}
	}

	hub := report.NewHub(logger)
	scheduler.Subscribe(hub)

	server := &Server{
		Logger:    logger.With("component", "server"),
		Scheduler: scheduler,
		Selector:  selector,
		Hub:       hub,
		Display:   status,
	}

	var gateway *report.Gateway
	if config.SerialPort != "" {
		modemConfig, err := modem.NewConfigBuilder().
			WithATTimeout(config.ATTimeout).
			WithInitTimeout(config.InitTimeout).
			WithSimPIN(config.SimPIN).
			WithLogger(logger).
			WithDialer(newDialer(config)).
			Build()
		if err != nil {
			return fmt.Errorf("create modem config: %w", err)
		}

		m, err := modem.New(ctx, modemConfig)
		if err != nil {
			return fmt.Errorf("create modem: %w", err)
		}
		defer func() {
			logger.Info("Closing modem connection")
			if err := m.Close(); err != nil && !errors.Is(err, modem.ErrAlreadyClosed) {
				logger.Error("Failed to close modem", "error", err)
			}
		}()

		go func() {
			if err := m.Loop(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Modem receive loop stopped", "error", err)
			}
		}()
		go logURCs(ctx, m, logger)

		gateway = report.NewGateway(m, report.GatewayConfig{
			RatePerMinute: config.RatePerMinute,
			MaxRetries:    config.MaxRetries,
			Logger:        logger,
		})
		go gateway.Run(ctx)

		if config.AlertPhone != "" {
			scheduler.Subscribe(report.NewSMSAlerter(gateway, config.AlertPhone, logger))
		}

		server.Modem = m
		server.Gateway = gateway
		logger.Info("Modem ready", "port", config.SerialPort, "driver", config.SerialDriver)
	}

	if config.MQTTBroker != "" {
		mqttConfig := report.MQTTConfig{
			Broker:   config.MQTTBroker,
			ClientID: config.MQTTClientID,
			Topic:    config.MQTTTopic,
			Username: config.MQTTUsername,
			Password: config.MQTTPassword,
			Logger:   logger,
		}
		if gateway != nil {
			mqttConfig.OnSMS = func(req report.SMSRequest) {
				if _, err := gateway.Enqueue(req); err != nil {
					logger.Warn("MQTT SMS request rejected", "to", req.To, "error", err)
				}
			}
		}

		client, err := report.DialMQTT(mqttConfig)
		if err != nil {
			return err
		}
		publisher := report.NewMQTTPublisher(client, config.MQTTTopic, logger)
		scheduler.Subscribe(publisher)
		go publisher.Run(ctx)
	}

	go monitor.RunTimer(ctx, config.TickPeriod, tick)
	go scheduler.Run(ctx)

	httpServer := &http.Server{
		Addr:    config.BindAddress,
		Handler: server,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Closing HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shut down HTTP server: %w", err)
	}
	return nil
}

// logURCs drains unsolicited result codes. Codes not drained in time are
// dropped by the modem.
func logURCs(ctx context.Context, m *modem.Modem, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case urc := <-m.URC():
			logger.Info("Unsolicited result code", "urc", urc)
		}
	}
}
