package modem

import (
	"context"
	"errors"
	"fmt"
	"io"

	tarm "github.com/tarm/serial"
	"go.bug.st/serial"
)

//go:generate go tool mockgen -destination=mock_transport.go -package=modem . Transport,Dialer

// Transport represents an established, bidirectional byte stream to a cellular modem.
//
// A Transport is assumed to be already connected and ready for use. Reads block
// until bytes arrive, the way a UART receive path does. Typical implementations
// are serial ports or in-memory fakes used for testing.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport to a cellular modem.
//
// Dialer abstracts how the modem connection is created and is used during
// modem construction only. Once a Transport is obtained, the Dialer is no
// longer needed.
type Dialer interface {
	// Dial creates and returns a connected Transport. It should respect
	// cancellation and deadlines provided by the context.
	Dial(ctx context.Context) (Transport, error)
}

var (
	errNoPortName = errors.New("modem: serial port name is required")
	errNilContext = errors.New("modem: context is nil")
)

// DefaultBaudRate is the factory rate of SIM800 class modems.
const DefaultBaudRate = 115200

// SerialDialer opens the modem over a serial port using go.bug.st/serial.
type SerialDialer struct {
	PortName string
	// BaudRate is used when Mode is nil. Zero selects DefaultBaudRate.
	BaudRate int
	// Mode overrides the whole line configuration.
	Mode *serial.Mode
}

func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errNilContext
	}
	if d.PortName == "" {
		return nil, errNoPortName
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		mode = &serial.Mode{
			BaudRate: baudOrDefault(d.BaudRate),
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		}
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", d.PortName, err)
	}
	return port, nil
}

// TarmDialer opens the modem over a serial port using github.com/tarm/serial.
// It exists for adapters where the go.bug.st backend misbehaves.
type TarmDialer struct {
	PortName string
	BaudRate int
}

func (d TarmDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errNilContext
	}
	if d.PortName == "" {
		return nil, errNoPortName
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	port, err := tarm.OpenPort(&tarm.Config{
		Name:     d.PortName,
		Baud:     baudOrDefault(d.BaudRate),
		Size:     8,
		Parity:   tarm.ParityNone,
		StopBits: tarm.Stop1,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", d.PortName, err)
	}
	return port, nil
}

func baudOrDefault(baud int) int {
	if baud <= 0 {
		return DefaultBaudRate
	}
	return baud
}
