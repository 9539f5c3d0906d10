package modem

import (
	"errors"

	"i4.energy/across/pulsemon/at"
)

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when an operation is attempted on a Modem
	// that has no transport.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when Close is called on a Modem that has
	// already been closed, and by every exchange attempted afterwards.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrSIMPinRequired is returned when the SIM card requires a PIN and no
	// PIN was provided in the Config.
	//
	// Callers may handle this error specially (for example, by prompting
	// the user for a PIN) and retry initialization.
	ErrSIMPinRequired = errors.New("SIM PIN required")

	// ErrLoopRunning is returned by Loop when another Loop is already
	// receiving from the same transport.
	ErrLoopRunning = errors.New("receive loop already running")

	// ErrModemError is returned when the modem closes an exchange with ERROR.
	ErrModemError = errors.New("modem returned ERROR")

	// ErrNoResponse is returned when the receive path stops before the
	// modem sent a terminator.
	ErrNoResponse = errors.New("no response from modem")

	// ErrTimeout is returned when an exchange deadline passes before a
	// terminator arrives. It is distinct from ErrNoResponse so callers can
	// tell a silent modem from a dead receive path.
	ErrTimeout = errors.New("timed out waiting for modem response")

	// ErrResponseOverflow is returned when the response buffer fills up
	// before a terminator arrives. The partial response is still returned.
	ErrResponseOverflow = errors.New("response overflowed buffer")

	// ErrIndexOutOfRange is returned when a command parameter falls outside
	// what the modem accepts. Nothing is transmitted.
	ErrIndexOutOfRange = at.ErrIndexOutOfRange
)
