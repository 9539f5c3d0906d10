package at

import "errors"

var (
	// ErrIndexOutOfRange is returned by the command builders when a parameter
	// falls outside the range the modem accepts. Nothing is built and nothing
	// must be transmitted.
	ErrIndexOutOfRange = errors.New("parameter out of range")

	// ErrPhoneNumberLength is returned when a phone number does not fill the
	// fixed-width slot of the send command exactly.
	ErrPhoneNumberLength = errors.New("phone number has wrong length")

	// ErrMessageTooLong is returned when an SMS body exceeds MaxMessageLen.
	ErrMessageTooLong = errors.New("message too long")

	// ErrUnmatched is returned by the extractors when the response holds no
	// token they recognise.
	ErrUnmatched = errors.New("no matching token in response")

	// ErrSignalUnknown is returned when the modem reports signal strength 99,
	// meaning not known or not detectable.
	ErrSignalUnknown = errors.New("signal strength not detectable")
)
