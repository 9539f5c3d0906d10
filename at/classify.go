package at

import "bytes"

// Status is the outcome of scanning a response buffer for a terminator.
type Status int

const (
	StatusNoResponse Status = iota // no terminator seen yet
	StatusOK
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	default:
		return "NO RESPONSE"
	}
}

var (
	terminatorOK    = []byte(TerminatorOK)
	terminatorError = []byte(TerminatorError)
)

// Terminal classifies a response buffer. It walks from the last byte
// toward the first, and at every carriage return compares the bytes that
// follow against the OK and ERROR terminators. The first match wins, so a
// late terminator takes precedence over an earlier one.
func Terminal(buf []byte) Status {
	s, _ := terminal(buf)
	return s
}

// terminal also reports where the matched terminator starts, or -1.
func terminal(buf []byte) (Status, int) {
	for i := len(buf) - 1; i >= 0; i-- {
		if buf[i] != '\r' {
			continue
		}
		switch tail := buf[i:]; {
		case bytes.HasPrefix(tail, terminatorOK):
			return StatusOK, i
		case bytes.HasPrefix(tail, terminatorError):
			return StatusError, i
		}
	}
	return StatusNoResponse, -1
}
