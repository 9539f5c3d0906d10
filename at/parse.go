package at

import (
	"bufio"
	"bytes"
	"strings"
)

// SMSState is the storage status of a message read with AT+CMGR.
type SMSState int

const (
	SMSStateNone SMSState = iota // no status token found
	SMSStateUnread
	SMSStateRead
)

func (s SMSState) String() string {
	switch s {
	case SMSStateUnread:
		return "REC UNREAD"
	case SMSStateRead:
		return "REC READ"
	default:
		return "NONE"
	}
}

const (
	recUnread = "REC UNREAD"
	recRead   = "REC READ"
)

// SMS is a message extracted from a read response.
type SMS struct {
	Index   int
	State   SMSState
	Contact string
	Body    string
}

// StateOf scans buf for a quoted status token. Quotes followed by
// anything else are skipped; if none matches the result is SMSStateNone.
func StateOf(buf []byte) SMSState {
	for i, b := range buf {
		if b != '"' {
			continue
		}
		rest := buf[i+1:]
		switch {
		case bytes.HasPrefix(rest, []byte(recUnread)):
			return SMSStateUnread
		case bytes.HasPrefix(rest, []byte(recRead)):
			return SMSStateRead
		}
	}
	return SMSStateNone
}

// Contact returns the sender number of a read response: the first comma
// after an echoed read command is followed by a quote, then the number.
// At most PhoneNumberLen bytes are taken, cut at a closing quote.
func Contact(buf []byte) (string, bool) {
	if len(buf) <= ReadSMSLen {
		return "", false
	}
	i := bytes.IndexByte(buf[ReadSMSLen:], ',')
	if i < 0 {
		return "", false
	}
	start := ReadSMSLen + i + 2
	if start >= len(buf) {
		return "", false
	}
	end := min(start+PhoneNumberLen, len(buf))
	num := buf[start:end]
	if q := bytes.IndexByte(num, '"'); q >= 0 {
		num = num[:q]
	}
	if len(num) == 0 {
		return "", false
	}
	return string(num), true
}

// Body returns the text of a read response: everything between the end
// of the +CMGR header line and the OK terminator. A body containing quotes
// or line breaks is returned intact.
func Body(buf []byte) (string, bool) {
	status, end := terminal(buf)
	if status != StatusOK {
		return "", false
	}
	header := bytes.Index(buf, []byte(ReadSMSHeader))
	if header < 0 || header > end {
		return "", false
	}
	eol := bytes.Index(buf[header:], []byte(CRLF))
	if eol < 0 {
		return "", false
	}
	start := header + eol + len(CRLF)
	if start > end {
		return "", false
	}
	body := bytes.TrimSuffix(buf[start:end], []byte(CRLF))
	return string(body), true
}

// SignalStrength parses the RSSI of a +CSQ response. It finds the first
// colon, skips blanks, and reads one digit if a comma follows it, two
// otherwise. 99 means not detectable and yields ErrSignalUnknown.
func SignalStrength(buf []byte) (int, error) {
	i := bytes.IndexByte(buf, ':')
	if i < 0 {
		return 0, ErrUnmatched
	}
	i++
	for i < len(buf) && buf[i] == ' ' {
		i++
	}
	if i >= len(buf) || !isDigit(buf[i]) {
		return 0, ErrUnmatched
	}
	if i+1 >= len(buf) || !isDigit(buf[i+1]) {
		return int(buf[i] - '0'), nil
	}
	rssi := 10*int(buf[i]-'0') + int(buf[i+1]-'0')
	switch {
	case rssi == 99:
		return 0, ErrSignalUnknown
	case rssi > 31:
		return 0, ErrUnmatched
	}
	return rssi, nil
}

// isEcho reports whether a token is a command echoed back by the modem.
func isEcho(token string) bool {
	return strings.HasPrefix(token, "AT") && strings.HasSuffix(token, CR)
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// Response is a response buffer broken into its parts.
type Response struct {
	Status Status
	// Lines holds the information lines in arrival order, without the
	// final result code, URCs and blank lines.
	Lines []string
	// SMS is set when the response carries a +CMGR header.
	SMS *SMS
	// Signal is the parsed +CSQ value, or -1.
	Signal int
	Raw    []byte
}

// Parse tokenizes buf with Splitter and collects a typed Response. The
// status comes from Terminal so it agrees with the exchange poll.
func Parse(buf []byte) Response {
	r := Response{
		Status: Terminal(buf),
		Signal: -1,
		Raw:    buf,
	}

	scanner := bufio.NewScanner(bytes.NewReader(buf))
	scanner.Split(Splitter)

	for scanner.Scan() {
		line := scanner.Text()
		if isEcho(line) {
			continue
		}
		if line != Prompt {
			line = strings.TrimSpace(line)
		}
		if line == "" {
			continue
		}
		switch Classify(line) {
		case TypeData, TypePrompt:
			r.Lines = append(r.Lines, line)
		}
		if strings.HasPrefix(line, UrcSignalStrength) {
			if rssi, err := SignalStrength([]byte(line)); err == nil {
				r.Signal = rssi
			}
		}
	}

	if r.Status == StatusOK && bytes.Contains(buf, []byte(ReadSMSHeader)) {
		sms := &SMS{State: StateOf(buf)}
		sms.Contact, _ = Contact(buf)
		sms.Body, _ = Body(buf)
		r.SMS = sms
	}
	return r
}
