package at_test

import (
	"errors"
	"slices"
	"testing"

	"i4.energy/across/pulsemon/at"
)

const (
	unreadResponse = "AT+CMGR=05,0\r\r\n+CMGR: \"REC UNREAD\",\"+15551234567\",\"\",\"24/12/01,10:00:00+00\"\r\nhello there\r\n\r\nOK\r\n"
	readResponse   = "\r\n+CMGR: \"REC READ\",\"+44770090012\",\"\",\"24/12/01,10:00:00+00\"\r\nsay \"hi\"\r\n\r\nOK\r\n"
)

func TestStateOf(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected at.SMSState
	}{
		{name: "Unread", input: unreadResponse, expected: at.SMSStateUnread},
		{name: "Read", input: readResponse, expected: at.SMSStateRead},
		{name: "Quote with other text", input: "\"STO SENT\",\"+1\"", expected: at.SMSStateNone},
		{name: "No quotes", input: "\r\nOK\r\n", expected: at.SMSStateNone},
		{name: "Skips unrelated quote", input: "\"x\" \"REC READ\"", expected: at.SMSStateRead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := at.StateOf([]byte(tt.input)); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestContact(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{name: "With echoed command", input: unreadResponse, expected: "+15551234567", ok: true},
		{name: "Without echo", input: readResponse, expected: "+44770090012", ok: true},
		{name: "Short number cut at quote", input: "\r\n+CMGR: \"REC READ\",\"+4412\",\"\"\r\nx\r\n\r\nOK\r\n", expected: "+4412", ok: true},
		{name: "No comma", input: "\r\n+CMGR: \"REC READ\"\r\n", ok: false},
		{name: "Too short", input: "AT", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := at.Contact([]byte(tt.input))
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestBody(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{name: "Plain text", input: unreadResponse, expected: "hello there", ok: true},
		{name: "Body with quotes", input: readResponse, expected: "say \"hi\"", ok: true},
		{name: "Multi-line body", input: "\r\n+CMGR: \"REC READ\",\"+15551234567\"\r\nline one\r\nline two\r\n\r\nOK\r\n", expected: "line one\r\nline two", ok: true},
		{name: "Empty body", input: "\r\n+CMGR: \"REC READ\",\"+15551234567\"\r\n\r\nOK\r\n", expected: "", ok: true},
		{name: "No terminator", input: "\r\n+CMGR: \"REC READ\",\"+15551234567\"\r\nhi\r\n", ok: false},
		{name: "Error terminator", input: "\r\nERROR\r\n", ok: false},
		{name: "No header", input: "\r\nOK\r\n", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := at.Body([]byte(tt.input))
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestSignalStrength(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
		err      error
	}{
		{name: "Two digits", input: "\r\n+CSQ: 23,0\r\n\r\nOK\r\n", expected: 23},
		{name: "Single digit without space", input: ":5,0", expected: 5},
		{name: "Single digit with space", input: "+CSQ: 7,0", expected: 7},
		{name: "Two digits without space", input: ":23,0", expected: 23},
		{name: "Upper bound", input: "+CSQ: 31,99", expected: 31},
		{name: "Not detectable", input: "+CSQ: 99,99", err: at.ErrSignalUnknown},
		{name: "Out of range", input: "+CSQ: 45,0", err: at.ErrUnmatched},
		{name: "No colon", input: "\r\nOK\r\n", err: at.ErrUnmatched},
		{name: "No digits", input: "+CSQ: ,0", err: at.ErrUnmatched},
		{name: "Nothing after colon", input: "+CSQ:", err: at.ErrUnmatched},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := at.SignalStrength([]byte(tt.input))
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected error %v, got %v", tt.err, err)
			}
			if tt.err == nil && got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestParse(t *testing.T) {
	t.Run("SMS read", func(t *testing.T) {
		r := at.Parse([]byte(unreadResponse))
		if r.Status != at.StatusOK {
			t.Fatalf("expected OK, got %v", r.Status)
		}
		if r.SMS == nil {
			t.Fatal("expected SMS to be set")
		}
		want := at.SMS{State: at.SMSStateUnread, Contact: "+15551234567", Body: "hello there"}
		if *r.SMS != want {
			t.Errorf("expected %+v, got %+v", want, *r.SMS)
		}
		if r.Signal != -1 {
			t.Errorf("expected no signal, got %d", r.Signal)
		}
	})

	t.Run("Signal query", func(t *testing.T) {
		r := at.Parse([]byte("AT+CSQ\r\r\n+CSQ: 18,0\r\n\r\nOK\r\n"))
		if r.Status != at.StatusOK {
			t.Fatalf("expected OK, got %v", r.Status)
		}
		if r.Signal != 18 {
			t.Errorf("expected 18, got %d", r.Signal)
		}
		if r.SMS != nil {
			t.Errorf("expected no SMS, got %+v", r.SMS)
		}
		if !slices.Equal(r.Lines, []string{"+CSQ: 18,0"}) {
			t.Errorf("expected only the +CSQ line, got %q", r.Lines)
		}
	})

	t.Run("URCs are not lines", func(t *testing.T) {
		r := at.Parse([]byte("\r\n+CMTI: \"SM\",3\r\n\r\nOK\r\n"))
		if len(r.Lines) != 0 {
			t.Errorf("expected no lines, got %q", r.Lines)
		}
	})

	t.Run("Prompt", func(t *testing.T) {
		r := at.Parse([]byte("\r\n> "))
		if r.Status != at.StatusNoResponse {
			t.Errorf("expected no response, got %v", r.Status)
		}
		if !slices.Equal(r.Lines, []string{at.Prompt}) {
			t.Errorf("expected prompt line, got %q", r.Lines)
		}
	})

	t.Run("Error", func(t *testing.T) {
		r := at.Parse([]byte("\r\nERROR\r\n"))
		if r.Status != at.StatusError {
			t.Errorf("expected ERROR, got %v", r.Status)
		}
		if r.SMS != nil || len(r.Lines) != 0 {
			t.Errorf("expected empty response, got %+v", r)
		}
	})
}
