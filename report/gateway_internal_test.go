package report

import (
	"testing"
	"time"
)

func TestRateWindow(t *testing.T) {
	now := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)
	r := newRateWindow(2, time.Minute, func() time.Time { return now })

	if wait := r.reserve(); wait != 0 {
		t.Fatalf("first: expected admission, got wait %v", wait)
	}
	now = now.Add(10 * time.Second)
	if wait := r.reserve(); wait != 0 {
		t.Fatalf("second: expected admission, got wait %v", wait)
	}

	now = now.Add(10 * time.Second)
	if wait := r.reserve(); wait != 40*time.Second {
		t.Errorf("third: expected 40s wait, got %v", wait)
	}

	now = now.Add(41 * time.Second)
	if wait := r.reserve(); wait != 0 {
		t.Errorf("after window slid: expected admission, got wait %v", wait)
	}
}

func TestDecodeSMSRequest(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    SMSRequest
		wantErr bool
	}{
		{name: "Valid", payload: `{"to":" +15551234567 ","message":"hi"}`, want: SMSRequest{To: "+15551234567", Message: "hi"}},
		{name: "Missing message", payload: `{"to":"+15551234567"}`, wantErr: true},
		{name: "Not JSON", payload: `to=1`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeSMSRequest([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}
