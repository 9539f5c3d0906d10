package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"
	"i4.energy/across/pulsemon/at"
	"i4.energy/across/pulsemon/driver/stub"
	"i4.energy/across/pulsemon/modem"
	"i4.energy/across/pulsemon/monitor"
	"i4.energy/across/pulsemon/report"
)

type fakeEngine struct {
	sms     at.SMS
	rssi    int
	err     error
	deleted []int
	modes   []int
}

func (f *fakeEngine) ReadSMS(_ context.Context, index, mode int) (at.SMS, error) {
	f.modes = append(f.modes, mode)
	if f.err != nil {
		return at.SMS{}, f.err
	}
	sms := f.sms
	sms.Index = index
	return sms, nil
}

func (f *fakeEngine) DeleteSMS(_ context.Context, index int) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, index)
	return nil
}

func (f *fakeEngine) SignalStrength(context.Context) (int, error) {
	return f.rssi, f.err
}

func do(s *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func newModemServer(engine *fakeEngine, sender report.SMSSender) *Server {
	return &Server{
		Modem:   engine,
		Gateway: report.NewGateway(sender, report.GatewayConfig{QueueSize: 1}),
	}
}

func TestHandleSMS(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "Queued", body: `{"to":"+15551234567","message":"hi"}`, status: http.StatusAccepted},
		{name: "Bad JSON", body: `{`, status: http.StatusBadRequest},
		{name: "Missing message", body: `{"to":"+15551234567"}`, status: http.StatusBadRequest},
		{name: "Recipient too long", body: `{"to":"+447911123456","message":"hi"}`, status: http.StatusBadRequest},
		{name: "Message too long", body: `{"to":"+15551234567","message":"` + strings.Repeat("x", at.MaxMessageLen+1) + `"}`, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newModemServer(&fakeEngine{}, report.NewMockSMSSender(gomock.NewController(t)))

			rec := do(s, http.MethodPost, "/sms", tt.body)
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body)
			}
		})
	}

	t.Run("Queue full", func(t *testing.T) {
		s := newModemServer(&fakeEngine{}, report.NewMockSMSSender(gomock.NewController(t)))
		body := `{"to":"+15551234567","message":"hi"}`

		do(s, http.MethodPost, "/sms", body)
		if rec := do(s, http.MethodPost, "/sms", body); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})

	t.Run("Wrong method", func(t *testing.T) {
		s := newModemServer(&fakeEngine{}, nil)
		if rec := do(s, http.MethodGet, "/sms", ""); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}

func TestHandleReadSMS(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		engine := &fakeEngine{sms: at.SMS{State: at.SMSStateUnread, Contact: "+15551234567", Body: "hello"}}
		s := newModemServer(engine, nil)

		rec := do(s, http.MethodGet, "/sms/7?keep=true", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var got struct {
			Index int    `json:"index"`
			Body  string `json:"body"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		if got.Index != 7 || got.Body != "hello" {
			t.Errorf("unexpected response %+v", got)
		}
		if engine.modes[0] != at.ReadKeepState {
			t.Errorf("expected keep-state read, got mode %d", engine.modes[0])
		}
	})

	t.Run("Empty slot", func(t *testing.T) {
		s := newModemServer(&fakeEngine{}, nil)
		if rec := do(s, http.MethodGet, "/sms/3", ""); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	errorCases := []struct {
		name   string
		err    error
		status int
	}{
		{"Out of range", modem.ErrIndexOutOfRange, http.StatusBadRequest},
		{"Timeout", modem.ErrTimeout, http.StatusGatewayTimeout},
		{"Modem error", modem.ErrModemError, http.StatusBadGateway},
		{"Closed", modem.ErrAlreadyClosed, http.StatusServiceUnavailable},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			s := newModemServer(&fakeEngine{err: tc.err}, nil)
			if rec := do(s, http.MethodGet, "/sms/99", ""); rec.Code != tc.status {
				t.Errorf("expected %d, got %d", tc.status, rec.Code)
			}
		})
	}

	t.Run("Non numeric index", func(t *testing.T) {
		s := newModemServer(&fakeEngine{}, nil)
		if rec := do(s, http.MethodGet, "/sms/abc", ""); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestHandleDeleteSMS(t *testing.T) {
	engine := &fakeEngine{}
	s := newModemServer(engine, nil)

	if rec := do(s, http.MethodDelete, "/sms/12", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(engine.deleted) != 1 || engine.deleted[0] != 12 {
		t.Errorf("expected index 12 deleted, got %v", engine.deleted)
	}
}

func TestHandleSignal(t *testing.T) {
	tests := []struct {
		name     string
		engine   *fakeEngine
		expected string
	}{
		{name: "Detectable", engine: &fakeEngine{rssi: 20}, expected: `{"rssi":20,"dbm":-73,"detectable":true}`},
		{name: "Unknown", engine: &fakeEngine{err: at.ErrSignalUnknown}, expected: `{"rssi":99,"dbm":0,"detectable":false}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(newModemServer(tt.engine, nil), http.MethodGet, "/signal", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestWithoutModem(t *testing.T) {
	s := &Server{}
	for _, route := range []struct{ method, target string }{
		{http.MethodPost, "/sms"},
		{http.MethodGet, "/sms/1"},
		{http.MethodDelete, "/sms/1"},
		{http.MethodGet, "/signal"},
		{http.MethodPut, "/sensor"},
	} {
		if rec := do(s, route.method, route.target, "{}"); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s: expected 503, got %d", route.method, route.target, rec.Code)
		}
	}
}

func TestStatusAndSensor(t *testing.T) {
	sensor := stub.NewSensor()
	display := stub.NewDisplay(nil)
	selector := monitor.NewSelector(sensor, display)
	tick := monitor.NewTick()
	scheduler := monitor.NewScheduler(monitor.SchedulerConfig{
		Tick:     tick,
		Sensor:   sensor,
		Selector: selector,
		Alarm:    monitor.NewAlarm(stub.NewLED(nil)),
		Display:  monitor.NewDisplayMachine(display, monitor.DisplayConfig{}),
		Status:   monitor.StatusSensor,
	})
	s := &Server{Scheduler: scheduler, Selector: selector, Display: monitor.StatusSensor}

	if rec := do(s, http.MethodPut, "/sensor", `{"active":true}`); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := do(s, http.MethodPut, "/sensor", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without active, got %d", rec.Code)
	}

	sensor.Inject(monitor.Sample{HeartRate: 142, SpO2: 96})
	tick.Set()
	if err := scheduler.Poll(context.Background()); err != nil {
		t.Fatalf("unexpected poll error: %v", err)
	}

	rec := do(s, http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got struct {
		Display      string           `json:"display"`
		SensorActive bool             `json:"sensorActive"`
		Modem        bool             `json:"modem"`
		Latest       *monitor.Reading `json:"latest"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Display != "sensor" || !got.SensorActive || got.Modem {
		t.Errorf("unexpected status %+v", got)
	}
	if got.Latest == nil || got.Latest.Sample.HeartRate != 142 || !got.Latest.Alarm.Active() {
		t.Errorf("unexpected latest reading %+v", got.Latest)
	}
}
