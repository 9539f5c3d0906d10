package report

import (
	"fmt"
	"log/slog"

	"i4.energy/across/pulsemon/monitor"
)

// SMSAlerter texts a phone when the heart rate alarm is raised. Only the
// rising edge alerts; a rate that stays out of band sends nothing more
// until the alarm has cleared once.
type SMSAlerter struct {
	gateway *Gateway
	phone   string
	logger  *slog.Logger
	edges   edgeDetector
}

func NewSMSAlerter(gateway *Gateway, phone string, logger *slog.Logger) *SMSAlerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMSAlerter{
		gateway: gateway,
		phone:   phone,
		logger:  logger.With("component", "sms-alerter"),
	}
}

// Observe implements monitor.Observer.
func (a *SMSAlerter) Observe(r monitor.Reading) {
	kind, ok := a.edges.transition(r.Alarm)
	if !ok || kind != KindAlarmRaised {
		return
	}

	id, err := a.gateway.Enqueue(SMSRequest{To: a.phone, Message: AlertMessage(r.Sample)})
	if err != nil {
		a.logger.Error("alert not queued", "heart_rate", r.Sample.HeartRate, "error", err)
		return
	}
	a.logger.Info("alert queued", "id", id, "heart_rate", r.Sample.HeartRate)
}

// AlertMessage is the text sent for an out of band sample.
func AlertMessage(s monitor.Sample) string {
	return fmt.Sprintf("ALERT: heart rate %d bpm outside %d-%d, SpO2 %d%% at %s",
		s.HeartRate, monitor.LowThreshold, monitor.HighThreshold, s.SpO2,
		s.Taken.UTC().Format("15:04:05"))
}
