package modem

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"i4.energy/across/pulsemon/at"
)

// ReadSMS reads the message stored at index. mode is at.ReadMarkRead or
// at.ReadKeepState. An empty slot yields a record with at.SMSStateNone.
func (m *Modem) ReadSMS(ctx context.Context, index, mode int) (at.SMS, error) {
	cmd, err := at.ReadSMS(index, mode)
	if err != nil {
		return at.SMS{}, err
	}

	resp, err := m.Exchange(ctx, cmd)
	if err != nil {
		return at.SMS{}, fmt.Errorf("read SMS %d: %w", index, err)
	}

	sms := at.SMS{Index: index}
	if resp.SMS != nil {
		sms = *resp.SMS
		sms.Index = index
	}
	return sms, nil
}

// DeleteSMS removes the message stored at index.
func (m *Modem) DeleteSMS(ctx context.Context, index int) error {
	cmd, err := at.DeleteSMS(index)
	if err != nil {
		return err
	}
	if _, err := m.Exchange(ctx, cmd); err != nil {
		return fmt.Errorf("delete SMS %d: %w", index, err)
	}
	return nil
}

// SendSMS sends a text message to recipient.
//
// The message is sent in text mode. The recipient must be in international
// format filling the number slot exactly, e.g. "+15551234567". The header
// is transmitted, the modem is given the settle delay to raise its prompt,
// then the body goes out closed by Ctrl-Z. The call blocks until the modem
// accepts the message (OK) or rejects it (ERROR).
func (m *Modem) SendSMS(ctx context.Context, recipient, message string) error {
	header, err := at.SendSMSHeader(recipient)
	if err != nil {
		return err
	}
	if len(message) > at.MaxMessageLen {
		return at.ErrMessageTooLong
	}

	m.exchangeMu.Lock()
	defer m.exchangeMu.Unlock()

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	m.buf.Reset()
	if err := m.write(header, at.CR); err != nil {
		return err
	}

	if err := sleep(ctx, m.config.sendSettleDelay); err != nil {
		return fmt.Errorf("send SMS: %w", contextError(ctx))
	}
	// The header alone can be refused, e.g. with no network registration.
	if m.buf.Status() == at.StatusError {
		return fmt.Errorf("send SMS header: %w", ErrModemError)
	}

	if err := m.write([]byte(message), at.CtrlZ); err != nil {
		return err
	}
	if _, err := m.await(ctx); err != nil {
		return fmt.Errorf("send SMS: %w", err)
	}

	m.logger.Info("SMS sent", "recipient", recipient, "length", len(message))
	return nil
}

// SetTextMode selects PDU (0) or text (1) message format.
func (m *Modem) SetTextMode(ctx context.Context, mode int) error {
	cmd, err := at.SetTextMode(mode)
	if err != nil {
		return err
	}
	if _, err := m.Exchange(ctx, cmd); err != nil {
		return fmt.Errorf("set text mode %d: %w", mode, err)
	}
	return nil
}

// SetNewMessageIndication configures how the modem announces new messages.
func (m *Modem) SetNewMessageIndication(ctx context.Context, c at.CNMI) error {
	cmd, err := at.NewMessageIndication(c)
	if err != nil {
		return err
	}
	if _, err := m.Exchange(ctx, cmd); err != nil {
		return fmt.Errorf("set new message indication: %w", err)
	}
	return nil
}

// RejectCalls selects which incoming calls the modem refuses.
func (m *Modem) RejectCalls(ctx context.Context, mode at.CallMode) error {
	cmd, err := at.RejectCalls(mode)
	if err != nil {
		return err
	}
	if _, err := m.Exchange(ctx, cmd); err != nil {
		return fmt.Errorf("reject calls %d: %w", mode, err)
	}
	return nil
}

// SignalStrength queries the received signal strength indication, 0 to 31.
// at.ErrSignalUnknown is returned when the modem cannot measure it.
func (m *Modem) SignalStrength(ctx context.Context) (int, error) {
	resp, err := m.Exchange(ctx, []byte(at.CmdSignal))
	if err != nil {
		return 0, fmt.Errorf("query signal strength: %w", err)
	}
	if resp.Signal >= 0 {
		return resp.Signal, nil
	}
	// Parse leaves Signal unset for 99; read the +CSQ line itself so that
	// case still reports at.ErrSignalUnknown.
	i := bytes.Index(resp.Raw, []byte(at.UrcSignalStrength))
	if i < 0 {
		return 0, fmt.Errorf("parse signal strength: %w", at.ErrUnmatched)
	}
	rssi, err := at.SignalStrength(resp.Raw[i:])
	if err != nil {
		return 0, fmt.Errorf("parse signal strength: %w", err)
	}
	return rssi, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
