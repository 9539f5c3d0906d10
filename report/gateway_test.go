package report_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
	"i4.energy/across/pulsemon/at"
	"i4.energy/across/pulsemon/report"
)

const phone = "+15551234567"

// runGateway starts g and stops it when the test ends.
func runGateway(t *testing.T, g *report.Gateway) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestGatewayEnqueue(t *testing.T) {
	t.Run("Rejects incomplete requests", func(t *testing.T) {
		g := report.NewGateway(nil, report.GatewayConfig{})

		for _, req := range []report.SMSRequest{{To: phone}, {Message: "hi"}} {
			if _, err := g.Enqueue(req); !errors.Is(err, report.ErrInvalidRequest) {
				t.Errorf("%+v: expected ErrInvalidRequest, got %v", req, err)
			}
		}
	})

	t.Run("Rejects requests the modem cannot send", func(t *testing.T) {
		g := report.NewGateway(nil, report.GatewayConfig{QueueSize: 1})

		tests := []struct {
			name  string
			req   report.SMSRequest
			cause error
		}{
			{name: "Short recipient", req: report.SMSRequest{To: "+4479111234", Message: "hi"}, cause: at.ErrPhoneNumberLength},
			{name: "Long recipient", req: report.SMSRequest{To: "+447911123456", Message: "hi"}, cause: at.ErrPhoneNumberLength},
			{name: "Long message", req: report.SMSRequest{To: phone, Message: strings.Repeat("x", at.MaxMessageLen+1)}, cause: at.ErrMessageTooLong},
		}
		for _, tc := range tests {
			_, err := g.Enqueue(tc.req)
			if !errors.Is(err, report.ErrInvalidRequest) || !errors.Is(err, tc.cause) {
				t.Errorf("%s: expected ErrInvalidRequest wrapping %v, got %v", tc.name, tc.cause, err)
			}
		}

		// Rejected requests take no queue slot.
		if _, err := g.Enqueue(report.SMSRequest{To: phone, Message: "hi"}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("ErrQueueFull when nothing drains", func(t *testing.T) {
		g := report.NewGateway(nil, report.GatewayConfig{QueueSize: 1})

		id, err := g.Enqueue(report.SMSRequest{To: phone, Message: "one"})
		if err != nil || id == "" {
			t.Fatalf("expected an id, got %q, %v", id, err)
		}
		if _, err := g.Enqueue(report.SMSRequest{To: phone, Message: "two"}); !errors.Is(err, report.ErrQueueFull) {
			t.Errorf("expected ErrQueueFull, got %v", err)
		}
	})
}

func TestGatewayDelivery(t *testing.T) {
	t.Run("Sends queued message", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		sender := report.NewMockSMSSender(ctrl)
		sent := make(chan struct{})

		sender.EXPECT().SendSMS(gomock.Any(), phone, "hello").DoAndReturn(
			func(context.Context, string, string) error {
				close(sent)
				return nil
			})

		g := report.NewGateway(sender, report.GatewayConfig{})
		runGateway(t, g)

		if _, err := g.Enqueue(report.SMSRequest{To: phone, Message: "hello"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		waitFor(t, sent, "send")
	})

	t.Run("Retries until success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		sender := report.NewMockSMSSender(ctrl)
		sent := make(chan struct{})

		gomock.InOrder(
			sender.EXPECT().SendSMS(gomock.Any(), phone, "hello").Return(errors.New("modem busy")),
			sender.EXPECT().SendSMS(gomock.Any(), phone, "hello").DoAndReturn(
				func(context.Context, string, string) error {
					close(sent)
					return nil
				}),
		)

		g := report.NewGateway(sender, report.GatewayConfig{MaxRetries: 2, RetryBackoff: time.Millisecond})
		runGateway(t, g)

		g.Enqueue(report.SMSRequest{To: phone, Message: "hello"})
		waitFor(t, sent, "retry")
	})

	t.Run("Gives up after MaxRetries and moves on", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		sender := report.NewMockSMSSender(ctrl)
		next := make(chan struct{})

		gomock.InOrder(
			sender.EXPECT().SendSMS(gomock.Any(), phone, "lost").Return(errors.New("no network")).Times(2),
			sender.EXPECT().SendSMS(gomock.Any(), phone, "next").DoAndReturn(
				func(context.Context, string, string) error {
					close(next)
					return nil
				}),
		)

		g := report.NewGateway(sender, report.GatewayConfig{MaxRetries: 1, RetryBackoff: time.Millisecond})
		runGateway(t, g)

		g.Enqueue(report.SMSRequest{To: phone, Message: "lost"})
		g.Enqueue(report.SMSRequest{To: phone, Message: "next"})
		waitFor(t, next, "next message")
	})

	t.Run("Does not retry a refused request", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		sender := report.NewMockSMSSender(ctrl)
		next := make(chan struct{})

		gomock.InOrder(
			sender.EXPECT().SendSMS(gomock.Any(), phone, "refused").
				Return(fmt.Errorf("send SMS: %w", at.ErrPhoneNumberLength)).Times(1),
			sender.EXPECT().SendSMS(gomock.Any(), phone, "next").DoAndReturn(
				func(context.Context, string, string) error {
					close(next)
					return nil
				}),
		)

		g := report.NewGateway(sender, report.GatewayConfig{MaxRetries: 3, RetryBackoff: time.Millisecond})
		runGateway(t, g)

		g.Enqueue(report.SMSRequest{To: phone, Message: "refused"})
		g.Enqueue(report.SMSRequest{To: phone, Message: "next"})
		waitFor(t, next, "next message")
	})
}
