package modem_test

import (
	gomock "go.uber.org/mock/gomock"
	"i4.energy/across/pulsemon/modem"
)

type MockSequenceBuilder struct {
	transport *modem.MockTransport
	calls     []any
}

func NewMockSequence(transport *modem.MockTransport) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		transport: transport,
		calls:     []any{},
	}
}

// exchange expects cmd followed by a carriage return and answers with resp.
func (b *MockSequenceBuilder) exchange(cmd, resp string) *MockSequenceBuilder {
	wire := cmd + "\r"
	b.calls = append(b.calls,
		b.transport.EXPECT().Write([]byte(wire)).Return(len(wire), nil),
		b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			return copy(p, resp), nil
		}),
	)
	return b
}

func (b *MockSequenceBuilder) AT() *MockSequenceBuilder {
	return b.exchange("AT", "AT\r\r\nOK\r\n")
}

func (b *MockSequenceBuilder) EchoOff() *MockSequenceBuilder {
	return b.exchange("ATE0", "ATE0\r\r\nOK\r\n")
}

func (b *MockSequenceBuilder) PlainErrors() *MockSequenceBuilder {
	return b.exchange("AT+CMEE=0", "\r\nOK\r\n")
}

func (b *MockSequenceBuilder) SimPinRequired() *MockSequenceBuilder {
	return b.exchange("AT+CPIN?", "\r\n+CPIN: SIM PIN\r\n\r\nOK\r\n")
}

func (b *MockSequenceBuilder) SimReady() *MockSequenceBuilder {
	return b.exchange("AT+CPIN?", "\r\n+CPIN: READY\r\n\r\nOK\r\n")
}

func (b *MockSequenceBuilder) EnterPIN(pin string) *MockSequenceBuilder {
	return b.exchange(`AT+CPIN="`+pin+`"`, "\r\nOK\r\n")
}

func (b *MockSequenceBuilder) FlowControl() *MockSequenceBuilder {
	return b.exchange("AT+IFC=1,1", "\r\nOK\r\n")
}

func (b *MockSequenceBuilder) SMSTextMode() *MockSequenceBuilder {
	return b.exchange("AT+CMGF=1", "\r\nOK\r\n")
}

func (b *MockSequenceBuilder) NewMessageIndication() *MockSequenceBuilder {
	return b.exchange("AT+CNMI=0,0,0,0,0", "\r\nOK\r\n")
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}

// initMockCalls expects the full bring-up of a modem whose SIM is ready.
func initMockCalls(transport *modem.MockTransport) []any {
	return NewMockSequence(transport).
		AT().
		EchoOff().
		PlainErrors().
		SimReady().
		FlowControl().
		SMSTextMode().
		NewMessageIndication().
		Build()
}

// scriptInit scripts the bring-up on a TestTransport.
func scriptInit(tt *modem.TestTransport) *modem.TestTransport {
	return tt.
		Expect("AT\r", "AT\r\r\nOK\r\n").
		Expect("ATE0\r", "ATE0\r\r\nOK\r\n").
		Expect("AT+CMEE=0\r", "\r\nOK\r\n").
		Expect("AT+CPIN?\r", "\r\n+CPIN: READY\r\n\r\nOK\r\n").
		Expect("AT+IFC=1,1\r", "\r\nOK\r\n").
		Expect("AT+CMGF=1\r", "\r\nOK\r\n").
		Expect("AT+CNMI=0,0,0,0,0\r", "\r\nOK\r\n")
}
