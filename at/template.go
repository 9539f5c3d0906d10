package at

const (
	// MaxSMS is the highest message index addressed on the SIM storage.
	MaxSMS = 50
	// PhoneNumberLen is the width of the number slot in the send command,
	// international format with leading '+', e.g. "+15551234567".
	PhoneNumberLen = 12
	// PhoneNumberOffset is where the number starts inside the send command.
	PhoneNumberOffset = 9
	// MaxMessageLen is the longest text-mode body a single SMS carries.
	MaxMessageLen = 160
)

// Template is a fixed-length command pattern with placeholder positions
// that receive single ASCII digits. Templates are immutable: Fill always
// writes into a fresh copy, so one template serves any number of callers.
type Template struct {
	pattern string
	slots   []int
}

// NewTemplate returns a template for pattern with digit placeholders at
// the given byte offsets.
func NewTemplate(pattern string, slots ...int) Template {
	return Template{pattern: pattern, slots: slots}
}

// Len is the length of every command built from t.
func (t Template) Len() int { return len(t.pattern) }

func (t Template) String() string { return t.pattern }

// Fill copies the pattern and writes digits[i] as ASCII into slot i.
// Callers validate ranges first; a digit outside 0-9 or a count mismatch
// panics since it is a programming error in this package.
func (t Template) Fill(digits ...int) []byte {
	if len(digits) != len(t.slots) {
		panic("at: template digit count mismatch")
	}
	cmd := []byte(t.pattern)
	for i, d := range digits {
		if d < 0 || d > 9 {
			panic("at: template digit out of range")
		}
		cmd[t.slots[i]] = byte('0' + d)
	}
	return cmd
}

var (
	readSMSTemplate    = NewTemplate("AT+CMGR=xx,x", 8, 9, 11)
	deleteSMSTemplate  = NewTemplate("AT+CMGD=xx", 8, 9)
	textModeTemplate   = NewTemplate("AT+CMGF=x", 8)
	cnmiTemplate       = NewTemplate("AT+CNMI=0,0,0,0,0", 8, 10, 12, 14, 16)
	rejectCallTemplate = NewTemplate("AT+GSMBUSY=x", 11)
)

const sendSMSTemplate = `AT+CMGS="+xxxxxxxxxxx"`

// ReadSMSLen is the length of a read command, which is also where the
// response scan for the sender starts, skipping an echoed command.
var ReadSMSLen = readSMSTemplate.Len()

// Read modes of AT+CMGR.
const (
	ReadMarkRead  = 0
	ReadKeepState = 1
)

// ReadSMS builds AT+CMGR for index and mode. ReadMarkRead marks the message
// as read, ReadKeepState leaves its status unchanged.
func ReadSMS(index, mode int) ([]byte, error) {
	if index < 0 || index > MaxSMS {
		return nil, ErrIndexOutOfRange
	}
	if mode < 0 || mode > 1 {
		return nil, ErrIndexOutOfRange
	}
	return readSMSTemplate.Fill(index/10, index%10, mode), nil
}

// DeleteSMS builds AT+CMGD for index.
func DeleteSMS(index int) ([]byte, error) {
	if index < 0 || index >= MaxSMS {
		return nil, ErrIndexOutOfRange
	}
	return deleteSMSTemplate.Fill(index/10, index%10), nil
}

// SendSMSHeader builds the AT+CMGS header with phone placed at
// PhoneNumberOffset. The result always has the template's length.
func SendSMSHeader(phone string) ([]byte, error) {
	if len(phone) != PhoneNumberLen {
		return nil, ErrPhoneNumberLength
	}
	cmd := []byte(sendSMSTemplate)
	copy(cmd[PhoneNumberOffset:], phone)
	return cmd, nil
}

// SendSMSHeaderLen is the fixed length of every send header.
const SendSMSHeaderLen = len(sendSMSTemplate)

// SetTextMode builds AT+CMGF. Mode 0 is PDU, mode 1 is text.
func SetTextMode(mode int) ([]byte, error) {
	if mode < 0 || mode > 1 {
		return nil, ErrIndexOutOfRange
	}
	return textModeTemplate.Fill(mode), nil
}

// CNMI holds the new message indication parameters of AT+CNMI.
type CNMI struct {
	Mode int // 0-3
	MT   int // 0-3
	BM   int // 0-2
	DS   int // 0-1
	BFR  int // 0-1
}

func (c CNMI) valid() bool {
	return inRange(c.Mode, 3) && inRange(c.MT, 3) && inRange(c.BM, 2) &&
		inRange(c.DS, 1) && inRange(c.BFR, 1)
}

// NewMessageIndication builds AT+CNMI. All five fields are checked before
// anything is written.
func NewMessageIndication(c CNMI) ([]byte, error) {
	if !c.valid() {
		return nil, ErrIndexOutOfRange
	}
	return cnmiTemplate.Fill(c.Mode, c.MT, c.BM, c.DS, c.BFR), nil
}

// CallMode selects how the modem treats incoming calls.
type CallMode int

const (
	CallsAllowed        CallMode = 0
	CallsForbidden      CallMode = 1
	VoiceCallsForbidden CallMode = 2 // CSD calls still allowed
)

// RejectCalls builds AT+GSMBUSY for mode.
func RejectCalls(mode CallMode) ([]byte, error) {
	if !inRange(int(mode), 2) {
		return nil, ErrIndexOutOfRange
	}
	return rejectCallTemplate.Fill(int(mode)), nil
}

func inRange(v, hi int) bool {
	return v >= 0 && v <= hi
}
