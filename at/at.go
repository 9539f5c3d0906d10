package at

const (
	// Terminal Control
	CR     = "\r"
	CRLF   = "\r\n"
	Prompt = "> "
	CtrlZ  = "\x1a"

	// Response Codes
	OK         = "OK"
	ERROR      = "ERROR"
	NoCarrier  = "NO CARRIER"
	NoDialtone = "NO DIALTONE"
	Busy       = "BUSY"
	NoAnswer   = "NO ANSWER"
	CmeError   = "+CME ERROR:"
	CmsError   = "+CMS ERROR:"

	// Terminator patterns closing a complete response
	TerminatorOK    = "\r\nOK\r\n"
	TerminatorError = "\r\nERROR\r\n"

	// URCs (Unsolicited Result Codes)
	UrcNewMsg         = "+CMTI:"
	UrcMessageReport  = "+CDSI:"
	UrcSignalStrength = "+CSQ:"
	UrcCall           = "RING"

	// Information responses
	ReadSMSHeader = "+CMGR:"
	SimReady      = "READY"
	SimPin        = "SIM PIN"

	// Fixed commands
	CmdAt          = "AT"
	CmdEchoOff     = "ATE0"
	CmdPlainErrors = "AT+CMEE=0"
	CmdSimStatus   = "AT+CPIN?"
	CmdFlowControl = "AT+IFC=1,1"
	CmdSignal      = "AT+CSQ"
)

type ResponseType int

const (
	TypeFinal  ResponseType = iota // OK, ERROR
	TypeURC                        // Asynchronous notifications
	TypeData                       // Intermediate command output (+CSQ: ...)
	TypePrompt                     // SMS input prompt
)
