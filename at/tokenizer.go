package at

import (
	"bufio"
	"bytes"
	"strings"
)

// Splitter tokenizes a modem response into lines. It has the signature of
// bufio.SplitFunc so it plugs straight into bufio.Scanner.
//
// Lines end at CRLF. The SMS input prompt ("> ") is returned as its own
// token since the modem does not terminate it.
//
// The modem echoes commands until ATE0 runs during bring-up, so the first
// replies look like "AT\r\r\nOK\r\n". The echo keeps its bare CR and comes
// out as a token of its own ending in '\r'; Parse recognizes that shape and
// leaves it out of Response.Lines.
//
// At EOF any remaining bytes form the last token, which lets a partially
// filled response buffer be tokenized while a reply is still arriving.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if bytes.HasPrefix(data, []byte(Prompt)) {
		return len(Prompt), data[0:len(Prompt)], nil
	}

	if i := bytes.Index(data, []byte(CRLF)); i >= 0 {
		return i + len(CRLF), data[0:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

// Classify identifies the nature of a single response line.
func Classify(line string) ResponseType {
	if line == Prompt {
		return TypePrompt
	}

	switch line {
	case OK, ERROR, NoCarrier, NoDialtone, Busy, NoAnswer:
		return TypeFinal
	}

	switch {
	case strings.HasPrefix(line, CmeError), strings.HasPrefix(line, CmsError):
		return TypeFinal
	case strings.HasPrefix(line, UrcNewMsg),
		strings.HasPrefix(line, UrcMessageReport),
		line == UrcCall:
		return TypeURC
	default:
		return TypeData
	}
}
