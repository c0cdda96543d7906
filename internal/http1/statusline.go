// Package http1 implements the minimal streaming HTTP/1 response parser the
// worker event loop needs: status-line and header tokenizers that operate
// directly on a byte slice and report how many bytes they consumed, rather
// than pulling bytes from an io.Reader. This lets the worker re-invoke the
// same parse on the same buffer every time more data arrives, without
// maintaining parser state beyond what the caller already tracks (bufn,
// resp_line_ok, cont_len).
package http1

import "errors"

// Consumed-count conventions used by ParseStatusLine and ParseHeader:
//
//	consumed == 0  -> incomplete, caller must read more bytes
//	consumed  < 0  -> malformed, caller must abort the connection
//	consumed  > 0  -> success, bytes consumed including the terminating CRLF
const (
	Incomplete = 0
)

// ErrMalformed describes a status line or header that is not well-formed
// enough to continue. ParseStatusLine and ParseHeader do not return it: they
// report malformed input through a negative consumed count only.
var ErrMalformed = errors.New("http1: malformed response")

// StatusLine holds the parsed pieces of an HTTP/1 status line.
type StatusLine struct {
	Proto  []byte // e.g. "HTTP/1.1"
	Code   int
	Reason []byte
}

// ParseStatusLine parses a single status line ("HTTP/1.1 200 OK\r\n") from
// the front of buf.
//
// Returns consumed == 0 if buf does not yet contain a full line (the caller
// should read more and retry), consumed < 0 if the line is malformed, or
// consumed > 0 (the number of bytes including the trailing CRLF) on success.
func ParseStatusLine(buf []byte) (line StatusLine, consumed int) {
	idx := indexCRLF(buf)
	if idx < 0 {
		if len(buf) > maxStatusLineLen {
			return StatusLine{}, -1
		}
		return StatusLine{}, Incomplete
	}
	raw := buf[:idx]

	sp1 := indexByte(raw, ' ')
	if sp1 < 0 {
		return StatusLine{}, -1
	}
	proto := raw[:sp1]
	rest := raw[sp1+1:]

	sp2 := indexByte(rest, ' ')
	var codeField, reason []byte
	if sp2 < 0 {
		// Some servers omit the reason phrase entirely.
		codeField = rest
		reason = nil
	} else {
		codeField = rest[:sp2]
		reason = rest[sp2+1:]
	}

	if len(codeField) != 3 {
		return StatusLine{}, -1
	}
	code, ok := parseUint(codeField)
	if !ok {
		return StatusLine{}, -1
	}

	if !isValidProto(proto) {
		return StatusLine{}, -1
	}

	return StatusLine{Proto: proto, Code: int(code), Reason: reason}, idx + 2
}

// maxStatusLineLen bounds how long we'll scan looking for a status line
// before declaring it malformed rather than merely incomplete. It is a
// parser-local bound, independent of the worker's own oversize-response
// guard (triggered when the receive buffer fills without finding a blank
// line); with the default 4096-byte receive buffer that guard fires first.
const maxStatusLineLen = 8192

func isValidProto(b []byte) bool {
	return len(b) == 8 &&
		b[0] == 'H' && b[1] == 'T' && b[2] == 'T' && b[3] == 'P' &&
		b[4] == '/' && b[5] == '1' && b[6] == '.' && (b[7] == '0' || b[7] == '1')
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

// indexCRLF returns the offset of the first "\r\n" in b, or -1 if none is
// present.
func indexCRLF(b []byte) int {
	for i := 0; i+1 < len(b); i++ {
		if b[i] == '\r' && b[i+1] == '\n' {
			return i
		}
	}
	return -1
}

func parseUint(b []byte) (uint64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	var v uint64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + uint64(c-'0')
	}
	return v, true
}
