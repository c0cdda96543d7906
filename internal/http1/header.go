package http1

import "bytes"

// ParseHeader parses a single header line ("Name: value\r\n") from the front
// of buf, or the terminating blank line ("\r\n").
//
// Returns consumed == 0 if buf does not yet contain a full line, consumed <
// 0 if malformed, or consumed > 0 on success. The terminating blank line
// yields consumed <= 2 with both name and value empty; the caller must
// treat that as end-of-headers, not as a (degenerate) header.
func ParseHeader(buf []byte) (name, value []byte, consumed int) {
	idx := indexCRLF(buf)
	if idx < 0 {
		if len(buf) > maxHeaderLineLen {
			return nil, nil, -1
		}
		return nil, nil, Incomplete
	}
	if idx == 0 {
		// Blank line: end of headers.
		return nil, nil, 2
	}

	raw := buf[:idx]
	colon := indexByte(raw, ':')
	if colon <= 0 {
		return nil, nil, -1
	}
	name = raw[:colon]
	value = trimOWS(raw[colon+1:])
	return name, value, idx + 2
}

// maxHeaderLineLen mirrors maxStatusLineLen: a parser-local guard against
// scanning forever on a line with no CRLF. With the default 4096-byte
// receive buffer, the worker's own receive-buffer cap kicks in first.
const maxHeaderLineLen = 8192

// trimOWS strips the optional leading/trailing whitespace RFC 7230 §3.2
// permits around a header field value.
func trimOWS(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}

// EqualFoldASCII reports whether name equals want, ignoring ASCII case,
// which is sufficient for the header names this parser cares about
// ("Content-Length").
func EqualFoldASCII(name []byte, want string) bool {
	if len(name) != len(want) {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		w := want[i]
		if w >= 'A' && w <= 'Z' {
			w += 'a' - 'A'
		}
		if c != w {
			return false
		}
	}
	return true
}

// ParseContentLength parses a decimal, non-negative Content-Length value.
// It rejects empty input, non-digit bytes, and values that overflow uint64.
func ParseContentLength(value []byte) (uint64, bool) {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return 0, false
	}
	var v uint64
	for _, c := range value {
		if c < '0' || c > '9' {
			return 0, false
		}
		d := uint64(c - '0')
		if v > (^uint64(0)-d)/10 {
			return 0, false // overflow
		}
		v = v*10 + d
	}
	return v, true
}
