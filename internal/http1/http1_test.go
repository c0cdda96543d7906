package http1

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStatusLine(t *testing.T) {
	cases := []struct {
		name     string
		in       string
		wantCode int
		wantN    int
	}{
		{"ok200", "HTTP/1.1 200 OK\r\n", 200, 17},
		{"ok_no_reason", "HTTP/1.1 204\r\n", 204, 14},
		{"edge399", "HTTP/1.1 399 Redirect\r\n", 399, 23},
		{"edge600", "HTTP/1.1 600 Nonstandard\r\n", 600, 26},
		{"incomplete", "HTTP/1.1 200 O", 0, Incomplete},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			line, n := ParseStatusLine([]byte(c.in))
			require.Equal(t, c.wantN, n)
			if n > 0 {
				require.Equal(t, c.wantCode, line.Code)
			}
		})
	}
}

func TestParseStatusLineMalformed(t *testing.T) {
	_, n := ParseStatusLine([]byte("GARBAGE\r\n"))
	require.Negative(t, n)
}

func TestParseHeader(t *testing.T) {
	name, value, n := ParseHeader([]byte("Content-Length: 42\r\nrest"))
	require.Equal(t, 20, n)
	require.Equal(t, "Content-Length", string(name))
	require.Equal(t, "42", string(value))
}

func TestParseHeaderBlankLine(t *testing.T) {
	name, value, n := ParseHeader([]byte("\r\nbody"))
	require.Equal(t, 2, n)
	require.Nil(t, name)
	require.Nil(t, value)
}

func TestParseHeaderIncomplete(t *testing.T) {
	_, _, n := ParseHeader([]byte("Content-Len"))
	require.Equal(t, Incomplete, n)
}

func TestParseHeaderMalformedNoColon(t *testing.T) {
	_, _, n := ParseHeader([]byte("NotAHeader\r\n"))
	require.Negative(t, n)
}

func TestEqualFoldASCII(t *testing.T) {
	require.True(t, EqualFoldASCII([]byte("content-length"), "Content-Length"))
	require.False(t, EqualFoldASCII([]byte("content-type"), "Content-Length"))
}

func TestParseContentLength(t *testing.T) {
	v, ok := ParseContentLength([]byte("12345"))
	require.True(t, ok)
	require.EqualValues(t, 12345, v)

	_, ok = ParseContentLength([]byte("abc"))
	require.False(t, ok)

	_, ok = ParseContentLength([]byte("99999999999999999999999"))
	require.False(t, ok)
}
