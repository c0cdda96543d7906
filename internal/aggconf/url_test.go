package aggconf

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestParseURLDefaults(t *testing.T) {
	target, err := ParseURL("127.0.0.1")
	require.NoError(t, err)
	require.Equal(t, unix.AF_INET, target.Family)
	require.Equal(t, defaultPort, target.Port)
	require.Equal(t, "/", target.Path)
	require.Equal(t, "127.0.0.1", target.IP.String())
}

func TestParseURLPortAndPath(t *testing.T) {
	target, err := ParseURL("127.0.0.1:8080/metrics")
	require.NoError(t, err)
	require.Equal(t, 8080, target.Port)
	require.Equal(t, "/metrics", target.Path)
}

func TestParseURLIPv6Bracketed(t *testing.T) {
	target, err := ParseURL("[::1]:9000/x")
	require.NoError(t, err)
	require.Equal(t, unix.AF_INET6, target.Family)
	require.Equal(t, 9000, target.Port)
	require.Equal(t, "/x", target.Path)
}

func TestParseURLIPv6Bare(t *testing.T) {
	target, err := ParseURL("::1/x")
	require.NoError(t, err)
	require.Equal(t, unix.AF_INET6, target.Family)
	require.Equal(t, defaultPort, target.Port)
}

func TestParseURLRejectsHostname(t *testing.T) {
	_, err := ParseURL("example.com/")
	require.Error(t, err)
}

func TestBuildRequestByteExact(t *testing.T) {
	target, err := ParseURL("127.0.0.1:8080/foo")
	require.NoError(t, err)
	req := BuildRequest("GET", target, []string{"X-Test: 1"})
	require.Equal(t, "GET /foo HTTP/1.1\r\nHost: 127.0.0.1:8080\r\nX-Test: 1\r\n\r\n", string(req))
}
