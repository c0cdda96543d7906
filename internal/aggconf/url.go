package aggconf

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Target is one parsed URL: a dial address plus the path used to render
// that URL's request line. Only the last-parsed Target's address is
// actually dialed, even though every Target contributes a request-table
// entry — a deliberately preserved quirk, not a bug.
type Target struct {
	Family int // unix.AF_INET or unix.AF_INET6
	IP     net.IP
	Port   int
	Path   string
}

const defaultPort = 80

// ParseURL parses "HOST[:PORT][/PATH]". HOST must be a numeric IPv4 or
// IPv6 literal; there is no DNS resolution.
func ParseURL(raw string) (Target, error) {
	if raw == "" {
		return Target{}, fmt.Errorf("empty URL")
	}
	hostport, path := splitPath(raw)

	host, portStr, hasPort := splitHostPort(hostport)
	port := defaultPort
	if hasPort {
		p, err := strconv.Atoi(portStr)
		if err != nil || p <= 0 || p > 65535 {
			return Target{}, fmt.Errorf("bad port in %q", raw)
		}
		port = p
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return Target{}, fmt.Errorf("host %q is not a numeric IPv4/IPv6 address", host)
	}
	family := unix.AF_INET
	if ip4 := ip.To4(); ip4 != nil {
		ip = ip4
	} else {
		family = unix.AF_INET6
	}

	if path == "" {
		path = "/"
	}
	return Target{Family: family, IP: ip, Port: port, Path: path}, nil
}

// splitPath separates the optional "/PATH" suffix from "HOST[:PORT]".
func splitPath(raw string) (hostport, path string) {
	// A bracketed IPv6 host may itself contain no '/', so it's safe to
	// split on the first '/' after any closing bracket.
	start := 0
	if strings.HasPrefix(raw, "[") {
		if i := strings.IndexByte(raw, ']'); i >= 0 {
			start = i
		}
	}
	if i := strings.IndexByte(raw[start:], '/'); i >= 0 {
		idx := start + i
		return raw[:idx], raw[idx:]
	}
	return raw, ""
}

// splitHostPort handles "host:port", "[ipv6]:port", "[ipv6]", and bare
// "ipv6-or-ipv4" forms.
func splitHostPort(hostport string) (host, port string, hasPort bool) {
	if strings.HasPrefix(hostport, "[") {
		end := strings.IndexByte(hostport, ']')
		if end < 0 {
			return hostport, "", false
		}
		host = hostport[1:end]
		rest := hostport[end+1:]
		if strings.HasPrefix(rest, ":") {
			return host, rest[1:], true
		}
		return host, "", false
	}
	// Bare IPv6 literals contain multiple colons; only a single trailing
	// ":port" on a host with at most one colon is treated as a port.
	if strings.Count(hostport, ":") == 1 {
		i := strings.IndexByte(hostport, ':')
		return hostport[:i], hostport[i+1:], true
	}
	return hostport, "", false
}

// BuildRequest renders the byte-exact HTTP/1.1 request for target: request
// line, Host header, user headers, terminating blank line. No body.
func BuildRequest(method string, target Target, headers []string) []byte {
	var buf bytes.Buffer
	buf.WriteString(method)
	buf.WriteByte(' ')
	buf.WriteString(target.Path)
	buf.WriteString(" HTTP/1.1\r\n")
	buf.WriteString("Host: ")
	if target.Family == unix.AF_INET6 {
		buf.WriteByte('[')
		buf.WriteString(target.IP.String())
		buf.WriteByte(']')
	} else {
		buf.WriteString(target.IP.String())
	}
	buf.WriteByte(':')
	buf.WriteString(strconv.Itoa(target.Port))
	buf.WriteString("\r\n")
	for _, h := range headers {
		buf.WriteString(h)
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")
	return buf.Bytes()
}
