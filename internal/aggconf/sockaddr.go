package aggconf

import "golang.org/x/sys/unix"

// Sockaddr builds the unix.Sockaddr for this configuration's dial target,
// for use with unix.Connect during the Connecting phase.
func (c *Config) Sockaddr() unix.Sockaddr {
	if c.Family == unix.AF_INET6 {
		var addr [16]byte
		copy(addr[:], c.IP.To16())
		return &unix.SockaddrInet6{Port: c.Port, Addr: addr}
	}
	var addr [4]byte
	copy(addr[:], c.IP.To4())
	return &unix.SockaddrInet4{Port: c.Port, Addr: addr}
}
