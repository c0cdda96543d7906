// Package aggconf resolves CLI flags and target URLs into the immutable
// configuration a driver and its workers share for the lifetime of one run.
package aggconf

import (
	"fmt"
	"net"
	"runtime"
	"strconv"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Defaults mirror the CLI's documented flag table.
const (
	DefaultConcurrency = 100
	DefaultKeepAlive   = 64
	DefaultMethod      = "GET"
	DefaultRecvBuf     = 4096
	DefaultEventCap    = 512
	// DefaultTotalRequests is the effectively-unlimited default request cap.
	DefaultTotalRequests = int64(1<<31 - 1)
)

// Config is built once by Build and never mutated afterward; workers and
// the driver share it read-only once a run begins.
type Config struct {
	// Family is unix.AF_INET or unix.AF_INET6, fixed by the last parsed URL
	// (a deliberately preserved address-overwrite quirk: see BuildRequest
	// and the loop in Build).
	Family int
	IP     net.IP
	Port   int

	Concurrency int
	Threads     int
	KeepAlive   int
	RecvBufSize int
	EventBufCap int
	// Affinity is a bitmask of CPU indices; 0 disables pinning.
	Affinity uint32
	Debug    bool

	// Requests holds one pre-rendered byte-exact HTTP/1.1 request per
	// target URL, reused verbatim for every connection.
	Requests [][]byte

	// RemainingRequests backs the shared atomic counter all workers
	// decrement from; initialized to the total-request cap and decremented
	// once per request issued across all workers.
	RemainingRequests *atomic.Int64
}

// RawFlags is the unresolved set of values read directly off the CLI, prior
// to URL parsing, affinity-quirk resolution, and request-buffer rendering.
type RawFlags struct {
	Number      int64
	Concurrency int
	Threads     int
	// AffinityHex is the raw -a/--affinity value; empty means unset.
	AffinityHex string
	// ThreadsSet records whether -t/--threads was given explicitly, since
	// the affinity default depends on it (see Build).
	ThreadsSet bool
	// NumberSet records whether -n/--number was given explicitly, so an
	// explicit "-n 0" (zero requests: every slot stays idle and no
	// connection is opened) isn't silently remapped to the unlimited default.
	NumberSet bool
	KeepAlive int
	Method    string
	Headers   []string
	Debug     bool
	URLs      []string
}

// Build parses raw into a finalized Config. It is the sole entry point
// cmd/aggressor calls after cobra has populated RawFlags.
func Build(raw RawFlags) (*Config, error) {
	if len(raw.URLs) == 0 {
		return nil, fmt.Errorf("aggconf: at least one URL is required")
	}
	if raw.Concurrency <= 0 {
		return nil, fmt.Errorf("aggconf: concurrency must be positive")
	}
	if raw.KeepAlive <= 0 {
		return nil, fmt.Errorf("aggconf: keepalive must be positive")
	}

	threads := raw.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	affinity, err := parseAffinity(raw.AffinityHex, raw.ThreadsSet, threads)
	if err != nil {
		return nil, err
	}

	method := raw.Method
	if method == "" {
		method = DefaultMethod
	}

	var family int
	var ip net.IP
	var port int
	requests := make([][]byte, 0, len(raw.URLs))
	for _, u := range raw.URLs {
		target, err := ParseURL(u)
		if err != nil {
			return nil, fmt.Errorf("aggconf: %w", err)
		}
		// Every URL overwrites the dial target; only the last one wins.
		// Deliberately preserved, not a bug.
		family = target.Family
		ip = target.IP
		port = target.Port
		requests = append(requests, BuildRequest(method, target, raw.Headers))
	}

	total := raw.Number
	if !raw.NumberSet && total <= 0 {
		total = DefaultTotalRequests
	}
	remaining := &atomic.Int64{}
	remaining.Store(total)

	cfg := &Config{
		Family:            family,
		IP:                ip,
		Port:              port,
		Concurrency:       raw.Concurrency,
		Threads:           threads,
		KeepAlive:         raw.KeepAlive,
		RecvBufSize:       DefaultRecvBuf,
		EventBufCap:       DefaultEventCap,
		Affinity:          affinity,
		Debug:             raw.Debug,
		Requests:          requests,
		RemainingRequests: remaining,
	}
	return cfg, nil
}

// parseAffinity resolves -a/--affinity. When threads were auto-detected
// (not given explicitly) and no affinity mask was supplied, it defaults to
// pinning across every detected CPU rather than leaving affinity disabled
// — a deliberately preserved quirk.
func parseAffinity(hex string, threadsSet bool, threads int) (uint32, error) {
	if hex != "" {
		v, err := parseHexUint32(hex)
		if err != nil {
			return 0, fmt.Errorf("aggconf: bad --affinity value %q: %w", hex, err)
		}
		return v, nil
	}
	if !threadsSet {
		return allCPUsMask(threads), nil
	}
	return 0, nil
}

func parseHexUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func allCPUsMask(threads int) uint32 {
	if threads <= 0 || threads >= 32 {
		return ^uint32(0)
	}
	return uint32(1)<<uint(threads) - 1
}

// SockFamily returns the raw socket family constant matching Family, for
// callers that need to hand it directly to unix.Socket.
func (c *Config) SockFamily() int {
	if c.Family == unix.AF_INET6 {
		return unix.AF_INET6
	}
	return unix.AF_INET
}
