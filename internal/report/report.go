// Package report formats the final aggregated run statistics to stdout as
// twelve labeled lines: connection and response counts, elapsed time,
// throughput, and the two latency averages.
package report

import (
	"fmt"
	"io"

	"github.com/flowbench/aggressor/internal/driver"
)

// Print writes the final report to w.
func Print(w io.Writer, r driver.Report) {
	elapsedMs := float64(r.ElapsedMs.Microseconds()) / 1000
	seconds := r.ElapsedMs.Seconds()

	var respPerSec, sendBps, recvBps float64
	if seconds > 0 {
		respPerSec = float64(r.RespOK+r.RespErr) / seconds
		sendBps = float64(r.TotalSent) / seconds
		recvBps = float64(r.TotalRecv) / seconds
	}

	fmt.Fprintf(w, "time:                   %.0fmsec\n", elapsedMs)
	fmt.Fprintf(w, "successful connections: %d\n", r.ConnectionsOK)
	fmt.Fprintf(w, "failed connections:     %d\n", r.ConnectionsFailed)
	fmt.Fprintf(w, "successful responses:   %d\n", r.RespOK)
	fmt.Fprintf(w, "failed responses:       %d\n", r.RespErr)
	fmt.Fprintf(w, "responses/sec:          %.0f\n", respPerSec)
	fmt.Fprintf(w, "total bytes sent:       %d\n", r.TotalSent)
	fmt.Fprintf(w, "total bytes received:   %d\n", r.TotalRecv)
	fmt.Fprintf(w, "send bytes/sec:         %.0f\n", sendBps)
	fmt.Fprintf(w, "receive bytes/sec:      %.0f\n", recvBps)
	fmt.Fprintf(w, "connection latency:     %.0fusec\n", r.ConnectLatencyUsec)
	fmt.Fprintf(w, "response latency:       %.0fusec\n", r.RespLatencyUsec)
}
