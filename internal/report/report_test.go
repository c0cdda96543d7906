package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowbench/aggressor/internal/driver"
)

func TestPrintContainsAllTwelveLines(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, driver.Report{
		ElapsedMs:          250 * time.Millisecond,
		ConnectionsOK:      4,
		ConnectionsFailed:  1,
		RespOK:             100,
		RespErr:            2,
		TotalSent:          1000,
		TotalRecv:          2000,
		ConnectLatencyUsec: 123.4,
		RespLatencyUsec:    456.7,
	})

	out := buf.String()
	lines := 0
	for _, line := range []string{
		"time:", "successful connections:", "failed connections:",
		"successful responses:", "failed responses:", "responses/sec:",
		"total bytes sent:", "total bytes received:", "send bytes/sec:",
		"receive bytes/sec:", "connection latency:", "response latency:",
	} {
		require.Contains(t, out, line)
		lines++
	}
	require.Equal(t, 12, lines)
}
