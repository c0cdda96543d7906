package worker

// Stats is one worker's statistics block: six monotonic counters and two
// running-average latencies. No synchronization: each worker only ever
// writes its own block, and the driver reads it only after every worker
// has joined.
type Stats struct {
	TotalSent         uint64
	TotalRecv         uint64
	ConnectionsOK     uint64
	ConnectionsFailed uint64
	RespOK            uint64
	RespErr           uint64

	ConnectLatencyUsec float64
	RespLatencyUsec    float64
}

// addConnectLatency folds sample into the running two-sample average,
// `avg = (avg + sample) / 2`. Deliberately not an arithmetic mean.
func (s *Stats) addConnectLatency(sampleUsec float64) {
	s.ConnectLatencyUsec = (s.ConnectLatencyUsec + sampleUsec) / 2
}

func (s *Stats) addRespLatency(sampleUsec float64) {
	s.RespLatencyUsec = (s.RespLatencyUsec + sampleUsec) / 2
}
