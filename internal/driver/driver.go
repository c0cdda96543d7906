// Package driver owns the single Driver instance for one run: it resolves
// CPU affinity assignments, spawns the worker pool, wires SIGINT to orderly
// shutdown, joins every worker, and aggregates their statistics blocks into
// one Report.
package driver

import (
	"os"
	"os/signal"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/flowbench/aggressor/internal/aggconf"
	"github.com/flowbench/aggressor/internal/agglog"
	"github.com/flowbench/aggressor/internal/worker"
)

// Report is the aggregated result of one run, handed to internal/report
// for formatting.
type Report struct {
	ElapsedMs time.Duration

	ConnectionsOK     uint64
	ConnectionsFailed uint64
	RespOK            uint64
	RespErr           uint64
	TotalSent         uint64
	TotalRecv         uint64

	ConnectLatencyUsec float64
	RespLatencyUsec    float64
}

// Driver holds the workers vector for one run.
type Driver struct {
	workers []*worker.Worker

	shutdownOnce sync.Once
}

// Run builds the worker pool, spawns T−1 of them as goroutines pinned to
// their own OS thread, runs worker #0 inline on the calling goroutine, and
// blocks until every worker has returned (either because the request
// budget was exhausted or because SIGINT triggered shutdown). It returns
// the aggregated Report.
func Run(cfg *aggconf.Config) (Report, error) {
	d := &Driver{}
	cpus := assignCPUIndexes(cfg.Affinity, cfg.Threads)

	base := cfg.Concurrency / cfg.Threads
	d.workers = make([]*worker.Worker, 0, cfg.Threads)
	for i := 0; i < cfg.Threads; i++ {
		w, err := worker.New(i, cfg, base, cpus[i], d.stopAll)
		if err != nil {
			// Worker fatal (spec.md §7: reactor creation failure). The
			// driver does not propagate this to the process exit code;
			// this worker is excluded from the pool and the remaining
			// workers still run, so the aggregate report always prints.
			agglog.Errorf(i, -1, err, "worker init failed, excluding from run")
			continue
		}
		d.workers = append(d.workers, w)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; ok {
			agglog.Debugf(-1, -1, "SIGINT received, shutting down")
			d.stopAll()
		}
	}()

	start := time.Now()

	var wg sync.WaitGroup
	for i := 1; i < len(d.workers); i++ {
		wg.Add(1)
		w := d.workers[i]
		go func() {
			defer wg.Done()
			w.Run()
		}()
	}
	if len(d.workers) > 0 {
		d.workers[0].Run()
	}
	wg.Wait()

	elapsed := time.Since(start)
	for _, w := range d.workers {
		if w.Failed() {
			agglog.Errorf(w.Idx(), -1, nil, "worker exited on a reactor-fatal error")
		}
	}
	return aggregate(d.workers, elapsed), nil
}

// stopAll sets every worker's stop flag and pokes its wake endpoint.
// Idempotent: calling it twice is indistinguishable from calling it once,
// since a sync.Once ensures the second call is a no-op rather than
// re-poking every worker redundantly.
func (d *Driver) stopAll() {
	d.shutdownOnce.Do(func() {
		for _, w := range d.workers {
			w.RequestStop()
		}
	})
}

// assignCPUIndexes repeatedly takes the highest set bit of mask, clears
// it, and hands that CPU index to the next worker in order; workers
// beyond the set bits get -1 (no affinity).
func assignCPUIndexes(mask uint32, threads int) []int {
	out := make([]int, threads)
	for i := 0; i < threads; i++ {
		if mask == 0 {
			out[i] = -1
			continue
		}
		bit := highestSetBit(mask)
		out[i] = bit
		mask &^= 1 << uint(bit)
	}
	return out
}

func highestSetBit(mask uint32) int {
	for i := 31; i >= 0; i-- {
		if mask&(1<<uint(i)) != 0 {
			return i
		}
	}
	return -1
}

func aggregate(workers []*worker.Worker, elapsed time.Duration) Report {
	var r Report
	r.ElapsedMs = elapsed
	var connectSum, respSum float64
	for _, w := range workers {
		s := w.Stats()
		r.ConnectionsOK += s.ConnectionsOK
		r.ConnectionsFailed += s.ConnectionsFailed
		r.RespOK += s.RespOK
		r.RespErr += s.RespErr
		r.TotalSent += s.TotalSent
		r.TotalRecv += s.TotalRecv
		connectSum += s.ConnectLatencyUsec
		respSum += s.RespLatencyUsec
	}
	if len(workers) > 0 {
		r.ConnectLatencyUsec = connectSum / float64(len(workers))
		r.RespLatencyUsec = respSum / float64(len(workers))
	}
	return r
}

// RaiseFDLimit raises the process file-descriptor soft and hard limits to
// 2*concurrency when concurrency exceeds 1024, following the same
// rlimit-raising approach as nabbar-golib's file-descriptor helper, reduced
// to this program's single call site instead of a reusable service.
func RaiseFDLimit(concurrency int) error {
	if concurrency <= 1024 {
		return nil
	}
	want := uint64(2 * concurrency)
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return err
	}
	if rlim.Cur >= want {
		return nil
	}
	rlim.Cur = want
	if rlim.Max < want {
		rlim.Max = want
	}
	return unix.Setrlimit(unix.RLIMIT_NOFILE, &rlim)
}
