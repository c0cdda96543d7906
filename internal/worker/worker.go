// Package worker implements the per-worker reactor loop and connection
// state machine: each Worker owns a reactor.Poller, a fixed slot array, and
// a statistics block, and drives its slots through the four-phase
// connect/send/recv-headers/recv-body cycle until told to stop.
package worker

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/flowbench/aggressor/internal/aggconf"
	"github.com/flowbench/aggressor/internal/aggerr"
	"github.com/flowbench/aggressor/internal/agglog"
	"github.com/flowbench/aggressor/internal/reactor"
)

// Worker drives every slot it owns on a single goroutine pinned (where
// possible) to one OS thread: one thread, one worker, no work stealing.
type Worker struct {
	idx int
	cfg *aggconf.Config

	poller *reactor.Poller
	wake   *reactor.Wake
	events []reactor.Event

	slots   []Slot
	nextReq int

	// stop is written by the driver and the SIGINT handler, read by the
	// worker's own loop. sync/atomic's Bool provides sequentially-consistent
	// semantics, strictly stronger than the acquire/release this needs.
	stop atomic.Bool

	stats Stats

	// cpu is the CPU index to pin this worker's thread to, or -1 for no
	// affinity, assigned by the driver.
	cpu int

	// requestShutdownFn is the driver's stop_all, invoked exactly when this
	// worker's own last-connection completion point is reached. A
	// worker-fatal error does not invoke it; it only stops this worker.
	requestShutdownFn func()

	workerFatal bool
}

// New builds a worker with a fresh reactor, wake endpoint, and slot array
// sized ⌊C/T⌋ by the caller. slotCount may be zero (when concurrency is
// smaller than the thread count); such a worker still runs its loop and
// exits cleanly on shutdown without ever touching a socket.
func New(idx int, cfg *aggconf.Config, slotCount int, cpu int, requestShutdownFn func()) (*Worker, error) {
	poller, err := reactor.New(cfg.EventBufCap)
	if err != nil {
		return nil, aggerr.ErrReactorInit
	}
	wake, err := reactor.NewWake()
	if err != nil {
		poller.Close()
		return nil, aggerr.ErrReactorInit
	}
	if err := poller.Add(wake.FD(), reactor.Read, reactor.WakeTag); err != nil {
		wake.Close()
		poller.Close()
		return nil, aggerr.ErrReactorInit
	}

	slots := make([]Slot, slotCount)
	for i := range slots {
		slots[i].fd = -1
		slots[i].buf = make([]byte, cfg.RecvBufSize)
	}

	return &Worker{
		idx:               idx,
		cfg:               cfg,
		poller:            poller,
		wake:              wake,
		events:            make([]reactor.Event, poller.EventCap()),
		slots:             slots,
		cpu:               cpu,
		requestShutdownFn: requestShutdownFn,
	}, nil
}

// Stats returns the worker's statistics block. Only safe to call after Run
// has returned: the driver reads it only after every worker has joined.
func (w *Worker) Stats() Stats { return w.stats }

// Idx returns this worker's index, for callers (the driver) that need to
// attribute a log line to a specific worker without holding one of their
// own.
func (w *Worker) Idx() int { return w.idx }

// Failed reports whether this worker exited via the worker-fatal band: a
// reactor operation (Add/Modify/Wait) returning a non-interrupted error.
// The driver logs this per worker after joining, but — per spec.md §7 —
// still does not propagate it to the process exit code.
func (w *Worker) Failed() bool { return w.workerFatal }

// RequestStop sets this worker's stop flag and pokes its wake endpoint so
// a blocked Wait call returns promptly. Safe to call from any goroutine.
func (w *Worker) RequestStop() {
	w.stop.Store(true)
	w.wake.Poke()
}

func (w *Worker) requestShutdown() {
	if w.requestShutdownFn != nil {
		w.requestShutdownFn()
	}
}

func (w *Worker) fatalWorkerErr(err error) {
	agglog.Errorf(w.idx, -1, err, "reactor operation failed")
	w.workerFatal = true
	w.stop.Store(true)
}

// Run is the worker's reactor loop. It blocks until stop is set (by the
// driver, SIGINT, or this worker's own last-connection completion) and
// then tears down.
func (w *Worker) Run() {
	// A worker owns one OS thread for its whole life: LockOSThread first,
	// since SchedSetaffinity pins whatever thread is running this goroutine
	// right now, and without the lock the runtime is free to resume this
	// goroutine on a different thread after the very next blocking syscall
	// (every poller.Wait call below), silently undoing the pin.
	runtime.LockOSThread()
	if w.cpu >= 0 {
		if err := reactor.PinCurrentThread(w.cpu); err != nil {
			agglog.Debugf(w.idx, -1, "cpu affinity pin to %d failed: %s", w.cpu, err)
		}
	}
	defer w.poller.Close()
	defer w.wake.Close()

	for i := range w.slots {
		w.start(i)
	}

	for !w.stop.Load() {
		n, err := w.poller.Wait(-1, w.events)
		if err != nil {
			if err == reactor.ErrInterrupted {
				continue
			}
			agglog.Errorf(w.idx, -1, err, "reactor wait failed")
			w.workerFatal = true
			return
		}
		for i := 0; i < n; i++ {
			w.dispatch(w.events[i])
		}
	}
}

func (w *Worker) dispatch(ev reactor.Event) {
	if ev.Tag == reactor.WakeTag {
		w.wake.Drain()
		return
	}
	idx := ev.Tag.Index()
	if idx < 0 || idx >= len(w.slots) {
		return
	}
	s := &w.slots[idx]
	if ev.Tag.Side() != s.side {
		// Stale event from a prior socket incarnation on this slot.
		return
	}

	if ev.Readable && s.phase.interest() == reactor.Read {
		switch s.phase {
		case PhaseRecvHeaders:
			w.recvHeaders(idx)
		case PhaseRecvBody:
			w.recvBody(idx)
		}
	}
	// Re-read phase: the read-side call above may have transitioned the
	// slot onto a write-waiting phase (or closed it) within the same
	// event. Both directions are tried independently for one event.
	s = &w.slots[idx]
	if ev.Tag.Side() != s.side {
		return
	}
	if ev.Writable && s.phase.interest() == reactor.Write {
		switch s.phase {
		case PhaseConnecting:
			w.connect(idx)
		case PhaseSending:
			w.send(idx)
		}
	}
}

func nowUsec() int64 {
	return time.Now().UnixMicro()
}
