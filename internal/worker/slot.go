package worker

import (
	"golang.org/x/sys/unix"

	"github.com/flowbench/aggressor/internal/aggerr"
	"github.com/flowbench/aggressor/internal/agglog"
	"github.com/flowbench/aggressor/internal/http1"
	"github.com/flowbench/aggressor/internal/reactor"
)

// Phase is a tagged variant in place of a pair of rhandler/whandler
// function pointers: exactly one phase is active at a time, and the phase
// alone determines which readiness direction the slot is registered for.
type Phase uint8

const (
	// PhaseIdle means the slot holds no open socket (abandoned at start
	// because the request budget was already exhausted).
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseSending
	PhaseRecvHeaders
	PhaseRecvBody
)

// interest reports the single readiness direction a phase suspends on:
// each phase has exactly one handler, never both.
func (p Phase) interest() reactor.Interest {
	switch p {
	case PhaseConnecting, PhaseSending:
		return reactor.Write
	case PhaseRecvHeaders, PhaseRecvBody:
		return reactor.Read
	default:
		return 0
	}
}

// Slot is one connection state machine. buf is a plain slice here rather
// than an inline flexible-array-member layout; that only affects cache
// locality, not behavior.
type Slot struct {
	fd    int
	phase Phase
	// side is the generation bit; toggled on every close so stale
	// readiness events from a prior socket incarnation are dropped.
	side       uint8
	registered bool // kq_attach_ok

	keepalive int
	wdata     []byte // remaining unsent bytes of the current request

	startTimeUsec int64
	contLen       uint64
	respLineOK    bool
	respErr       bool

	buf  []byte // inline receive buffer, size B
	bufn int

	// last marks that this connection is consuming the final reserved
	// request; set at Start or at Recv-body's re-arm step, and checked
	// when keep-alive would otherwise continue.
	last bool
}

// connFatal is the common entry point for every per-connection-fatal error
// in the phase handlers below: it runs err through aggerr.Classify to
// decide which of the two remaining error bands (spec.md §7) it belongs
// to. A band-3 (worker-fatal) error — reserved for the reactor's own
// failures — aborts the whole worker instead of just this connection;
// everything else is logged and this slot's connection is ended/recycled
// as before. It does not decide which counter to bump: that stays at each
// call site, since which counter applies depends on the phase the error
// was hit in (spec.md §8's boundary cases), not on the error itself.
func (w *Worker) connFatal(idx int, err error, msg string) {
	if aggerr.Classify(err) == aggerr.BandWorkerFatal {
		w.fatalWorkerErr(err)
		return
	}
	agglog.Errorf(w.idx, idx, err, msg)
	w.end(idx)
}

// reset clears everything that needs zeroing at the start of a fresh
// request on an already-open socket (the Recv-body re-arm step), or the
// whole per-connection region when a new socket replaces the old one
// (Start). fd, side, and registered are handled by their respective
// callers, not here.
func (s *Slot) reset() {
	s.wdata = nil
	s.startTimeUsec = 0
	s.contLen = 0
	s.respLineOK = false
	s.respErr = false
	s.bufn = 0
	s.last = false
}

// start is the entry point for a fresh connection on slot index idx.
func (w *Worker) start(idx int) {
	s := &w.slots[idx]
	s.reset()
	s.keepalive = 0
	s.registered = false

	prior := w.cfg.RemainingRequests.Add(-1) + 1
	if prior <= 0 {
		// Budget already exhausted; leave the slot idle without
		// consuming a socket.
		s.phase = PhaseIdle
		return
	}
	if prior == 1 {
		s.last = true
	}

	fd, err := unix.Socket(w.cfg.SockFamily(), unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		w.stats.ConnectionsFailed++
		s.phase = PhaseIdle
		w.connFatal(idx, err, "socket create failed")
		return
	}
	s.fd = fd
	w.connect(idx)
}

// connect attempts the non-blocking connect for slot idx.
func (w *Worker) connect(idx int) {
	s := &w.slots[idx]
	if s.startTimeUsec == 0 {
		s.startTimeUsec = nowUsec()
	}

	err := unix.Connect(s.fd, w.cfg.Sockaddr())
	switch {
	case err == nil, err == unix.EISCONN:
		w.stats.ConnectionsOK++
		w.stats.addConnectLatency(float64(nowUsec() - s.startTimeUsec))
		w.send(idx)
		return
	case err == unix.EINPROGRESS, err == unix.EALREADY:
		w.arm(idx, PhaseConnecting)
		return
	default:
		w.stats.ConnectionsFailed++
		w.connFatal(idx, err, "connect failed")
		return
	}
}

// send writes the pending request bytes for slot idx.
func (w *Worker) send(idx int) {
	s := &w.slots[idx]
	if len(s.wdata) == 0 {
		reqs := w.cfg.Requests
		s.wdata = reqs[w.nextReq]
		w.nextReq = (w.nextReq + 1) % len(reqs)
		_ = unix.SetsockoptInt(s.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	}

	for len(s.wdata) > 0 {
		n, err := unix.Write(s.fd, s.wdata)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				w.arm(idx, PhaseSending)
				return
			}
			w.connFatal(idx, err, "send failed")
			return
		}
		w.stats.TotalSent += uint64(n)
		s.wdata = s.wdata[n:]
	}

	s.startTimeUsec = nowUsec()
	s.phase = PhaseRecvHeaders
	w.arm(idx, PhaseRecvHeaders)
}

// arm registers (idempotently) or re-modifies the slot's reactor interest
// to match phase, and sets the phase.
func (w *Worker) arm(idx int, phase Phase) {
	s := &w.slots[idx]
	s.phase = phase
	tag := reactor.MakeTag(idx, s.side)
	if !s.registered {
		if err := w.poller.Add(s.fd, phase.interest(), tag); err != nil {
			w.fatalWorkerErr(err)
			return
		}
		s.registered = true
		return
	}
	if err := w.poller.Modify(s.fd, phase.interest(), tag); err != nil {
		w.fatalWorkerErr(err)
	}
}

// recvHeaders reads and parses the response status line and headers.
func (w *Worker) recvHeaders(idx int) {
	s := &w.slots[idx]
	n, err := unix.Read(s.fd, s.buf[s.bufn:])
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			w.arm(idx, PhaseRecvHeaders)
			return
		}
		w.connFatal(idx, err, "recv failed")
		return
	}
	if n == 0 {
		w.connFatal(idx, aggerr.ErrServerClosed, "server closed mid-response")
		return
	}
	s.bufn += n
	w.stats.TotalRecv += uint64(n)

	consumed, done, err := w.parseHeaders(idx)
	if err != nil {
		w.connFatal(idx, err, "bad response")
		return
	}
	if !done {
		if s.bufn == len(s.buf) {
			w.connFatal(idx, aggerr.ErrOversizeResponse, "response headers did not fit in receive buffer")
			return
		}
		w.arm(idx, PhaseRecvHeaders)
		return
	}

	// consumed bytes of buf[0:consumed] were header bytes; anything past
	// that (up to bufn) is body already in hand.
	overrun := s.bufn - consumed
	if uint64(overrun) > s.contLen {
		w.connFatal(idx, aggerr.ErrBodyExceedsLength, "response body exceeds Content-Length")
		return
	}
	s.contLen -= uint64(overrun)
	s.bufn = 0
	w.recvBody(idx)
}

// parseHeaders runs the restartable status-line/header parse over
// s.buf[0:s.bufn], tracking progress via s.respLineOK and s.contLen
// across calls. It returns the offset where the header block ended
// (status-line and all header lines, through the terminating blank line)
// once done is true.
func (w *Worker) parseHeaders(idx int) (consumed int, done bool, err error) {
	s := &w.slots[idx]
	buf := s.buf[:s.bufn]
	off := 0

	if !s.respLineOK {
		line, n := http1.ParseStatusLine(buf)
		if n == http1.Incomplete {
			return 0, false, nil
		}
		if n < 0 {
			return 0, false, aggerr.ErrMalformedResponseLine
		}
		s.respLineOK = true
		w.stats.addRespLatency(float64(nowUsec() - s.startTimeUsec))
		if line.Code/100 == 4 || line.Code/100 == 5 {
			s.respErr = true
		}
		off += n
	} else {
		// Re-entry after a prior would-block: re-scan from the start of
		// the header block. We recover where the status line ended by
		// re-parsing it; it is always present since respLineOK is set.
		_, n := http1.ParseStatusLine(buf)
		off += n
	}

	for {
		name, value, n := http1.ParseHeader(buf[off:])
		if n == http1.Incomplete {
			return 0, false, nil
		}
		if n < 0 {
			return 0, false, aggerr.ErrMalformedHeader
		}
		off += n
		if len(name) == 0 && len(value) == 0 && n <= 2 {
			// Terminating blank line.
			break
		}
		if http1.EqualFoldASCII(name, "Content-Length") {
			cl, ok := http1.ParseContentLength(value)
			if !ok {
				return 0, false, aggerr.ErrBadContentLength
			}
			s.contLen = cl
		}
	}
	return off, true, nil
}

// recvBody drains the response body for slot idx.
func (w *Worker) recvBody(idx int) {
	s := &w.slots[idx]
	for s.contLen > 0 {
		want := s.contLen
		if want > uint64(len(s.buf)) {
			want = uint64(len(s.buf))
		}
		n, err := unix.Read(s.fd, s.buf[:want])
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				w.arm(idx, PhaseRecvBody)
				return
			}
			w.connFatal(idx, err, "recv failed")
			return
		}
		if n == 0 {
			w.connFatal(idx, aggerr.ErrServerClosed, "server closed mid-body")
			return
		}
		s.contLen -= uint64(n)
		w.stats.TotalRecv += uint64(n)
	}

	if s.respErr {
		w.stats.RespErr++
	} else {
		w.stats.RespOK++
	}
	s.keepalive++
	if s.keepalive == w.cfg.KeepAlive {
		w.recycle(idx)
		return
	}

	if s.last {
		w.requestShutdown()
		return
	}

	s.reset()
	prior := w.cfg.RemainingRequests.Add(-1) + 1
	if prior <= 0 {
		// Quiescent: no more requests to issue on this socket for now.
		return
	}
	if prior == 1 {
		s.last = true
	}
	w.send(idx)
}

// end closes the socket, toggles the generation bit, and either requests
// global shutdown (if this was the last connection) or restarts the slot
// with a fresh socket. recycle is end with the socket already understood
// to be idle rather than errored; both share this implementation.
func (w *Worker) end(idx int) {
	s := &w.slots[idx]
	if s.fd >= 0 {
		unix.Close(s.fd)
		s.fd = -1
	}
	s.side ^= 1
	s.phase = PhaseIdle
	if s.last {
		w.requestShutdown()
		return
	}
	w.start(idx)
}

func (w *Worker) recycle(idx int) {
	w.end(idx)
}
