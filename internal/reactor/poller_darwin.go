//go:build darwin

package reactor

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Poller wraps a Darwin/BSD kqueue instance. Not safe for concurrent use;
// exactly one goroutine (the owning worker) may call Add/Modify/Wait.
//
// Unlike epoll's single combined interest mask, kqueue tracks read and
// write readiness as separate filters (EVFILT_READ / EVFILT_WRITE) per
// descriptor. Add/Modify always submit both filters, enabling the one(s)
// the requested Interest names and disabling the other — no phase ever
// asks for both at once, but always touching both filters keeps a phase
// transition (e.g. Connecting's write-interest to RecvHeaders' read-
// interest) from leaving a stale enabled filter that would otherwise
// generate spurious readiness events.
type Poller struct {
	kq       int
	eventBuf []unix.Kevent_t
	closed   bool
}

// New creates and initializes a kqueue instance with the given event
// buffer capacity.
func New(eventCap int) (*Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	return &Poller{
		kq:       kq,
		eventBuf: make([]unix.Kevent_t, eventCap),
	}, nil
}

// Close releases the kqueue instance.
func (p *Poller) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return unix.Close(p.kq)
}

// Add registers fd for the given interest, tagging the registration with
// tag.
func (p *Poller) Add(fd int, interest Interest, tag Tag) error {
	return p.submit(fd, interest, tag)
}

// Modify changes the interest set for an already-registered fd.
func (p *Poller) Modify(fd int, interest Interest, tag Tag) error {
	return p.submit(fd, interest, tag)
}

func (p *Poller) submit(fd int, interest Interest, tag Tag) error {
	if p.closed {
		return ErrClosed
	}
	udata := (*byte)(unsafe.Pointer(uintptr(tag)))
	changes := [2]unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD | enableFlag(interest&Read != 0), Udata: udata},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD | enableFlag(interest&Write != 0), Udata: udata},
	}
	_, err := unix.Kevent(p.kq, changes[:], nil, nil)
	return err
}

func enableFlag(on bool) uint16 {
	if on {
		return unix.EV_ENABLE
	}
	return unix.EV_DISABLE
}

// Wait blocks (indefinitely, if timeoutMs < 0) until at least one event is
// ready, writing results into dst from index 0 (at most len(dst) of them)
// and returning the number written.
func (p *Poller) Wait(timeoutMs int, dst []Event) (int, error) {
	if p.closed {
		return 0, ErrClosed
	}
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * int64(1e6))
		ts = &t
	}
	n, err := unix.Kevent(p.kq, nil, p.eventBuf, ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, ErrInterrupted
		}
		return 0, err
	}
	count := 0
	for i := 0; i < n && i < len(dst); i++ {
		ev := p.eventBuf[i]
		tag := Tag(uint32(uintptr(unsafe.Pointer(ev.Udata))))
		dst[i] = Event{
			Tag:      tag,
			Readable: ev.Filter == unix.EVFILT_READ,
			Writable: ev.Filter == unix.EVFILT_WRITE,
		}
		count++
	}
	return count, nil
}

// EventCap returns the configured event buffer capacity.
func (p *Poller) EventCap() int { return len(p.eventBuf) }
