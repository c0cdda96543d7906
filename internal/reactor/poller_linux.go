//go:build linux

package reactor

import (
	"golang.org/x/sys/unix"
)

// Poller wraps a Linux epoll instance. It is not safe for concurrent use;
// exactly one goroutine (the owning worker) may call Add/Modify/Wait.
type Poller struct {
	epfd     int
	eventBuf []unix.EpollEvent
	closed   bool
}

// New creates and initializes an epoll instance with the given event
// buffer capacity.
func New(eventCap int) (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &Poller{
		epfd:     epfd,
		eventBuf: make([]unix.EpollEvent, eventCap),
	}, nil
}

// Close releases the epoll instance. The event buffer and any registered
// slot state are the worker's responsibility; the slot array itself is
// leaked on exit (process teardown reclaims it).
func (p *Poller) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return unix.Close(p.epfd)
}

// Add registers fd for the given interest, tagging the registration with
// tag so Wait can report which slot/generation the event belongs to.
func (p *Poller) Add(fd int, interest Interest, tag Tag) error {
	if p.closed {
		return ErrClosed
	}
	ev := unix.EpollEvent{
		Events: interestToEpoll(interest),
		Fd:     int32(tag),
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

// Modify changes the interest set for an already-registered fd, re-tagging
// it (the tag does not change across a Modify within one socket's
// lifetime, but Modify always takes one for symmetry with Add).
func (p *Poller) Modify(fd int, interest Interest, tag Tag) error {
	if p.closed {
		return ErrClosed
	}
	ev := unix.EpollEvent{
		Events: interestToEpoll(interest),
		Fd:     int32(tag),
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

// Wait blocks (indefinitely, if timeoutMs < 0) until at least one event is
// ready, writing results into dst from index 0 (at most len(dst) of them)
// and returning the number written.
func (p *Poller) Wait(timeoutMs int, dst []Event) (int, error) {
	if p.closed {
		return 0, ErrClosed
	}
	n, err := unix.EpollWait(p.epfd, p.eventBuf, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, ErrInterrupted
		}
		return 0, err
	}
	count := 0
	for i := 0; i < n && i < len(dst); i++ {
		ev := p.eventBuf[i]
		dst[i] = Event{
			Tag:      Tag(uint32(ev.Fd)),
			Readable: ev.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0,
			Writable: ev.Events&(unix.EPOLLOUT|unix.EPOLLERR) != 0,
		}
		count++
	}
	return count, nil
}

// EventCap returns the configured event buffer capacity.
func (p *Poller) EventCap() int { return len(p.eventBuf) }

func interestToEpoll(interest Interest) uint32 {
	var e uint32
	if interest&Read != 0 {
		e |= unix.EPOLLIN
	}
	if interest&Write != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}
