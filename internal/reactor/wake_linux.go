//go:build linux

package reactor

import "golang.org/x/sys/unix"

// Wake is the cross-thread wake endpoint: the driver pokes it to force a
// worker's blocked Wait to return, so the worker can re-check its stop
// flag. On Linux this is a single eventfd acting as both read and write
// end.
type Wake struct {
	fd int
}

// NewWake creates a non-blocking eventfd-backed wake endpoint.
func NewWake() (*Wake, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &Wake{fd: fd}, nil
}

// FD returns the descriptor to register with the Poller for Read
// interest.
func (w *Wake) FD() int { return w.fd }

// Poke delivers one spurious readiness event to the registered Poller.
func (w *Wake) Poke() error {
	var buf [8]byte
	buf[7] = 1
	_, err := unix.Write(w.fd, buf[:])
	if err != nil && err != unix.EAGAIN {
		return err
	}
	return nil
}

// Drain consumes any pending wake notifications so the next Poke is
// observed as a fresh edge.
func (w *Wake) Drain() error {
	var buf [8]byte
	for {
		_, err := unix.Read(w.fd, buf[:])
		if err != nil {
			break
		}
	}
	return nil
}

// Close releases the eventfd.
func (w *Wake) Close() error {
	return unix.Close(w.fd)
}
