//go:build darwin

package reactor

import "golang.org/x/sys/unix"

// Wake is the cross-thread wake endpoint. Darwin has no eventfd, so this
// uses a self-pipe: a non-blocking pipe whose read end is registered with
// the Poller and whose write end the driver pokes.
type Wake struct {
	readFD, writeFD int
}

// NewWake creates a non-blocking self-pipe wake endpoint.
func NewWake() (*Wake, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, err
	}
	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])
	if err := unix.SetNonblock(fds[0], true); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, err
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, err
	}
	return &Wake{readFD: fds[0], writeFD: fds[1]}, nil
}

// FD returns the descriptor to register with the Poller for Read
// interest.
func (w *Wake) FD() int { return w.readFD }

// Poke delivers one spurious readiness event to the registered Poller.
func (w *Wake) Poke() error {
	_, err := unix.Write(w.writeFD, []byte{1})
	if err != nil && err != unix.EAGAIN {
		return err
	}
	return nil
}

// Drain consumes any pending wake notifications.
func (w *Wake) Drain() error {
	var buf [64]byte
	for {
		_, err := unix.Read(w.readFD, buf[:])
		if err != nil {
			break
		}
	}
	return nil
}

// Close releases both pipe ends.
func (w *Wake) Close() error {
	err1 := unix.Close(w.readFD)
	err2 := unix.Close(w.writeFD)
	if err1 != nil {
		return err1
	}
	return err2
}
