//go:build darwin

package reactor

import "errors"

// ErrAffinityUnsupported is returned by PinCurrentThread on platforms with
// no usable thread-affinity syscall exposed through golang.org/x/sys/unix.
// Darwin's THREAD_AFFINITY_POLICY is an advisory hint to the scheduler, not
// a hard pin, and isn't wrapped there; callers should log at debug and
// continue rather than treat this as fatal.
var ErrAffinityUnsupported = errors.New("reactor: cpu affinity not supported on this platform")

// PinCurrentThread is a no-op on Darwin; it always returns
// ErrAffinityUnsupported.
func PinCurrentThread(cpu int) error {
	return ErrAffinityUnsupported
}
