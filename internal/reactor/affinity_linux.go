//go:build linux

package reactor

import "golang.org/x/sys/unix"

// PinCurrentThread pins the calling OS thread to the given CPU index.
// Callers must have already called runtime.LockOSThread, since the
// affinity applies to the underlying OS thread, not the goroutine.
func PinCurrentThread(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
