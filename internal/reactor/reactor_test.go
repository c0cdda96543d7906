package reactor

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestTagRoundTrip(t *testing.T) {
	cases := []struct {
		index int
		side  uint8
	}{
		{0, 0},
		{0, 1},
		{1, 0},
		{1, 1},
		{4095, 1},
	}
	for _, c := range cases {
		tag := MakeTag(c.index, c.side)
		require.Equal(t, c.index, tag.Index())
		require.Equal(t, c.side&1, tag.Side())
	}
}

func TestWakeTagDistinguishableFromRealTags(t *testing.T) {
	for _, idx := range []int{0, 1, 4095, 1 << 20} {
		for _, side := range []uint8{0, 1} {
			require.NotEqual(t, WakeTag, MakeTag(idx, side))
		}
	}
}

// TestPollerAddWaitRoundTrip registers one end of a socket pair for read
// readiness, writes to the other end, and asserts Wait reports the exact
// tag it was registered with.
func TestPollerAddWaitRoundTrip(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	p, err := New(8)
	require.NoError(t, err)
	defer p.Close()

	tag := MakeTag(3, 1)
	require.NoError(t, p.Add(fds[0], Read, tag))

	_, err = unix.Write(fds[1], []byte("x"))
	require.NoError(t, err)

	events := make([]Event, 8)
	n, err := p.Wait(1000, events)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, tag, events[0].Tag)
	require.True(t, events[0].Readable)
}

func TestPollerModifyChangesInterest(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	p, err := New(8)
	require.NoError(t, err)
	defer p.Close()

	tag := MakeTag(1, 0)
	require.NoError(t, p.Add(fds[0], Write, tag))

	events := make([]Event, 8)
	n, err := p.Wait(1000, events)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.True(t, events[0].Writable)

	// A stream socket's send buffer is essentially always writable, so
	// switching interest to Read should stop Wait from reporting it ready
	// (nothing has been written into fds[0] yet).
	require.NoError(t, p.Modify(fds[0], Read, tag))
	n, err = p.Wait(50, events)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestPollerCloseIsIdempotentAndRejectsUseAfterClose(t *testing.T) {
	p, err := New(4)
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	err = p.Add(0, Read, MakeTag(0, 0))
	require.ErrorIs(t, err, ErrClosed)

	_, err = p.Wait(0, make([]Event, 1))
	require.ErrorIs(t, err, ErrClosed)
}
