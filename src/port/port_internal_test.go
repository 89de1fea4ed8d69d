package port

import (
	"errors"
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateReturnsBindablePort(t *testing.T) {
	a := NewAllocator()
	p, err := a.Allocate()
	require.NoError(t, err)
	require.Greater(t, p, 0)

	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(p)))
	require.NoError(t, err, "allocated port must be released for the target to bind")
	_ = l.Close()
}

func TestAllocateSkipsHeldPorts(t *testing.T) {
	seq := []int{40001, 40001, 40001, 40002}
	a := NewAllocator()
	a.probe = func() (int, error) {
		p := seq[0]
		seq = seq[1:]
		return p, nil
	}

	first, err := a.Allocate()
	require.NoError(t, err)
	second, err := a.Allocate()
	require.NoError(t, err)

	assert.Equal(t, 40001, first)
	assert.Equal(t, 40002, second)
	assert.True(t, a.Held(first))
	assert.True(t, a.Held(second))
}

func TestAllocateReusesReleasedPort(t *testing.T) {
	a := NewAllocator()
	a.probe = func() (int, error) { return 40010, nil }

	p, err := a.Allocate()
	require.NoError(t, err)
	_, err = a.Allocate()
	require.ErrorIs(t, err, ErrAllocation)

	a.Release(p)
	again, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, p, again)
}

func TestAllocateWrapsProbeError(t *testing.T) {
	a := NewAllocator()
	bindErr := errors.New("bind: permission denied")
	a.probe = func() (int, error) { return 0, bindErr }

	_, err := a.Allocate()
	require.ErrorIs(t, err, ErrAllocation)
	require.ErrorIs(t, err, bindErr)
}

func TestAllocateRealPortsAreDistinct(t *testing.T) {
	a := NewAllocator()
	seen := map[int]bool{}
	for i := 0; i < 8; i++ {
		p, err := a.Allocate()
		require.NoError(t, err)
		require.False(t, seen[p], "port %d handed out twice", p)
		seen[p] = true
	}
}
