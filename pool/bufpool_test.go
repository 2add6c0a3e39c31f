package pool_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-link/pool"
)

func TestGetLength(t *testing.T) {
	bp := pool.NewBufPool()
	for _, n := range []int{1, 7, 4096, 1 << 20} {
		b := bp.Get(n)
		require.Len(t, b, n)
		bp.Put(b)
	}
}

func TestReuseWhenCapacitySuffices(t *testing.T) {
	bp := pool.NewBufPool()
	big := bp.Get(1024)
	bp.Put(big)

	// A smaller request may reuse the recycled capacity. sync.Pool gives
	// no hard guarantee, so only the length contract is asserted.
	small := bp.Get(16)
	require.Len(t, small, 16)
	bp.Put(small)
}

func TestPutEmptyIsNoop(t *testing.T) {
	bp := pool.NewBufPool()
	bp.Put(nil)
	bp.Put([]byte{})
	b := bp.Get(8)
	require.Len(t, b, 8)
}
