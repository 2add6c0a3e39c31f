package wire_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-link/core/wire"
)

func TestHeaderRoundTrip(t *testing.T) {
	for _, size := range []int64{0, 1, 13, 4096, math.MaxInt64, -1, math.MinInt64} {
		var b [wire.HeaderSize]byte
		wire.PutHeader(b[:], size)
		require.Equal(t, size, wire.Header(b[:]), "size %d", size)
	}
}

func TestHeaderNativeOrder(t *testing.T) {
	var b [wire.HeaderSize]byte
	wire.PutHeader(b[:], 0x0102030405060708)
	require.Equal(t, uint64(0x0102030405060708), binary.NativeEndian.Uint64(b[:]))
}

func TestAppendHeader(t *testing.T) {
	dst := wire.AppendHeader(nil, 42)
	require.Len(t, dst, wire.HeaderSize)
	require.Equal(t, int64(42), wire.Header(dst))

	dst = wire.AppendHeader(dst, wire.EndOfStream)
	require.Len(t, dst, 2*wire.HeaderSize)
	require.Equal(t, wire.EndOfStream, wire.Header(dst[wire.HeaderSize:]))
}
