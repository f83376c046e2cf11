package memory

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryReadWrite(t *testing.T) {
	t.Run("large random", func(t *testing.T) {
		m := NewMemory(DefaultStart, 1<<20)
		data := make([]byte, 20_000)
		for i := range data {
			data[i] = byte(i * 7)
		}
		require.NoError(t, m.SetMemoryRange(DefaultStart+0x123, bytes.NewReader(data)))
		for _, i := range []uint64{0, 1, 4095, 4096, 19_999 - 7} {
			v, err := m.Read(DefaultStart+0x123+i, 8)
			require.NoError(t, err)
			var buf [8]byte
			copy(buf[:], data[i:])
			expected := uint64(0)
			for j := 7; j >= 0; j-- {
				expected = expected<<8 | uint64(buf[j])
			}
			require.Equal(t, expected, v)
		}
		res, err := io.ReadAll(m.ReadMemoryRange(DefaultStart+0x123, uint64(len(data))))
		require.NoError(t, err)
		require.Equal(t, data, res)
	})

	t.Run("unaligned across pages", func(t *testing.T) {
		m := NewMemory(DefaultStart, 1<<20)
		addr := uint64(DefaultStart + PageSize - 3)
		require.NoError(t, m.Write(addr, 8, 0x1122_3344_5566_7788))
		v, err := m.Read(addr, 8)
		require.NoError(t, err)
		require.Equal(t, uint64(0x1122_3344_5566_7788), v)
		require.Equal(t, 2, m.PageCount())

		v, err = m.Read(addr+3, 4)
		require.NoError(t, err)
		require.Equal(t, uint64(0x1122_3344), v)
	})

	t.Run("unallocated reads zero", func(t *testing.T) {
		m := NewMemory(DefaultStart, 1<<20)
		v, err := m.Read(DefaultStart+0x5000, 8)
		require.NoError(t, err)
		require.Zero(t, v)
		require.Zero(t, m.PageCount())
	})

	t.Run("bad width", func(t *testing.T) {
		m := NewMemory(DefaultStart, 1<<20)
		_, err := m.Read(DefaultStart, 3)
		require.Error(t, err)
	})
}

func TestMemoryBounds(t *testing.T) {
	m := NewMemory(DefaultStart, 2*PageSize)

	_, err := m.Read(DefaultStart-1, 1)
	require.ErrorIs(t, err, ErrOutOfBounds)

	_, err = m.Read(DefaultStart+2*PageSize-4, 8)
	require.True(t, errors.Is(err, ErrOutOfBounds))

	_, err = m.Read(DefaultStart+2*PageSize-8, 8)
	require.NoError(t, err)

	err = m.WriteAll(DefaultStart+2*PageSize-2, []byte{1, 2, 3})
	require.ErrorIs(t, err, ErrOutOfBounds)
	require.Zero(t, m.PageCount(), "failed writes must not allocate")

	_, err = m.Read(^uint64(0)-2, 8)
	require.ErrorIs(t, err, ErrOutOfBounds)

	require.False(t, m.InBounds(0, 1))
	require.True(t, m.InBounds(DefaultStart, 2*PageSize))
	require.False(t, m.InBounds(DefaultStart, 2*PageSize+1))
}

func TestMemoryMerkleRoot(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		m := NewMemory(DefaultStart, 1<<20)
		require.Equal(t, zeroHashes[PageKeySize+pageTreeDepth], m.MerkleRoot())
	})
	t.Run("zero page equals empty", func(t *testing.T) {
		m := NewMemory(DefaultStart, 1<<20)
		require.NoError(t, m.WriteAll(DefaultStart+0x2000, make([]byte, 64)))
		require.Equal(t, 1, m.PageCount())
		require.Equal(t, zeroHashes[PageKeySize+pageTreeDepth], m.MerkleRoot())
	})
	t.Run("write changes root", func(t *testing.T) {
		m := NewMemory(DefaultStart, 1<<20)
		before := m.MerkleRoot()
		require.NoError(t, m.Write(DefaultStart+8, 8, 0xAA))
		mid := m.MerkleRoot()
		require.NotEqual(t, before, mid)
		require.NoError(t, m.Write(DefaultStart+8, 8, 0))
		require.Equal(t, before, m.MerkleRoot(), "cached page root must be invalidated")
	})
	t.Run("order independent", func(t *testing.T) {
		a := NewMemory(DefaultStart, 1<<20)
		b := NewMemory(DefaultStart, 1<<20)
		require.NoError(t, a.Write(DefaultStart+0x10, 4, 1))
		require.NoError(t, a.Write(DefaultStart+0x9000, 4, 2))
		require.NoError(t, b.Write(DefaultStart+0x9000, 4, 2))
		require.NoError(t, b.Write(DefaultStart+0x10, 4, 1))
		require.Equal(t, a.MerkleRoot(), b.MerkleRoot())
	})
}

func TestMemoryJSON(t *testing.T) {
	m := NewMemory(DefaultStart, 1<<20)
	require.NoError(t, m.Write(DefaultStart+8, 4, 123))
	dat, err := json.Marshal(m)
	require.NoError(t, err)

	res := new(Memory)
	require.NoError(t, json.Unmarshal(dat, res))
	require.Equal(t, uint64(DefaultStart), res.Start())
	require.Equal(t, uint64(1<<20), res.Size())
	v, err := res.Read(DefaultStart+8, 4)
	require.NoError(t, err)
	require.Equal(t, uint64(123), v)
	require.Equal(t, m.MerkleRoot(), res.MerkleRoot())
}

func TestMemoryUsage(t *testing.T) {
	m := NewMemory(DefaultStart, 1<<30)
	require.Equal(t, "0 B", m.Usage())
	require.NoError(t, m.Write(DefaultStart, 1, 1))
	require.Equal(t, "4.0 KiB", m.Usage())
}
