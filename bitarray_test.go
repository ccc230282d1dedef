package dynbloom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitArrayGetSet(t *testing.T) {
	a := NewBitArray(100)
	require.Equal(t, uint64(100), a.Len())
	require.Zero(t, a.CountSet())

	for _, i := range []uint64{0, 7, 8, 63, 64, 99} {
		require.NoError(t, a.Set(i))
		set, err := a.Get(i)
		require.NoError(t, err)
		require.True(t, set, "bit %d", i)
	}
	require.Equal(t, uint64(6), a.CountSet())

	set, err := a.Get(1)
	require.NoError(t, err)
	require.False(t, set)

	// Setting a bit twice is a no-op.
	require.NoError(t, a.Set(7))
	require.Equal(t, uint64(6), a.CountSet())
}

func TestBitArrayOutOfRange(t *testing.T) {
	a := NewBitArray(10)

	_, err := a.Get(10)
	require.ErrorIs(t, err, ErrOutOfRange)
	require.ErrorIs(t, a.Set(10), ErrOutOfRange)
	require.ErrorIs(t, a.Set(1<<40), ErrOutOfRange)
	require.Zero(t, a.CountSet())
}

func TestBitArrayOrAnd(t *testing.T) {
	a := NewBitArray(70)
	b := NewBitArray(70)
	require.NoError(t, a.Set(1))
	require.NoError(t, a.Set(65))
	require.NoError(t, b.Set(65))
	require.NoError(t, b.Set(69))

	or, err := a.Or(b)
	require.NoError(t, err)
	require.Equal(t, uint64(3), or.CountSet())
	for _, i := range []uint64{1, 65, 69} {
		set, _ := or.Get(i)
		require.True(t, set)
	}

	and, err := a.And(b)
	require.NoError(t, err)
	require.Equal(t, uint64(1), and.CountSet())
	set, _ := and.Get(65)
	require.True(t, set)

	// Operands are unchanged.
	require.Equal(t, uint64(2), a.CountSet())
	require.Equal(t, uint64(2), b.CountSet())

	_, err = a.Or(NewBitArray(71))
	require.ErrorIs(t, err, ErrIncompatibleFilter)
	_, err = a.And(NewBitArray(69))
	require.ErrorIs(t, err, ErrIncompatibleFilter)
}

func TestBitArrayCloneEqual(t *testing.T) {
	a := NewBitArray(20)
	require.NoError(t, a.Set(3))

	c := a.Clone()
	require.True(t, a.Equal(c))

	require.NoError(t, c.Set(4))
	require.False(t, a.Equal(c))
	set, _ := a.Get(4)
	require.False(t, set)

	require.False(t, NewBitArray(20).Equal(NewBitArray(21)))
}

func TestBitArrayBytesLayout(t *testing.T) {
	a := NewBitArray(12)
	require.NoError(t, a.Set(0))
	require.NoError(t, a.Set(9))
	require.NoError(t, a.Set(11))

	// Bit j is bit j%8 of byte j/8.
	require.Equal(t, []byte{0x01, 0x0a}, a.Bytes())

	b := NewBitArray(64)
	require.NoError(t, b.Set(63))
	require.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0x80}, b.Bytes())
}

func TestBitArrayBytesRoundTrip(t *testing.T) {
	for _, n := range []uint64{1, 7, 8, 9, 63, 64, 65, 1438, 9586} {
		a := NewBitArray(n)
		for i := uint64(0); i < n; i += 3 {
			require.NoError(t, a.Set(i))
		}
		require.NoError(t, a.Set(n-1))

		data := a.Bytes()
		require.Len(t, data, int((n+7)/8))

		b, err := BitArrayFromBytes(n, data)
		require.NoError(t, err)
		require.True(t, a.Equal(b), "length %d", n)
		require.Equal(t, a.CountSet(), b.CountSet())
	}
}

func TestBitArrayFromBytesInvalid(t *testing.T) {
	_, err := BitArrayFromBytes(12, []byte{0})
	require.ErrorIs(t, err, ErrCorruptData)

	_, err = BitArrayFromBytes(12, []byte{0, 0, 0})
	require.ErrorIs(t, err, ErrCorruptData)

	// Bit 12 lies past the end of a 12-bit array.
	_, err = BitArrayFromBytes(12, []byte{0, 0x10})
	require.ErrorIs(t, err, ErrCorruptData)

	a, err := BitArrayFromBytes(12, []byte{0, 0x08})
	require.NoError(t, err)
	set, _ := a.Get(11)
	require.True(t, set)
}
