package dynbloom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocations(t *testing.T) {
	require.Equal(t, []uint64{3, 8, 3, 8}, Locations(3, 5, 4, 10))
	require.Equal(t, []uint64{0, 1, 2}, Locations(0, 1, 3, 100))

	// Wrapping arithmetic stays inside the array.
	locs := Locations(^uint64(0), ^uint64(0), 16, 1000)
	require.Len(t, locs, 16)
	for _, l := range locs {
		require.Less(t, l, uint64(1000))
	}
}

func TestLocationsMatchFilter(t *testing.T) {
	f := mustNew(t, 100, 0.01)
	f.AddString("hello")

	h1, h2 := f.hasher.sumString("hello")
	for _, l := range Locations(h1, h2, f.K(), f.NumBits()) {
		set, err := f.bits.Get(l)
		require.NoError(t, err)
		require.True(t, set)
	}
	require.LessOrEqual(t, f.bits.CountSet(), uint64(f.K()))
}

func TestNonZero(t *testing.T) {
	require.Equal(t, uint64(1), nonZero(0))
	require.Equal(t, uint64(42), nonZero(42))
}

func TestHasherSumStringMatchesSum(t *testing.T) {
	for _, h := range []Hasher{HasherXXH3, HasherMurmur3} {
		t.Run(h.String(), func(t *testing.T) {
			for _, s := range []string{"", "a", "hello world", "a much longer string that crosses several hash blocks......"} {
				a1, a2 := h.sum([]byte(s))
				b1, b2 := h.sumString(s)
				require.Equal(t, a1, b1, "h1 for %q", s)
				require.Equal(t, a2, b2, "h2 for %q", s)
				require.NotZero(t, b2)
			}
		})
	}
}

func TestHashersDiffer(t *testing.T) {
	x1, x2 := HasherXXH3.sum([]byte("hello"))
	m1, m2 := HasherMurmur3.sum([]byte("hello"))
	require.NotEqual(t, x1, m1)
	require.NotEqual(t, x2, m2)

	// The two seeds give two independent values.
	require.NotEqual(t, x1, x2)
	require.NotEqual(t, m1, m2)
}

func TestParseHasher(t *testing.T) {
	for _, h := range []Hasher{HasherXXH3, HasherMurmur3} {
		got, err := ParseHasher(h.String())
		require.NoError(t, err)
		require.Equal(t, h, got)
	}

	got, err := ParseHasher("XXH3")
	require.NoError(t, err)
	require.Equal(t, HasherXXH3, got)

	_, err = ParseHasher("sha256")
	require.ErrorIs(t, err, ErrInvalidParameter)

	require.Equal(t, "unknown", Hasher(0).String())
	require.False(t, Hasher(0).valid())
}

func TestUint64Bytes(t *testing.T) {
	buf := uint64Bytes(0x0102030405060708)
	require.Equal(t, [8]byte{8, 7, 6, 5, 4, 3, 2, 1}, buf)
}
