package dynbloom

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustDynamic(t *testing.T, opts ...DynamicOption) *DynamicFilter {
	t.Helper()
	d, err := NewDynamic(opts...)
	require.NoError(t, err)
	return d
}

func TestDynamicDefaults(t *testing.T) {
	d := mustDynamic(t)
	require.Equal(t, uint64(DefaultBaseCapacity), d.BaseCapacity())
	require.Equal(t, DefaultErrorRate, d.ErrorRate())
	require.Equal(t, HasherXXH3, d.Hasher())
	require.Equal(t, 1, d.NumShards())
	require.Equal(t, uint64(100), d.Capacity())
}

func TestDynamicInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts []DynamicOption
	}{
		{"zero capacity", []DynamicOption{WithBaseCapacity(0)}},
		{"zero error rate", []DynamicOption{WithErrorRate(0)}},
		{"error rate above one", []DynamicOption{WithErrorRate(1.5)}},
		{"unknown hasher", []DynamicOption{WithHasher(Hasher(0))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDynamic(tt.opts...)
			require.ErrorIs(t, err, ErrInvalidParameter)
		})
	}
}

func TestDynamicUniformShards(t *testing.T) {
	d := mustDynamic(t, WithBaseCapacity(100), WithErrorRate(0.001))

	for i := range 1000 {
		d.AddInt64(int64(i))
	}
	require.Equal(t, 10, d.NumShards())
	require.Equal(t, uint64(1000), d.Capacity())

	for i, sh := range d.Shards() {
		require.Equal(t, uint64(100), sh.Capacity, "shard %d", i)
		require.Equal(t, 0.001, sh.ErrorRate, "shard %d", i)
		require.Equal(t, uint64(1438), sh.NumBits, "shard %d", i)
		require.Equal(t, uint32(10), sh.NumHashes, "shard %d", i)
	}

	for i := range 1000 {
		require.True(t, d.TestInt64(int64(i)))
	}
}

func TestDynamicAddReportsPresence(t *testing.T) {
	d := mustDynamic(t, WithBaseCapacity(3))

	for _, c := range letters[:3] {
		require.False(t, d.AddString(c))
	}
	require.True(t, d.AddString("a"))
	require.Equal(t, 1, d.NumShards())

	require.False(t, d.AddString("d"))
	require.Equal(t, 2, d.NumShards())
	require.Equal(t, uint64(4), d.Count())
}

func TestDynamicUnion(t *testing.T) {
	a := mustDynamic(t, WithBaseCapacity(10))
	b := mustDynamic(t, WithBaseCapacity(10))
	for _, c := range letters[13:] {
		a.AddString(c)
	}
	for _, c := range letters[:13] {
		b.AddString(c)
	}
	require.Equal(t, 2, a.NumShards())

	u, err := a.Union(b)
	require.NoError(t, err)
	for _, c := range letters {
		require.True(t, u.TestString(c), "union missing %q", c)
	}
	require.Equal(t, uint64(26), u.Count())
	require.Equal(t, 2, u.NumShards())
}

func TestDynamicIntersection(t *testing.T) {
	a := mustDynamic(t, WithBaseCapacity(10))
	b := mustDynamic(t, WithBaseCapacity(10))
	for _, c := range letters {
		a.AddString(c)
	}
	for _, c := range letters[:13] {
		b.AddString(c)
	}
	require.Equal(t, 3, a.NumShards())
	require.Equal(t, 2, b.NumShards())

	x, err := a.Intersection(b)
	require.NoError(t, err)
	require.Equal(t, 2, x.NumShards())
	for _, c := range letters[:13] {
		require.True(t, x.TestString(c), "intersection missing %q", c)
	}
	for _, c := range letters[13:] {
		require.False(t, x.TestString(c), "intersection has %q", c)
	}
}

func TestDynamicIncompatible(t *testing.T) {
	a := mustDynamic(t, WithBaseCapacity(100))
	for _, b := range []*DynamicFilter{
		mustDynamic(t, WithBaseCapacity(20)),
		mustDynamic(t, WithBaseCapacity(100), WithErrorRate(0.01)),
		mustDynamic(t, WithBaseCapacity(100), WithHasher(HasherMurmur3)),
	} {
		_, err := a.Union(b)
		require.ErrorIs(t, err, ErrIncompatibleFilter)
		_, err = a.Intersection(b)
		require.ErrorIs(t, err, ErrIncompatibleFilter)
	}
}

func TestDynamicClone(t *testing.T) {
	d := mustDynamic(t, WithBaseCapacity(5))
	for i := range 12 {
		d.AddString(fmt.Sprintf("item-%d", i))
	}

	c := d.Clone()
	require.Equal(t, d.Shards(), c.Shards())

	c.AddString("extra")
	require.True(t, c.TestString("extra"))
	require.False(t, d.TestString("extra"))
	require.Equal(t, uint64(12), d.Count())
}

func TestDynamicMarshalerItems(t *testing.T) {
	d := mustDynamic(t)

	present, err := d.AddItem(point{3, 4})
	require.NoError(t, err)
	require.False(t, present)

	ok, err := d.TestItem(point{3, 4})
	require.NoError(t, err)
	require.True(t, ok)

	_, err = d.AddItem(brokenItem{})
	require.Error(t, err)
}
