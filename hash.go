package dynbloom

import (
	"encoding/binary"
	"strings"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"
)

// Hasher selects the keyed hash function that produces the two base values
// of the double hashing scheme. It is part of a filter's identity: filters
// built with different hashers never compare compatible, and the hasher is
// recorded in the serialized form.
type Hasher uint8

const (
	// HasherXXH3 uses seeded xxh3 (the default).
	HasherXXH3 Hasher = iota + 1
	// HasherMurmur3 uses seeded 64-bit murmur3.
	HasherMurmur3
)

// Fixed seeds for the two base hashes. Changing either breaks every stored filter.
const (
	seed1 uint64 = 0x9e3779b97f4a7c15
	seed2 uint64 = 0xc2b2ae3d27d4eb4f
)

// String returns the hasher name accepted by ParseHasher.
func (h Hasher) String() string {
	switch h {
	case HasherXXH3:
		return "xxh3"
	case HasherMurmur3:
		return "murmur3"
	default:
		return "unknown"
	}
}

// ParseHasher returns the Hasher called name.
func ParseHasher(name string) (Hasher, error) {
	switch strings.ToLower(name) {
	case "xxh3":
		return HasherXXH3, nil
	case "murmur3":
		return HasherMurmur3, nil
	default:
		return 0, errors.Wrapf(ErrInvalidParameter, "unknown hasher %q", name)
	}
}

func (h Hasher) valid() bool {
	return h == HasherXXH3 || h == HasherMurmur3
}

// sum returns the two base hash values of data.
func (h Hasher) sum(data []byte) (h1, h2 uint64) {
	switch h {
	case HasherMurmur3:
		h1 = murmur3.Sum64WithSeed(data, uint32(seed1))
		h2 = murmur3.Sum64WithSeed(data, uint32(seed2))
	default:
		h1 = xxh3.HashSeed(data, seed1)
		h2 = xxh3.HashSeed(data, seed2)
	}
	return h1, nonZero(h2)
}

// sumString is sum for strings without copying them.
func (h Hasher) sumString(s string) (h1, h2 uint64) {
	switch h {
	case HasherMurmur3:
		// murmur3 only reads the slice.
		return h.sum(unsafe.Slice(unsafe.StringData(s), len(s)))
	default:
		return xxh3.HashStringSeed(s, seed1), nonZero(xxh3.HashStringSeed(s, seed2))
	}
}

// nonZero keeps the index step from collapsing every index onto h1.
func nonZero(h2 uint64) uint64 {
	if h2 == 0 {
		return 1
	}
	return h2
}

// Locations returns the numHashes bit indices for base hashes h1 and h2:
//
//	index_i = (h1 + i*h2) mod numBits, for i in [0, numHashes)
//
// Filters compute the same sequence inline without allocating.
func Locations(h1, h2 uint64, numHashes uint32, numBits uint64) []uint64 {
	locs := make([]uint64, numHashes)
	for i := range uint64(numHashes) {
		locs[i] = (h1 + i*h2) % numBits
	}
	return locs
}

// uint64Bytes is the byte encoding of integer items: 8 bytes, little-endian.
func uint64Bytes(v uint64) [8]byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return buf
}
