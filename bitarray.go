package dynbloom

import (
	"encoding/binary"

	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"
)

// BitArray is a fixed-length bit vector. Bit j is bit j%8 of byte j/8 in
// the byte form returned by Bytes.
type BitArray struct {
	numBits uint64
	bs      *bitset.BitSet
}

// NewBitArray returns a zeroed BitArray of numBits bits.
func NewBitArray(numBits uint64) *BitArray {
	return &BitArray{
		numBits: numBits,
		bs:      bitset.New(uint(numBits)),
	}
}

// Len returns the number of bits.
func (a *BitArray) Len() uint64 {
	return a.numBits
}

// Get reports whether bit i is set.
func (a *BitArray) Get(i uint64) (bool, error) {
	if i >= a.numBits {
		return false, errors.Wrapf(ErrOutOfRange, "index %d, length %d", i, a.numBits)
	}
	return a.test(i), nil
}

// Set sets bit i.
func (a *BitArray) Set(i uint64) error {
	if i >= a.numBits {
		return errors.Wrapf(ErrOutOfRange, "index %d, length %d", i, a.numBits)
	}
	a.set(i)
	return nil
}

// test and set skip the range check; filter indices are always reduced mod numBits.
func (a *BitArray) test(i uint64) bool {
	return a.bs.Test(uint(i))
}

func (a *BitArray) set(i uint64) {
	a.bs.Set(uint(i))
}

// CountSet returns the number of set bits.
func (a *BitArray) CountSet() uint64 {
	return uint64(a.bs.Count())
}

// Or returns a new array holding the bitwise OR of a and other.
func (a *BitArray) Or(other *BitArray) (*BitArray, error) {
	if a.numBits != other.numBits {
		return nil, errors.Wrapf(ErrIncompatibleFilter, "bit array lengths %d and %d", a.numBits, other.numBits)
	}
	out := a.Clone()
	out.bs.InPlaceUnion(other.bs)
	return out, nil
}

// And returns a new array holding the bitwise AND of a and other.
func (a *BitArray) And(other *BitArray) (*BitArray, error) {
	if a.numBits != other.numBits {
		return nil, errors.Wrapf(ErrIncompatibleFilter, "bit array lengths %d and %d", a.numBits, other.numBits)
	}
	out := a.Clone()
	out.bs.InPlaceIntersection(other.bs)
	return out, nil
}

// Clone returns a deep copy.
func (a *BitArray) Clone() *BitArray {
	return &BitArray{numBits: a.numBits, bs: a.bs.Clone()}
}

// Equal reports whether both arrays have the same length and bits.
func (a *BitArray) Equal(other *BitArray) bool {
	return a.numBits == other.numBits && a.bs.Equal(other.bs)
}

// byteLen returns ceil(numBits/8).
func byteLen(numBits uint64) uint64 {
	return (numBits + 7) / 8
}

// Bytes returns the ceil(numBits/8) byte form of the array.
func (a *BitArray) Bytes() []byte {
	out := make([]byte, byteLen(a.numBits))
	// Little-endian words laid end to end give exactly the LSB0 byte order.
	for i, w := range a.bs.Words() {
		off := i * 8
		if off+8 <= len(out) {
			binary.LittleEndian.PutUint64(out[off:off+8], w)
			continue
		}
		for j := 0; off+j < len(out); j++ {
			out[off+j] = byte(w >> (8 * j))
		}
	}
	return out
}

// BitArrayFromBytes rebuilds a numBits array from its Bytes form.
func BitArrayFromBytes(numBits uint64, data []byte) (*BitArray, error) {
	if uint64(len(data)) != byteLen(numBits) {
		return nil, errors.Wrapf(ErrCorruptData, "bit array of %d bits needs %d bytes, got %d",
			numBits, byteLen(numBits), len(data))
	}
	if tail := numBits % 8; tail != 0 && data[len(data)-1]>>tail != 0 {
		return nil, errors.Wrapf(ErrCorruptData, "bits set past bit %d", numBits)
	}

	a := NewBitArray(numBits)
	words := a.bs.Words()
	for i := range words {
		off := i * 8
		if off+8 <= len(data) {
			words[i] = binary.LittleEndian.Uint64(data[off : off+8])
			continue
		}
		var w uint64
		for j := 0; off+j < len(data); j++ {
			w |= uint64(data[off+j]) << (8 * j)
		}
		words[i] = w
	}
	return a, nil
}
