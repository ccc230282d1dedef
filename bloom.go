package dynbloom

import (
	"encoding"

	"github.com/pkg/errors"
)

// Filter is a fixed-capacity bloom filter using double hashing over a flat
// bit array.
//
// The bit array size and hash count are derived from (capacity, errorRate)
// at construction and never change. Adding more than capacity items keeps
// working; the false positive rate just climbs past errorRate.
//
// A Filter is not safe for concurrent use; see Locked.
type Filter struct {
	capacity  uint64    // Items the filter was sized for
	errorRate float64   // Target false positive rate at capacity
	numBits   uint64    // Derived bit array size
	numHashes uint32    // Derived number of hash functions (k)
	hasher    Hasher    // Base hash function
	bits      *BitArray // The bit array
	count     uint64    // Number of distinct items added (approximate)
}

// New creates a bloom filter sized for capacity items at the given false
// positive rate. It fails with ErrInvalidParameter when capacity is 0 or
// errorRate is outside (0, 1).
func New(capacity uint64, errorRate float64, opts ...Option) (*Filter, error) {
	cfg := filterConfig{hasher: HasherXXH3}
	for _, o := range opts {
		o.applyFilter(&cfg)
	}

	if err := validateParams(capacity, errorRate); err != nil {
		return nil, err
	}
	if !cfg.hasher.valid() {
		return nil, errors.Wrapf(ErrInvalidParameter, "unknown hasher %d", cfg.hasher)
	}

	return newFilter(capacity, errorRate, cfg.hasher), nil
}

// NewDefault creates a bloom filter for capacity items at DefaultErrorRate.
func NewDefault(capacity uint64, opts ...Option) (*Filter, error) {
	return New(capacity, DefaultErrorRate, opts...)
}

// newFilter builds a filter from already validated parameters.
func newFilter(capacity uint64, errorRate float64, hasher Hasher) *Filter {
	numBits, numHashes := OptimalParams(capacity, errorRate)
	return &Filter{
		capacity:  capacity,
		errorRate: errorRate,
		numBits:   numBits,
		numHashes: numHashes,
		hasher:    hasher,
		bits:      NewBitArray(numBits),
	}
}

// Add adds data to the filter.
//
// It returns true if every bit for data was already set, meaning data was
// probably added before (or is a false positive); the filter is then left
// untouched. Otherwise it sets the bits, counts the item and returns false.
func (f *Filter) Add(data []byte) bool {
	h1, h2 := f.hasher.sum(data)
	return f.addWithHash(h1, h2)
}

// AddString adds a string to the filter without allocating.
func (f *Filter) AddString(s string) bool {
	h1, h2 := f.hasher.sumString(s)
	return f.addWithHash(h1, h2)
}

// AddUint64 adds an integer, encoded as 8 little-endian bytes.
func (f *Filter) AddUint64(v uint64) bool {
	buf := uint64Bytes(v)
	return f.Add(buf[:])
}

// AddInt64 adds a signed integer using the same encoding as AddUint64.
func (f *Filter) AddInt64(v int64) bool {
	return f.AddUint64(uint64(v))
}

// AddItem adds any value that can encode itself to bytes.
func (f *Filter) AddItem(v encoding.BinaryMarshaler) (bool, error) {
	data, err := v.MarshalBinary()
	if err != nil {
		return false, errors.Wrap(err, "dynbloom: encode item")
	}
	return f.Add(data), nil
}

// addWithHash sets the bits for pre-computed base hashes.
func (f *Filter) addWithHash(h1, h2 uint64) bool {
	present := true
	for i := range uint64(f.numHashes) {
		j := (h1 + i*h2) % f.numBits
		if !f.bits.test(j) {
			present = false
			f.bits.set(j)
		}
	}
	if present {
		return true
	}

	f.count++
	return false
}

// Test checks if data might be in the filter.
// Returns true if the data might be present (with false positive probability),
// or false if the data is definitely not present.
func (f *Filter) Test(data []byte) bool {
	h1, h2 := f.hasher.sum(data)
	return f.testWithHash(h1, h2)
}

// TestString checks if a string might be in the filter without allocating.
func (f *Filter) TestString(s string) bool {
	h1, h2 := f.hasher.sumString(s)
	return f.testWithHash(h1, h2)
}

// TestUint64 checks an integer added with AddUint64.
func (f *Filter) TestUint64(v uint64) bool {
	buf := uint64Bytes(v)
	return f.Test(buf[:])
}

// TestInt64 checks an integer added with AddInt64.
func (f *Filter) TestInt64(v int64) bool {
	return f.TestUint64(uint64(v))
}

// TestItem checks a value added with AddItem.
func (f *Filter) TestItem(v encoding.BinaryMarshaler) (bool, error) {
	data, err := v.MarshalBinary()
	if err != nil {
		return false, errors.Wrap(err, "dynbloom: encode item")
	}
	return f.Test(data), nil
}

// Contains is an alias for Test.
func (f *Filter) Contains(data []byte) bool {
	return f.Test(data)
}

// testWithHash checks the bits for pre-computed base hashes.
func (f *Filter) testWithHash(h1, h2 uint64) bool {
	for i := range uint64(f.numHashes) {
		if !f.bits.test((h1 + i*h2) % f.numBits) {
			return false
		}
	}
	return true
}

// Compatible returns an ErrIncompatibleFilter error unless other has the
// same bit array size, hash count and hasher. Different (capacity,
// errorRate) pairs that derive the same sizes are compatible.
func (f *Filter) Compatible(other *Filter) error {
	if f.numBits != other.numBits || f.numHashes != other.numHashes {
		return errors.Wrapf(ErrIncompatibleFilter, "bits %d vs %d, hashes %d vs %d",
			f.numBits, other.numBits, f.numHashes, other.numHashes)
	}
	if f.hasher != other.hasher {
		return errors.Wrapf(ErrIncompatibleFilter, "hasher %s vs %s", f.hasher, other.hasher)
	}
	return nil
}

// Union returns a new filter containing every item of f and other. It has
// f's capacity and error rate. Its count is f.Count() + other.Count(), an
// upper bound that overestimates when the operands share items.
func (f *Filter) Union(other *Filter) (*Filter, error) {
	if err := f.Compatible(other); err != nil {
		return nil, err
	}
	bits, err := f.bits.Or(other.bits)
	if err != nil {
		return nil, err
	}
	out := f.withBits(bits)
	out.count = f.count + other.count
	return out, nil
}

// Intersection returns a new filter holding the bitwise AND of f and other.
// Its count is min(f.Count(), other.Count()), an upper bound on the true
// intersection size.
func (f *Filter) Intersection(other *Filter) (*Filter, error) {
	if err := f.Compatible(other); err != nil {
		return nil, err
	}
	bits, err := f.bits.And(other.bits)
	if err != nil {
		return nil, err
	}
	out := f.withBits(bits)
	out.count = min(f.count, other.count)
	return out, nil
}

func (f *Filter) withBits(bits *BitArray) *Filter {
	return &Filter{
		capacity:  f.capacity,
		errorRate: f.errorRate,
		numBits:   f.numBits,
		numHashes: f.numHashes,
		hasher:    f.hasher,
		bits:      bits,
	}
}

// Clone returns an independent copy of the filter.
func (f *Filter) Clone() *Filter {
	out := f.withBits(f.bits.Clone())
	out.count = f.count
	return out
}

// Capacity returns the number of items the filter was sized for.
func (f *Filter) Capacity() uint64 {
	return f.capacity
}

// ErrorRate returns the target false positive rate at capacity.
func (f *Filter) ErrorRate() float64 {
	return f.errorRate
}

// NumBits returns the size of the bit array.
func (f *Filter) NumBits() uint64 {
	return f.numBits
}

// Cap returns the capacity of the filter in bits.
func (f *Filter) Cap() uint64 {
	return f.numBits
}

// K returns the number of hash functions used.
func (f *Filter) K() uint32 {
	return f.numHashes
}

// Hasher returns the base hash function.
func (f *Filter) Hasher() Hasher {
	return f.hasher
}

// Count returns the approximate number of distinct items added. It is exact
// unless an Add hit a false positive.
func (f *Filter) Count() uint64 {
	return f.count
}

// Full reports whether the filter holds capacity items.
func (f *Filter) Full() bool {
	return f.count >= f.capacity
}

// EstimatedFillRatio estimates the proportion of bits that are set.
func (f *Filter) EstimatedFillRatio() float64 {
	return float64(f.bits.CountSet()) / float64(f.numBits)
}

// EstimatedFalsePositiveRate estimates the current false positive rate
// based on the number of items added.
func (f *Filter) EstimatedFalsePositiveRate() float64 {
	return EstimateFalsePositiveRate(f.numBits, f.numHashes, f.count)
}
