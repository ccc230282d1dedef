package dynbloom

import (
	"math"

	"github.com/pkg/errors"
)

const (
	// DefaultErrorRate is the target false positive rate used when none is given.
	DefaultErrorRate = 0.001
	// DefaultInitialCapacity is the capacity of a ScalableFilter's first shard.
	DefaultInitialCapacity = 100
	// DefaultBaseCapacity is the capacity of every DynamicFilter shard.
	DefaultBaseCapacity = 100
	// DefaultRatio is the per-shard error rate tightening factor of a ScalableFilter.
	DefaultRatio = 0.9

	// ln2 is the natural logarithm of 2.
	ln2 = 0.6931471805599453
	// ln2Squared is ln(2)^2.
	ln2Squared = 0.4804530139182014

	// maxNumBits bounds the size of a single filter or shard (128 TiB of bits).
	maxNumBits = uint64(1) << 50
)

// OptimalBits returns the bit array size for a filter holding capacity items
// at the given false positive rate:
//
//	num_bits = ceil(-capacity * ln(errorRate) / ln(2)^2)
//
// The result is at least 1 and saturates at math.MaxUint64. Stored filters
// are validated against this function, so its rounding must never change.
func OptimalBits(capacity uint64, errorRate float64) uint64 {
	bits := math.Ceil(-float64(capacity) * math.Log(errorRate) / ln2Squared)
	if !(bits >= 1) {
		return 1
	}
	if bits >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(bits)
}

// OptimalHashes returns the number of hash functions for numBits bits and
// capacity items:
//
//	num_hashes = round((numBits / capacity) * ln(2))
//
// rounded half away from zero and clamped to at least 1.
func OptimalHashes(numBits, capacity uint64) uint32 {
	if capacity == 0 {
		return 1
	}
	k := math.Round(float64(numBits) / float64(capacity) * ln2)
	if k < 1 {
		return 1
	}
	return uint32(k)
}

// OptimalParams returns both derived sizes for (capacity, errorRate).
func OptimalParams(capacity uint64, errorRate float64) (numBits uint64, numHashes uint32) {
	numBits = OptimalBits(capacity, errorRate)
	return numBits, OptimalHashes(numBits, capacity)
}

// CapacityFor maps back from a bit budget: it returns the largest capacity
// whose OptimalBits at errorRate fits in numBits. It returns 0 when not even a
// single item fits.
func CapacityFor(numBits uint64, errorRate float64) uint64 {
	if numBits == 0 || !(errorRate > 0 && errorRate < 1) {
		return 0
	}

	// Closed-form estimate, then walk to the exact boundary.
	c := uint64(float64(numBits) * ln2Squared / -math.Log(errorRate))
	for c > 0 && OptimalBits(c, errorRate) > numBits {
		c--
	}
	for OptimalBits(c+1, errorRate) <= numBits {
		c++
	}
	return c
}

// EstimateFalsePositiveRate estimates the false positive rate of a filter
// with numBits bits and numHashes hash functions after items insertions.
// Formula: (1 - e^(-kn/m))^k
func EstimateFalsePositiveRate(numBits uint64, numHashes uint32, items uint64) float64 {
	m := float64(numBits)
	n := float64(items)
	k := float64(numHashes)

	if m == 0 || n == 0 {
		return 0
	}

	return math.Pow(1-math.Exp(-k*n/m), k)
}

// ScalableErrorBound returns the limit of the aggregate false positive
// probability of a ScalableFilter whose shard i targets errorRate * ratio^i.
// It is the sum of the geometric series errorRate / (1 - ratio); real
// filters with finitely many shards stay below it.
func ScalableErrorBound(errorRate, ratio float64) float64 {
	return errorRate / (1 - ratio)
}

func validateParams(capacity uint64, errorRate float64) error {
	if capacity == 0 {
		return errors.Wrap(ErrInvalidParameter, "capacity must be positive")
	}
	// Written so that NaN fails too.
	if !(errorRate > 0 && errorRate < 1) {
		return errors.Wrapf(ErrInvalidParameter, "error rate %v outside (0, 1)", errorRate)
	}
	if bits := OptimalBits(capacity, errorRate); bits > maxNumBits {
		return errors.Wrapf(ErrInvalidParameter, "capacity %d at error rate %v needs %d bits, more than %d",
			capacity, errorRate, bits, maxNumBits)
	}
	return nil
}

func validateRatio(ratio float64) error {
	if !(ratio > 0 && ratio < 1) {
		return errors.Wrapf(ErrInvalidParameter, "ratio %v outside (0, 1)", ratio)
	}
	return nil
}
