package dynbloom

import (
	"encoding"
	"math"

	"github.com/pkg/errors"
)

// Growth is the factor by which each new ScalableFilter shard's capacity
// exceeds the previous shard's.
type Growth uint8

const (
	// SmallSetGrowth doubles shard capacity. It uses less memory while the
	// set is small.
	SmallSetGrowth Growth = 2
	// LargeSetGrowth quadruples shard capacity. It needs fewer shards, and
	// so fewer lookups per query, for large sets.
	LargeSetGrowth Growth = 4
)

func (g Growth) valid() bool {
	return g == SmallSetGrowth || g == LargeSetGrowth
}

func (g Growth) String() string {
	switch g {
	case SmallSetGrowth:
		return "small-set"
	case LargeSetGrowth:
		return "large-set"
	default:
		return "unknown"
	}
}

// ScalableFilter is a bloom filter that grows without a fixed capacity by
// appending shards. Shard i holds initialCapacity * growth^i items at error
// rate errorRate * ratio^i. A new shard is appended when the last one is
// full.
//
// Tightening the error rate keeps the aggregate false positive probability
// below the geometric series limit errorRate / (1 - ratio); see ErrorBound.
//
// A ScalableFilter is not safe for concurrent use; see Locked.
type ScalableFilter struct {
	initialCapacity uint64
	errorRate       float64
	ratio           float64
	growth          Growth
	hasher          Hasher
	shards          shardSet
}

// NewScalable creates a ScalableFilter. Without options it starts at
// DefaultInitialCapacity with DefaultErrorRate, DefaultRatio and
// SmallSetGrowth.
func NewScalable(opts ...ScalableOption) (*ScalableFilter, error) {
	cfg := scalableConfig{
		initialCapacity: DefaultInitialCapacity,
		errorRate:       DefaultErrorRate,
		ratio:           DefaultRatio,
		growth:          SmallSetGrowth,
		hasher:          HasherXXH3,
	}
	for _, o := range opts {
		o.applyScalable(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := newScalable(cfg)
	s.shards = shardSet{s.newShard(0)}
	return s, nil
}

func (c scalableConfig) validate() error {
	if err := validateParams(c.initialCapacity, c.errorRate); err != nil {
		return err
	}
	if err := validateRatio(c.ratio); err != nil {
		return err
	}
	if !c.growth.valid() {
		return errors.Wrapf(ErrInvalidParameter, "growth %d is not 2 or 4", c.growth)
	}
	if !c.hasher.valid() {
		return errors.Wrapf(ErrInvalidParameter, "unknown hasher %d", c.hasher)
	}
	return nil
}

// newScalable returns a filter with no shards.
func newScalable(cfg scalableConfig) *ScalableFilter {
	return &ScalableFilter{
		initialCapacity: cfg.initialCapacity,
		errorRate:       cfg.errorRate,
		ratio:           cfg.ratio,
		growth:          cfg.growth,
		hasher:          cfg.hasher,
	}
}

func (s *ScalableFilter) config() scalableConfig {
	return scalableConfig{
		initialCapacity: s.initialCapacity,
		errorRate:       s.errorRate,
		ratio:           s.ratio,
		growth:          s.growth,
		hasher:          s.hasher,
	}
}

// shardParams returns the capacity and error rate of shard i. The rate
// never drops below math.SmallestNonzeroFloat64, however small the ratio.
func (s *ScalableFilter) shardParams(i int) (capacity uint64, errorRate float64) {
	capacity = s.initialCapacity
	for range i {
		if capacity > math.MaxUint64/uint64(s.growth) {
			// Unreachable in practice; saturate rather than wrap.
			capacity = math.MaxUint64
			break
		}
		capacity *= uint64(s.growth)
	}
	return capacity, max(s.errorRate*math.Pow(s.ratio, float64(i)), math.SmallestNonzeroFloat64)
}

func (s *ScalableFilter) newShard(i int) *Filter {
	capacity, errorRate := s.shardParams(i)
	return newFilter(capacity, errorRate, s.hasher)
}

// Add adds data. It returns true, without changing anything, if some shard
// already reports data as present.
func (s *ScalableFilter) Add(data []byte) bool {
	h1, h2 := s.hasher.sum(data)
	return s.shards.addWithHash(h1, h2, s.newShard)
}

// AddString adds a string without allocating.
func (s *ScalableFilter) AddString(str string) bool {
	h1, h2 := s.hasher.sumString(str)
	return s.shards.addWithHash(h1, h2, s.newShard)
}

// AddUint64 adds an integer, encoded as 8 little-endian bytes.
func (s *ScalableFilter) AddUint64(v uint64) bool {
	buf := uint64Bytes(v)
	return s.Add(buf[:])
}

// AddInt64 adds a signed integer using the same encoding as AddUint64.
func (s *ScalableFilter) AddInt64(v int64) bool {
	return s.AddUint64(uint64(v))
}

// AddItem adds any value that can encode itself to bytes.
func (s *ScalableFilter) AddItem(v encoding.BinaryMarshaler) (bool, error) {
	data, err := v.MarshalBinary()
	if err != nil {
		return false, errors.Wrap(err, "dynbloom: encode item")
	}
	return s.Add(data), nil
}

// Test reports whether any shard might contain data.
func (s *ScalableFilter) Test(data []byte) bool {
	h1, h2 := s.hasher.sum(data)
	return s.shards.testWithHash(h1, h2)
}

// TestString checks a string without allocating.
func (s *ScalableFilter) TestString(str string) bool {
	h1, h2 := s.hasher.sumString(str)
	return s.shards.testWithHash(h1, h2)
}

// TestUint64 checks an integer added with AddUint64.
func (s *ScalableFilter) TestUint64(v uint64) bool {
	buf := uint64Bytes(v)
	return s.Test(buf[:])
}

// TestInt64 checks an integer added with AddInt64.
func (s *ScalableFilter) TestInt64(v int64) bool {
	return s.TestUint64(uint64(v))
}

// TestItem checks a value added with AddItem.
func (s *ScalableFilter) TestItem(v encoding.BinaryMarshaler) (bool, error) {
	data, err := v.MarshalBinary()
	if err != nil {
		return false, errors.Wrap(err, "dynbloom: encode item")
	}
	return s.Test(data), nil
}

// Contains is an alias for Test.
func (s *ScalableFilter) Contains(data []byte) bool {
	return s.Test(data)
}

// Compatible returns an ErrIncompatibleFilter error unless other shares the
// whole growth schedule: initial capacity, error rate, ratio, growth and hasher.
func (s *ScalableFilter) Compatible(other *ScalableFilter) error {
	if s.config() != other.config() {
		return errors.Wrapf(ErrIncompatibleFilter,
			"schedule (capacity %d, error rate %v, ratio %v, growth %s, hasher %s) vs (capacity %d, error rate %v, ratio %v, growth %s, hasher %s)",
			s.initialCapacity, s.errorRate, s.ratio, s.growth, s.hasher,
			other.initialCapacity, other.errorRate, other.ratio, other.growth, other.hasher)
	}
	return nil
}

// Union returns a new filter whose shards are the pairwise union of s's and
// other's. When shard counts differ, the missing shards of the shorter
// operand are treated as empty, so the result has as many shards as the
// longer one.
func (s *ScalableFilter) Union(other *ScalableFilter) (*ScalableFilter, error) {
	if err := s.Compatible(other); err != nil {
		return nil, err
	}
	shards, err := s.shards.union(other.shards)
	if err != nil {
		return nil, err
	}
	out := newScalable(s.config())
	out.shards = shards
	return out, nil
}

// Intersection returns a new filter whose shards are the pairwise
// intersection of s's and other's. Shards present in only one operand are
// dropped.
func (s *ScalableFilter) Intersection(other *ScalableFilter) (*ScalableFilter, error) {
	if err := s.Compatible(other); err != nil {
		return nil, err
	}
	shards, err := s.shards.intersection(other.shards)
	if err != nil {
		return nil, err
	}
	out := newScalable(s.config())
	out.shards = shards
	return out, nil
}

// Clone returns an independent copy of the filter.
func (s *ScalableFilter) Clone() *ScalableFilter {
	out := newScalable(s.config())
	out.shards = s.shards.clone()
	return out
}

// Count returns the approximate number of items added: the sum of shard counts.
func (s *ScalableFilter) Count() uint64 {
	return s.shards.count()
}

// Capacity returns the sum of shard capacities.
func (s *ScalableFilter) Capacity() uint64 {
	return s.shards.capacity()
}

// NumShards returns the number of shards.
func (s *ScalableFilter) NumShards() int {
	return len(s.shards)
}

// Shards describes every shard, oldest first.
func (s *ScalableFilter) Shards() []ShardInfo {
	return s.shards.info()
}

// InitialCapacity returns the capacity of the first shard.
func (s *ScalableFilter) InitialCapacity() uint64 {
	return s.initialCapacity
}

// ErrorRate returns the error rate of the first shard.
func (s *ScalableFilter) ErrorRate() float64 {
	return s.errorRate
}

// Ratio returns the error rate tightening factor.
func (s *ScalableFilter) Ratio() float64 {
	return s.ratio
}

// Growth returns the capacity growth mode.
func (s *ScalableFilter) Growth() Growth {
	return s.growth
}

// Hasher returns the base hash function.
func (s *ScalableFilter) Hasher() Hasher {
	return s.hasher
}

// ErrorBound returns the limit errorRate / (1 - ratio) of the aggregate
// false positive probability.
func (s *ScalableFilter) ErrorBound() float64 {
	return ScalableErrorBound(s.errorRate, s.ratio)
}
