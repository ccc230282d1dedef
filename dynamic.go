package dynbloom

import (
	"encoding"

	"github.com/pkg/errors"
)

// DynamicFilter is a dynamic bloom filter: a list of shards that all have
// the same capacity and error rate. When the last shard is full a new one
// is appended. Unlike ScalableFilter neither the capacity nor the error
// rate of new shards changes, so the aggregate false positive rate grows
// roughly linearly with the number of shards.
//
// A DynamicFilter is not safe for concurrent use; see Locked.
type DynamicFilter struct {
	baseCapacity uint64
	errorRate    float64
	hasher       Hasher
	shards       shardSet
}

// NewDynamic creates a DynamicFilter. Without options every shard holds
// DefaultBaseCapacity items at DefaultErrorRate.
func NewDynamic(opts ...DynamicOption) (*DynamicFilter, error) {
	cfg := dynamicConfig{
		baseCapacity: DefaultBaseCapacity,
		errorRate:    DefaultErrorRate,
		hasher:       HasherXXH3,
	}
	for _, o := range opts {
		o.applyDynamic(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	d := newDynamic(cfg)
	d.shards = shardSet{d.newShard(0)}
	return d, nil
}

func (c dynamicConfig) validate() error {
	if err := validateParams(c.baseCapacity, c.errorRate); err != nil {
		return err
	}
	if !c.hasher.valid() {
		return errors.Wrapf(ErrInvalidParameter, "unknown hasher %d", c.hasher)
	}
	return nil
}

func newDynamic(cfg dynamicConfig) *DynamicFilter {
	return &DynamicFilter{
		baseCapacity: cfg.baseCapacity,
		errorRate:    cfg.errorRate,
		hasher:       cfg.hasher,
	}
}

func (d *DynamicFilter) config() dynamicConfig {
	return dynamicConfig{
		baseCapacity: d.baseCapacity,
		errorRate:    d.errorRate,
		hasher:       d.hasher,
	}
}

func (d *DynamicFilter) newShard(int) *Filter {
	return newFilter(d.baseCapacity, d.errorRate, d.hasher)
}

// Add adds data. It returns true, without changing anything, if some shard
// already reports data as present.
func (d *DynamicFilter) Add(data []byte) bool {
	h1, h2 := d.hasher.sum(data)
	return d.shards.addWithHash(h1, h2, d.newShard)
}

// AddString adds a string without allocating.
func (d *DynamicFilter) AddString(s string) bool {
	h1, h2 := d.hasher.sumString(s)
	return d.shards.addWithHash(h1, h2, d.newShard)
}

// AddUint64 adds an integer, encoded as 8 little-endian bytes.
func (d *DynamicFilter) AddUint64(v uint64) bool {
	buf := uint64Bytes(v)
	return d.Add(buf[:])
}

// AddInt64 adds a signed integer using the same encoding as AddUint64.
func (d *DynamicFilter) AddInt64(v int64) bool {
	return d.AddUint64(uint64(v))
}

// AddItem adds any value that can encode itself to bytes.
func (d *DynamicFilter) AddItem(v encoding.BinaryMarshaler) (bool, error) {
	data, err := v.MarshalBinary()
	if err != nil {
		return false, errors.Wrap(err, "dynbloom: encode item")
	}
	return d.Add(data), nil
}

// Test reports whether any shard might contain data.
func (d *DynamicFilter) Test(data []byte) bool {
	h1, h2 := d.hasher.sum(data)
	return d.shards.testWithHash(h1, h2)
}

// TestString checks a string without allocating.
func (d *DynamicFilter) TestString(s string) bool {
	h1, h2 := d.hasher.sumString(s)
	return d.shards.testWithHash(h1, h2)
}

// TestUint64 checks an integer added with AddUint64.
func (d *DynamicFilter) TestUint64(v uint64) bool {
	buf := uint64Bytes(v)
	return d.Test(buf[:])
}

// TestInt64 checks an integer added with AddInt64.
func (d *DynamicFilter) TestInt64(v int64) bool {
	return d.TestUint64(uint64(v))
}

// TestItem checks a value added with AddItem.
func (d *DynamicFilter) TestItem(v encoding.BinaryMarshaler) (bool, error) {
	data, err := v.MarshalBinary()
	if err != nil {
		return false, errors.Wrap(err, "dynbloom: encode item")
	}
	return d.Test(data), nil
}

// Contains is an alias for Test.
func (d *DynamicFilter) Contains(data []byte) bool {
	return d.Test(data)
}

// Compatible returns an ErrIncompatibleFilter error unless other has the
// same base capacity, error rate and hasher.
func (d *DynamicFilter) Compatible(other *DynamicFilter) error {
	if d.config() != other.config() {
		return errors.Wrapf(ErrIncompatibleFilter,
			"base capacity %d vs %d, error rate %v vs %v, hasher %s vs %s",
			d.baseCapacity, other.baseCapacity, d.errorRate, other.errorRate, d.hasher, other.hasher)
	}
	return nil
}

// Union returns the shard-wise union of d and other. The shorter operand's
// missing shards are treated as empty.
func (d *DynamicFilter) Union(other *DynamicFilter) (*DynamicFilter, error) {
	if err := d.Compatible(other); err != nil {
		return nil, err
	}
	shards, err := d.shards.union(other.shards)
	if err != nil {
		return nil, err
	}
	out := newDynamic(d.config())
	out.shards = shards
	return out, nil
}

// Intersection returns the shard-wise intersection of d and other. Shards
// present in only one operand are dropped.
//
// Items are only kept when both operands stored them in the same shard
// position, which holds when both were filled in the same order.
func (d *DynamicFilter) Intersection(other *DynamicFilter) (*DynamicFilter, error) {
	if err := d.Compatible(other); err != nil {
		return nil, err
	}
	shards, err := d.shards.intersection(other.shards)
	if err != nil {
		return nil, err
	}
	out := newDynamic(d.config())
	out.shards = shards
	return out, nil
}

// Clone returns an independent copy of the filter.
func (d *DynamicFilter) Clone() *DynamicFilter {
	out := newDynamic(d.config())
	out.shards = d.shards.clone()
	return out
}

// Count returns the approximate number of items added: the sum of shard counts.
func (d *DynamicFilter) Count() uint64 {
	return d.shards.count()
}

// Capacity returns the sum of shard capacities.
func (d *DynamicFilter) Capacity() uint64 {
	return d.shards.capacity()
}

// NumShards returns the number of shards.
func (d *DynamicFilter) NumShards() int {
	return len(d.shards)
}

// Shards describes every shard, oldest first.
func (d *DynamicFilter) Shards() []ShardInfo {
	return d.shards.info()
}

// BaseCapacity returns the capacity of every shard.
func (d *DynamicFilter) BaseCapacity() uint64 {
	return d.baseCapacity
}

// ErrorRate returns the error rate of every shard.
func (d *DynamicFilter) ErrorRate() float64 {
	return d.errorRate
}

// Hasher returns the base hash function.
func (d *DynamicFilter) Hasher() Hasher {
	return d.hasher
}
