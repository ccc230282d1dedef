// Package dynbloom provides fixed-capacity and growable bloom filters for Go.
//
// A bloom filter is a space-efficient probabilistic data structure that tests
// whether an element is a member of a set. False positive matches are possible,
// but false negatives are not – if the filter says an element is not present,
// it definitely is not. If it says an element might be present, it could be a
// false positive.
//
// # Implementations
//
// [Filter] has a fixed capacity. Its bit array size m and hash count k are
// derived from the capacity n and target false positive rate p:
//
//	m = ceil(-n * ln(p) / ln(2)²)
//	k = round(m/n * ln(2))
//
// [ScalableFilter] grows without a fixed capacity. It starts with one shard
// and appends a new one each time the last is full. Shard capacities grow
// geometrically ([SmallSetGrowth] doubles, [LargeSetGrowth] quadruples) and
// shard i targets a false positive rate of p * ratio^i, which keeps the
// aggregate rate below p / (1 - ratio).
//
// [DynamicFilter] also appends shards, but every shard has the same capacity
// and error rate. Its aggregate false positive rate grows with the number of
// shards; use it when the set stays within a few multiples of the base
// capacity.
//
// # Hashing
//
// Each item is hashed twice with fixed distinct seeds, giving h1 and h2. The
// k bit positions are derived by double hashing:
//
//	index_i = (h1 + i*h2) mod m
//
// Only two hash evaluations are needed regardless of k. xxh3 is used by
// default; murmur3 is available through [WithHasher].
//
// # Set Algebra
//
// Union and Intersection return new filters and never modify their operands.
// Two Filters are compatible when their m, k and hasher match. Growable
// filters must share their whole construction schedule. When two growable
// filters have different numbers of shards, Union treats the missing shards
// as empty and Intersection drops them.
//
// Counts of results are estimates: a union counts every item of both
// operands, an intersection counts the smaller operand.
//
// # Serialization
//
// Every filter kind has a versioned little-endian binary form (MarshalBinary,
// WriteTo, UnmarshalBinary, ReadFilter and friends) ending in an xxhash64
// checksum, and a text form that is its base64 encoding (MarshalText, Text,
// ParseFilter and friends). Invalid input fails with [ErrCorruptData].
//
// # Thread Safety
//
// No filter is safe for concurrent use. Wrap it in [Locked] to share it
// between goroutines.
package dynbloom
