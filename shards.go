package dynbloom

// shardSet is the append-only arena of shards behind ScalableFilter and
// DynamicFilter, oldest first. Shards are never removed or resized.
type shardSet []*Filter

// ShardInfo describes one shard of a growable filter.
type ShardInfo struct {
	Capacity  uint64
	ErrorRate float64
	NumBits   uint64
	NumHashes uint32
	Count     uint64
}

func (s shardSet) last() *Filter {
	return s[len(s)-1]
}

func (s shardSet) testWithHash(h1, h2 uint64) bool {
	for _, sh := range s {
		if sh.testWithHash(h1, h2) {
			return true
		}
	}
	return false
}

// addWithHash inserts into the last shard unless some shard already reports
// the item. next builds the shard to append once the last one is full.
func (s *shardSet) addWithHash(h1, h2 uint64, next func(i int) *Filter) bool {
	if s.testWithHash(h1, h2) {
		return true
	}
	if s.last().Full() {
		*s = append(*s, next(len(*s)))
	}
	s.last().addWithHash(h1, h2)
	return false
}

func (s shardSet) count() uint64 {
	var total uint64
	for _, sh := range s {
		total += sh.count
	}
	return total
}

func (s shardSet) capacity() uint64 {
	var total uint64
	for _, sh := range s {
		total += sh.capacity
	}
	return total
}

func (s shardSet) info() []ShardInfo {
	out := make([]ShardInfo, len(s))
	for i, sh := range s {
		out[i] = ShardInfo{
			Capacity:  sh.capacity,
			ErrorRate: sh.errorRate,
			NumBits:   sh.numBits,
			NumHashes: sh.numHashes,
			Count:     sh.count,
		}
	}
	return out
}

func (s shardSet) clone() shardSet {
	out := make(shardSet, len(s))
	for i, sh := range s {
		out[i] = sh.Clone()
	}
	return out
}

// union ORs shards pairwise. A shard missing from the shorter operand counts
// as empty, so the longer operand's extra shards are copied as they are.
func (s shardSet) union(other shardSet) (shardSet, error) {
	out := make(shardSet, 0, max(len(s), len(other)))
	for i := range max(len(s), len(other)) {
		switch {
		case i < len(s) && i < len(other):
			u, err := s[i].Union(other[i])
			if err != nil {
				return nil, err
			}
			out = append(out, u)
		case i < len(s):
			out = append(out, s[i].Clone())
		default:
			out = append(out, other[i].Clone())
		}
	}
	return out, nil
}

// intersection ANDs shards pairwise. Shards present in only one operand are
// dropped: their intersection with an absent shard is empty.
func (s shardSet) intersection(other shardSet) (shardSet, error) {
	out := make(shardSet, 0, min(len(s), len(other)))
	for i := range min(len(s), len(other)) {
		x, err := s[i].Intersection(other[i])
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}
