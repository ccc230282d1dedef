package dynbloom

// Option configures a Filter.
type Option interface {
	applyFilter(*filterConfig)
}

// ScalableOption configures a ScalableFilter.
type ScalableOption interface {
	applyScalable(*scalableConfig)
}

// DynamicOption configures a DynamicFilter.
type DynamicOption interface {
	applyDynamic(*dynamicConfig)
}

type filterConfig struct {
	hasher Hasher
}

type scalableConfig struct {
	initialCapacity uint64
	errorRate       float64
	ratio           float64
	growth          Growth
	hasher          Hasher
}

type dynamicConfig struct {
	baseCapacity uint64
	errorRate    float64
	hasher       Hasher
}

type hasherOption Hasher

// WithHasher selects the hash function. It applies to every filter kind.
func WithHasher(h Hasher) hasherOption {
	return hasherOption(h)
}

func (o hasherOption) applyFilter(c *filterConfig)     { c.hasher = Hasher(o) }
func (o hasherOption) applyScalable(c *scalableConfig) { c.hasher = Hasher(o) }
func (o hasherOption) applyDynamic(c *dynamicConfig)   { c.hasher = Hasher(o) }

type errorRateOption float64

// WithErrorRate sets the target false positive rate of a ScalableFilter's
// first shard, or of every DynamicFilter shard.
func WithErrorRate(p float64) errorRateOption {
	return errorRateOption(p)
}

func (o errorRateOption) applyScalable(c *scalableConfig) { c.errorRate = float64(o) }
func (o errorRateOption) applyDynamic(c *dynamicConfig)   { c.errorRate = float64(o) }

type scalableFunc func(*scalableConfig)

func (f scalableFunc) applyScalable(c *scalableConfig) { f(c) }

// WithInitialCapacity sets the capacity of a ScalableFilter's first shard.
func WithInitialCapacity(n uint64) ScalableOption {
	return scalableFunc(func(c *scalableConfig) { c.initialCapacity = n })
}

// WithRatio sets the error rate tightening factor applied to each new shard.
func WithRatio(r float64) ScalableOption {
	return scalableFunc(func(c *scalableConfig) { c.ratio = r })
}

// WithGrowth sets how fast shard capacities grow.
func WithGrowth(g Growth) ScalableOption {
	return scalableFunc(func(c *scalableConfig) { c.growth = g })
}

type dynamicFunc func(*dynamicConfig)

func (f dynamicFunc) applyDynamic(c *dynamicConfig) { f(c) }

// WithBaseCapacity sets the capacity of every DynamicFilter shard.
func WithBaseCapacity(n uint64) DynamicOption {
	return dynamicFunc(func(c *dynamicConfig) { c.baseCapacity = n })
}
