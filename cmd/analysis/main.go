// Command analysis measures the false positive rate of dynbloom filters
// empirically. It inserts -items keys into a filter, queries -queries keys that
// were never inserted, and compares the observed false positive rate with
// the configured one.
package main

import (
	"bytes"
	"encoding"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/jcalabro/dynbloom"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

type config struct {
	kind        string
	items       uint64
	queries     uint64
	errorRate   float64
	capacity    uint64
	ratio       float64
	largeGrowth bool
	hasher      string
	verify      bool
}

// filter is what every dynbloom filter kind offers the analysis.
type filter interface {
	dynbloom.Set
	encoding.BinaryMarshaler
	AddUint64(v uint64) bool
	TestUint64(v uint64) bool
	Text() string
}

func main() {
	var cfg config
	flag.StringVar(&cfg.kind, "kind", "scalable", "filter kind: filter, scalable or dynamic")
	flag.Uint64Var(&cfg.items, "items", 1_000_000, "number of keys to insert")
	flag.Uint64Var(&cfg.queries, "queries", 1_000_000, "number of absent keys to query")
	flag.Float64Var(&cfg.errorRate, "error-rate", dynbloom.DefaultErrorRate, "target false positive rate (of the first shard for scalable filters)")
	flag.Uint64Var(&cfg.capacity, "capacity", 0, "filter capacity, initial shard capacity or base shard capacity (0 picks a default)")
	flag.Float64Var(&cfg.ratio, "ratio", dynbloom.DefaultRatio, "error rate tightening ratio of scalable filters")
	flag.BoolVar(&cfg.largeGrowth, "large-growth", false, "quadruple scalable shard capacity instead of doubling it")
	flag.StringVar(&cfg.hasher, "hasher", dynbloom.HasherXXH3.String(), "hash function: xxh3 or murmur3")
	flag.BoolVar(&cfg.verify, "verify", true, "round-trip the filter through its binary and text forms")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(logger, cfg); err != nil {
		logger.Error("analysis failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(log *zap.Logger, cfg config) error {
	f, err := build(cfg)
	if err != nil {
		return err
	}
	log.Info("created filter",
		zap.String("kind", cfg.kind),
		zap.String("hasher", cfg.hasher),
		zap.Float64("error_rate", cfg.errorRate),
	)

	start := time.Now()
	var duplicates uint64
	bar := progressbar.Default(int64(cfg.items), "inserting")
	for i := range cfg.items {
		if f.AddUint64(i) {
			duplicates++
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	log.Info("inserted keys",
		zap.Uint64("items", cfg.items),
		zap.Uint64("count", f.Count()),
		zap.Uint64("reported_present", duplicates),
		zap.Duration("elapsed", time.Since(start)),
	)

	start = time.Now()
	var falsePositives uint64
	bar = progressbar.Default(int64(cfg.queries), "querying")
	for i := range cfg.queries {
		if f.TestUint64(cfg.items + i) {
			falsePositives++
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	observed := 0.0
	if cfg.queries > 0 {
		observed = float64(falsePositives) / float64(cfg.queries)
	}
	log.Info("queried absent keys",
		zap.Uint64("queries", cfg.queries),
		zap.Uint64("false_positives", falsePositives),
		zap.Float64("observed_rate", observed),
		zap.Float64("configured_rate", configuredRate(f)),
		zap.Duration("elapsed", time.Since(start)),
	)

	logLayout(log, f)

	data, err := f.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "encode filter")
	}
	text := f.Text()
	log.Info("encoded filter",
		zap.Int("binary_bytes", len(data)),
		zap.Int("text_bytes", len(text)),
		zap.Float64("bits_per_item", float64(len(data)*8)/float64(max(cfg.items, 1))),
	)

	if !cfg.verify {
		return nil
	}
	return verify(log, f, data, text, cfg.items)
}

func build(cfg config) (filter, error) {
	h, err := dynbloom.ParseHasher(cfg.hasher)
	if err != nil {
		return nil, err
	}

	switch cfg.kind {
	case "filter":
		capacity := cfg.capacity
		if capacity == 0 {
			capacity = max(cfg.items, 1)
		}
		return dynbloom.New(capacity, cfg.errorRate, dynbloom.WithHasher(h))
	case "scalable":
		growth := dynbloom.SmallSetGrowth
		if cfg.largeGrowth {
			growth = dynbloom.LargeSetGrowth
		}
		opts := []dynbloom.ScalableOption{
			dynbloom.WithErrorRate(cfg.errorRate),
			dynbloom.WithRatio(cfg.ratio),
			dynbloom.WithGrowth(growth),
			dynbloom.WithHasher(h),
		}
		if cfg.capacity != 0 {
			opts = append(opts, dynbloom.WithInitialCapacity(cfg.capacity))
		}
		return dynbloom.NewScalable(opts...)
	case "dynamic":
		opts := []dynbloom.DynamicOption{
			dynbloom.WithErrorRate(cfg.errorRate),
			dynbloom.WithHasher(h),
		}
		if cfg.capacity != 0 {
			opts = append(opts, dynbloom.WithBaseCapacity(cfg.capacity))
		}
		return dynbloom.NewDynamic(opts...)
	default:
		return nil, errors.Wrapf(dynbloom.ErrInvalidParameter, "unknown filter kind %q", cfg.kind)
	}
}

// configuredRate is the false positive rate the filter's parameters promise
// at its current size.
func configuredRate(f filter) float64 {
	switch f := f.(type) {
	case *dynbloom.Filter:
		return f.ErrorRate()
	case *dynbloom.ScalableFilter:
		return f.ErrorBound()
	case *dynbloom.DynamicFilter:
		// Shards fail independently.
		return 1 - math.Pow(1-f.ErrorRate(), float64(f.NumShards()))
	default:
		return 0
	}
}

func logLayout(log *zap.Logger, f filter) {
	var shards []dynbloom.ShardInfo
	switch f := f.(type) {
	case *dynbloom.ScalableFilter:
		shards = f.Shards()
	case *dynbloom.DynamicFilter:
		shards = f.Shards()
	case *dynbloom.Filter:
		log.Info("filter layout",
			zap.Uint64("capacity", f.Capacity()),
			zap.Uint64("num_bits", f.NumBits()),
			zap.Uint32("num_hashes", f.K()),
			zap.Float64("fill_ratio", f.EstimatedFillRatio()),
			zap.Float64("estimated_rate", f.EstimatedFalsePositiveRate()),
		)
		return
	}

	for i, sh := range shards {
		log.Info("shard layout",
			zap.Int("shard", i),
			zap.Uint64("capacity", sh.Capacity),
			zap.Float64("error_rate", sh.ErrorRate),
			zap.Uint64("num_bits", sh.NumBits),
			zap.Uint32("num_hashes", sh.NumHashes),
			zap.Uint64("count", sh.Count),
		)
	}
}

// verify decodes both encoded forms and checks that they reproduce the
// filter exactly and still contain every inserted key.
func verify(log *zap.Logger, f filter, data []byte, text string, items uint64) error {
	var fromBinary, fromText filter
	var err error
	switch f.(type) {
	case *dynbloom.Filter:
		if fromBinary, err = dynbloom.UnmarshalBinary(data); err == nil {
			fromText, err = dynbloom.ParseFilter(text)
		}
	case *dynbloom.ScalableFilter:
		if fromBinary, err = dynbloom.UnmarshalScalable(data); err == nil {
			fromText, err = dynbloom.ParseScalable(text)
		}
	case *dynbloom.DynamicFilter:
		if fromBinary, err = dynbloom.UnmarshalDynamic(data); err == nil {
			fromText, err = dynbloom.ParseDynamic(text)
		}
	}
	if err != nil {
		return errors.Wrap(err, "decode filter")
	}

	for name, g := range map[string]filter{"binary": fromBinary, "text": fromText} {
		again, err := g.MarshalBinary()
		if err != nil {
			return errors.Wrapf(err, "re-encode %s form", name)
		}
		if !bytes.Equal(data, again) {
			return errors.Errorf("%s form does not reproduce the filter", name)
		}

		bar := progressbar.Default(int64(items), "verifying "+name)
		for i := range items {
			if !g.TestUint64(i) {
				return errors.Errorf("%s form lost key %d", name, i)
			}
			_ = bar.Add(1)
		}
		_ = bar.Finish()
	}

	log.Info("verified round trip", zap.Uint64("keys", items))
	return nil
}
