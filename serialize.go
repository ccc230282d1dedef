package dynbloom

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// Serialization constants.
const (
	// serializeVersion is the current serialization format version.
	serializeVersion byte = 1

	kindFilter   byte = 1
	kindScalable byte = 2
	kindDynamic  byte = 3

	// prefixSize is Version (1) + Kind (1) + Hasher (1).
	prefixSize = 3
	// shardHeaderSize is Capacity (8) + ErrorRate (8) + NumBits (8) + NumHashes (4) + Count (8).
	shardHeaderSize = 36
	// shardCountSize is the uint32 shard count of growable filters.
	shardCountSize = 4
	// checksumSize is the trailing xxhash64.
	checksumSize = 8

	// maxShards bounds the declared shard count of growable filters.
	maxShards = 1 << 16
)

// The serialized format is little-endian throughout:
//
//   - Version (1 byte): serialization format version
//   - Kind (1 byte): 1 Filter, 2 ScalableFilter, 3 DynamicFilter
//   - Hasher (1 byte)
//   - Kind parameters:
//     ScalableFilter: InitialCapacity (u64), ErrorRate (f64), Ratio (f64), Growth (u8)
//     DynamicFilter: BaseCapacity (u64), ErrorRate (f64)
//   - ShardCount (u32), growable kinds only; a Filter is exactly one shard
//   - ShardCount shard headers: Capacity (u64), ErrorRate (f64), NumBits (u64),
//     NumHashes (u32), Count (u64)
//   - ShardCount bit arrays, ceil(NumBits/8) bytes each, bit j in bit j%8 of byte j/8
//   - Checksum (u64): xxhash64 of every preceding byte
//
// Float fields are IEEE 754 bit patterns. NumBits and NumHashes must equal
// the values derived from the shard's (Capacity, ErrorRate).

type encoder struct {
	buf []byte
}

func newEncoder(size int) *encoder {
	return &encoder{buf: make([]byte, 0, size)}
}

func (e *encoder) u8(v byte)      { e.buf = append(e.buf, v) }
func (e *encoder) u32(v uint32)   { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }
func (e *encoder) u64(v uint64)   { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }
func (e *encoder) f64(v float64)  { e.u64(math.Float64bits(v)) }
func (e *encoder) bytes(b []byte) { e.buf = append(e.buf, b...) }

func (e *encoder) prefix(kind byte, h Hasher) {
	e.u8(serializeVersion)
	e.u8(kind)
	e.u8(byte(h))
}

func (e *encoder) shards(s shardSet) {
	for _, sh := range s {
		e.u64(sh.capacity)
		e.f64(sh.errorRate)
		e.u64(sh.numBits)
		e.u32(sh.numHashes)
		e.u64(sh.count)
	}
	for _, sh := range s {
		e.bytes(sh.bits.Bytes())
	}
}

func (e *encoder) finish() []byte {
	return binary.LittleEndian.AppendUint64(e.buf, xxhash.Sum64(e.buf))
}

// shardsSize is the encoded size of the shard headers and bit arrays.
func shardsSize(s shardSet) int {
	size := 0
	for _, sh := range s {
		size += shardHeaderSize + int(byteLen(sh.numBits))
	}
	return size
}

// MarshalBinary serializes the filter to a byte slice.
func (f *Filter) MarshalBinary() ([]byte, error) {
	shards := shardSet{f}
	e := newEncoder(prefixSize + shardsSize(shards) + checksumSize)
	e.prefix(kindFilter, f.hasher)
	e.shards(shards)
	return e.finish(), nil
}

// MarshalBinary serializes the filter and all of its shards to a byte slice.
func (s *ScalableFilter) MarshalBinary() ([]byte, error) {
	e := newEncoder(prefixSize + 8 + 8 + 8 + 1 + shardCountSize + shardsSize(s.shards) + checksumSize)
	e.prefix(kindScalable, s.hasher)
	e.u64(s.initialCapacity)
	e.f64(s.errorRate)
	e.f64(s.ratio)
	e.u8(byte(s.growth))
	e.u32(uint32(len(s.shards)))
	e.shards(s.shards)
	return e.finish(), nil
}

// MarshalBinary serializes the filter and all of its shards to a byte slice.
func (d *DynamicFilter) MarshalBinary() ([]byte, error) {
	e := newEncoder(prefixSize + 8 + 8 + shardCountSize + shardsSize(d.shards) + checksumSize)
	e.prefix(kindDynamic, d.hasher)
	e.u64(d.baseCapacity)
	e.f64(d.errorRate)
	e.u32(uint32(len(d.shards)))
	e.shards(d.shards)
	return e.finish(), nil
}

// WriteTo writes the serialized filter to w.
func (f *Filter) WriteTo(w io.Writer) (int64, error) {
	return writeTo(w, f)
}

// WriteTo writes the serialized filter to w.
func (s *ScalableFilter) WriteTo(w io.Writer) (int64, error) {
	return writeTo(w, s)
}

// WriteTo writes the serialized filter to w.
func (d *DynamicFilter) WriteTo(w io.Writer) (int64, error) {
	return writeTo(w, d)
}

func writeTo(w io.Writer, m interface{ MarshalBinary() ([]byte, error) }) (int64, error) {
	data, err := m.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), errors.Wrap(err, "dynbloom: write filter")
}

// decoder reads one serialized filter, hashing everything it consumes for
// the trailing checksum. The first failure sticks; later reads are no-ops.
type decoder struct {
	r      io.Reader
	digest *xxhash.Digest
	buf    [8]byte
	err    error
}

func newDecoder(r io.Reader) *decoder {
	return &decoder{r: r, digest: xxhash.New()}
}

func (d *decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *decoder) fixed(n int, what string) []byte {
	b := d.buf[:n]
	if d.err != nil {
		clear(b)
		return b
	}
	if _, err := io.ReadFull(d.r, b); err != nil {
		clear(b)
		d.fail(errors.Wrapf(ErrCorruptData, "reading %s: %v", what, err))
		return b
	}
	_, _ = d.digest.Write(b)
	return b
}

func (d *decoder) u8(what string) byte     { return d.fixed(1, what)[0] }
func (d *decoder) u32(what string) uint32  { return binary.LittleEndian.Uint32(d.fixed(4, what)) }
func (d *decoder) u64(what string) uint64  { return binary.LittleEndian.Uint64(d.fixed(8, what)) }
func (d *decoder) f64(what string) float64 { return math.Float64frombits(d.u64(what)) }

// bytes reads n bytes. The buffer grows with the data actually read, so a
// bogus length on a short stream fails without a huge allocation.
func (d *decoder) bytes(n uint64, what string) []byte {
	if d.err != nil {
		return nil
	}
	var buf bytes.Buffer
	buf.Grow(int(min(n, 1<<20)))
	if _, err := io.CopyN(&buf, d.r, int64(n)); err != nil {
		d.fail(errors.Wrapf(ErrCorruptData, "reading %s (%d bytes): %v", what, n, err))
		return nil
	}
	_, _ = d.digest.Write(buf.Bytes())
	return buf.Bytes()
}

// prefix reads and checks the version, kind and hasher.
func (d *decoder) prefix(kind byte) Hasher {
	version := d.u8("version")
	gotKind := d.u8("kind")
	h := Hasher(d.u8("hasher"))
	if d.err != nil {
		return 0
	}

	switch {
	case version != serializeVersion:
		d.fail(errors.Wrapf(ErrUnsupportedVersion, "got version %d, expected %d", version, serializeVersion))
	case gotKind != kind:
		d.fail(errors.Wrapf(ErrCorruptData, "filter kind %d, expected %d", gotKind, kind))
	case !h.valid():
		d.fail(errors.Wrapf(ErrCorruptData, "unknown hasher %d", h))
	}
	return h
}

func (d *decoder) shardCount() int {
	n := d.u32("shard count")
	if d.err != nil {
		return 0
	}
	if n == 0 || n > maxShards {
		d.fail(errors.Wrapf(ErrCorruptData, "shard count %d outside [1, %d]", n, maxShards))
		return 0
	}
	return int(n)
}

type shardHeader struct {
	capacity  uint64
	errorRate float64
	numBits   uint64
	numHashes uint32
	count     uint64
}

func (d *decoder) shardHeader(i int) shardHeader {
	h := shardHeader{
		capacity:  d.u64("shard capacity"),
		errorRate: d.f64("shard error rate"),
		numBits:   d.u64("shard bit count"),
		numHashes: d.u32("shard hash count"),
		count:     d.u64("shard item count"),
	}
	if d.err != nil {
		return h
	}

	if err := validateParams(h.capacity, h.errorRate); err != nil {
		d.fail(errors.Wrapf(ErrCorruptData, "shard %d: %v", i, err))
		return h
	}
	if h.numBits == 0 || h.numBits > maxNumBits {
		d.fail(errors.Wrapf(ErrCorruptData, "shard %d: bit count %d outside [1, %d]", i, h.numBits, maxNumBits))
		return h
	}
	if numBits, numHashes := OptimalParams(h.capacity, h.errorRate); numBits != h.numBits || numHashes != h.numHashes {
		d.fail(errors.Wrapf(ErrCorruptData, "shard %d: sizes (%d bits, %d hashes) do not match capacity %d at error rate %v (%d bits, %d hashes)",
			i, h.numBits, h.numHashes, h.capacity, h.errorRate, numBits, numHashes))
	}
	return h
}

// shards reads n shard headers and then their bit arrays. check, if set,
// validates each header against the container's parameters.
func (d *decoder) shards(n int, hasher Hasher, check func(i int, h shardHeader) error) shardSet {
	if d.err != nil {
		return nil
	}

	headers := make([]shardHeader, 0, min(n, 64))
	for i := range n {
		h := d.shardHeader(i)
		if d.err != nil {
			return nil
		}
		if check != nil {
			if err := check(i, h); err != nil {
				d.fail(err)
				return nil
			}
		}
		headers = append(headers, h)
	}

	out := make(shardSet, 0, len(headers))
	for _, h := range headers {
		data := d.bytes(byteLen(h.numBits), "shard bits")
		if d.err != nil {
			return nil
		}
		bits, err := BitArrayFromBytes(h.numBits, data)
		if err != nil {
			d.fail(err)
			return nil
		}
		out = append(out, &Filter{
			capacity:  h.capacity,
			errorRate: h.errorRate,
			numBits:   h.numBits,
			numHashes: h.numHashes,
			hasher:    hasher,
			bits:      bits,
			count:     h.count,
		})
	}
	return out
}

func (d *decoder) checksum() {
	if d.err != nil {
		return
	}
	want := d.digest.Sum64()
	if _, err := io.ReadFull(d.r, d.buf[:checksumSize]); err != nil {
		d.fail(errors.Wrapf(ErrCorruptData, "reading checksum: %v", err))
		return
	}
	if got := binary.LittleEndian.Uint64(d.buf[:checksumSize]); got != want {
		d.fail(errors.Wrapf(ErrCorruptData, "checksum mismatch (got %#x, want %#x)", got, want))
	}
}

// ReadFilter reads exactly one serialized Filter from r.
func ReadFilter(r io.Reader) (*Filter, error) {
	d := newDecoder(r)
	hasher := d.prefix(kindFilter)
	shards := d.shards(1, hasher, nil)
	d.checksum()
	if d.err != nil {
		return nil, d.err
	}
	return shards[0], nil
}

// ReadScalable reads exactly one serialized ScalableFilter from r.
func ReadScalable(r io.Reader) (*ScalableFilter, error) {
	d := newDecoder(r)
	cfg := scalableConfig{hasher: d.prefix(kindScalable)}
	cfg.initialCapacity = d.u64("initial capacity")
	cfg.errorRate = d.f64("error rate")
	cfg.ratio = d.f64("ratio")
	cfg.growth = Growth(d.u8("growth"))
	if d.err == nil {
		if err := cfg.validate(); err != nil {
			d.fail(errors.Wrapf(ErrCorruptData, "scalable parameters: %v", err))
		}
	}

	s := newScalable(cfg)
	n := d.shardCount()
	shards := d.shards(n, cfg.hasher, func(i int, h shardHeader) error {
		if capacity, errorRate := s.shardParams(i); h.capacity != capacity || h.errorRate != errorRate {
			return errors.Wrapf(ErrCorruptData, "shard %d (capacity %d, error rate %v) off the growth schedule (capacity %d, error rate %v)",
				i, h.capacity, h.errorRate, capacity, errorRate)
		}
		return nil
	})
	d.checksum()
	if d.err != nil {
		return nil, d.err
	}
	s.shards = shards
	return s, nil
}

// ReadDynamic reads exactly one serialized DynamicFilter from r.
func ReadDynamic(r io.Reader) (*DynamicFilter, error) {
	d := newDecoder(r)
	cfg := dynamicConfig{hasher: d.prefix(kindDynamic)}
	cfg.baseCapacity = d.u64("base capacity")
	cfg.errorRate = d.f64("error rate")
	if d.err == nil {
		if err := cfg.validate(); err != nil {
			d.fail(errors.Wrapf(ErrCorruptData, "dynamic parameters: %v", err))
		}
	}

	n := d.shardCount()
	shards := d.shards(n, cfg.hasher, func(i int, h shardHeader) error {
		if h.capacity != cfg.baseCapacity || h.errorRate != cfg.errorRate {
			return errors.Wrapf(ErrCorruptData, "shard %d (capacity %d, error rate %v) differs from base (capacity %d, error rate %v)",
				i, h.capacity, h.errorRate, cfg.baseCapacity, cfg.errorRate)
		}
		return nil
	})
	d.checksum()
	if d.err != nil {
		return nil, d.err
	}
	dyn := newDynamic(cfg)
	dyn.shards = shards
	return dyn, nil
}

// UnmarshalBinary deserializes a Filter from a byte slice.
// Returns an error if the data is invalid, corrupted or has trailing bytes.
func UnmarshalBinary(data []byte) (*Filter, error) {
	return unmarshal(data, ReadFilter)
}

// UnmarshalScalable deserializes a ScalableFilter from a byte slice.
func UnmarshalScalable(data []byte) (*ScalableFilter, error) {
	return unmarshal(data, ReadScalable)
}

// UnmarshalDynamic deserializes a DynamicFilter from a byte slice.
func UnmarshalDynamic(data []byte) (*DynamicFilter, error) {
	return unmarshal(data, ReadDynamic)
}

func unmarshal[T any](data []byte, read func(io.Reader) (T, error)) (T, error) {
	r := bytes.NewReader(data)
	v, err := read(r)
	if err != nil {
		var zero T
		return zero, err
	}
	if r.Len() != 0 {
		var zero T
		return zero, errors.Wrapf(ErrCorruptData, "%d trailing bytes", r.Len())
	}
	return v, nil
}
