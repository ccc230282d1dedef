package dynbloom

import "github.com/pkg/errors"

var (
	// ErrInvalidParameter is returned by constructors and options when a
	// capacity, error rate, ratio, growth mode or hasher is out of range.
	ErrInvalidParameter = errors.New("dynbloom: invalid parameter")

	// ErrIncompatibleFilter is returned by Union and Intersection when the
	// operands were not built with the same sizing or growth schedule.
	ErrIncompatibleFilter = errors.New("dynbloom: incompatible filter")

	// ErrCorruptData is returned when serialized data is truncated, has an
	// inconsistent declared length, or fails validation.
	ErrCorruptData = errors.New("dynbloom: invalid serialized data")

	// ErrUnsupportedVersion is returned when the serialization version is not supported.
	ErrUnsupportedVersion = errors.New("dynbloom: unsupported serialization version")

	// ErrOutOfRange is returned for bit indices at or past the end of a BitArray.
	ErrOutOfRange = errors.New("dynbloom: bit index out of range")
)
