package dynbloom

import (
	"encoding"
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
)

// The text form is the standard base64 encoding of the binary form.

// MarshalText returns the text form of the filter.
func (f *Filter) MarshalText() ([]byte, error) {
	return marshalText(f)
}

// Text returns the text form of the filter as a string.
func (f *Filter) Text() string {
	text, _ := f.MarshalText()
	return string(text)
}

// MarshalText returns the text form of the filter.
func (s *ScalableFilter) MarshalText() ([]byte, error) {
	return marshalText(s)
}

// Text returns the text form of the filter as a string.
func (s *ScalableFilter) Text() string {
	text, _ := s.MarshalText()
	return string(text)
}

// MarshalText returns the text form of the filter.
func (d *DynamicFilter) MarshalText() ([]byte, error) {
	return marshalText(d)
}

// Text returns the text form of the filter as a string.
func (d *DynamicFilter) Text() string {
	text, _ := d.MarshalText()
	return string(text)
}

// ParseFilter decodes a Filter from its text form.
func ParseFilter(text string) (*Filter, error) {
	return parseText(text, UnmarshalBinary)
}

// ParseScalable decodes a ScalableFilter from its text form.
func ParseScalable(text string) (*ScalableFilter, error) {
	return parseText(text, UnmarshalScalable)
}

// ParseDynamic decodes a DynamicFilter from its text form.
func ParseDynamic(text string) (*DynamicFilter, error) {
	return parseText(text, UnmarshalDynamic)
}

func marshalText(m encoding.BinaryMarshaler) ([]byte, error) {
	data, err := m.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(out, data)
	return out, nil
}

func parseText[T any](text string, unmarshal func([]byte) (T, error)) (T, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
	if err != nil {
		var zero T
		return zero, errors.Wrapf(ErrCorruptData, "text form: %v", err)
	}
	return unmarshal(data)
}
