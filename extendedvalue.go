package srtc

// ExtendedValue extends a sequential 16- or 32-bit wire value (RTP SEQ,
// RTP timestamp) to a monotonically increasing 64-bit value across
// rollovers. Grounded on original_source/include/srtc/extended_value.h
// and src/extended_value.cpp's templated ExtendedValue<T>; Go has no
// template instantiation so Width selects the wrapped type's bit size
// (16 for RTP SEQ, 32 for RTP timestamps).
type ExtendedValue struct {
	width     uint
	increment uint64
	max       uint64
	margin    uint64

	rollover uint64
	last     uint64
	hasLast  bool
}

// NewExtendedValue16 builds an ExtendedValue over a 16-bit wire field.
func NewExtendedValue16() *ExtendedValue {
	return newExtendedValue(16)
}

// NewExtendedValue32 builds an ExtendedValue over a 32-bit wire field.
func NewExtendedValue32() *ExtendedValue {
	return newExtendedValue(32)
}

func newExtendedValue(width uint) *ExtendedValue {
	max := (uint64(1) << width) - 1
	return &ExtendedValue{
		width:     width,
		increment: max + 1,
		max:       max,
		margin:    max / 10,
		rollover:  max + 1,
	}
}

// Extend feeds in the next raw wire value and returns the extended
// 64-bit value, handling rollover in either direction per the original's
// hysteresis rule.
func (e *ExtendedValue) Extend(src uint64) uint64 {
	src &= e.max

	if !e.hasLast {
		e.last = src
		e.hasLast = true
		return e.rollover | src
	}

	switch {
	case e.last >= e.max-e.margin && src <= e.margin:
		e.rollover += e.increment
		e.last = src
		return e.rollover | src
	case e.last <= e.margin && src >= e.max-e.margin:
		return (e.rollover - e.increment) | src
	default:
		e.last = src
		return e.rollover | src
	}
}

// Get returns the most recently extended value, if any.
func (e *ExtendedValue) Get() (uint64, bool) {
	if !e.hasLast {
		return 0, false
	}
	return e.rollover | e.last, true
}
