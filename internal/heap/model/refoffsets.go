package model

import "math/bits"

// RefOffsets is a class's reference-offset descriptor: a 32-bit bitmap in
// which bit i, counted from the high bit, marks a reference-typed slot at
// base + i*pointerSize. A class whose reference layout cannot be bit-packed
// carries the WalkSuper sentinel instead and is enumerated the slow way,
// through its declared field metadata.
type RefOffsets uint32

// WalkSuper means "no bitmap available, walk the hierarchy". The linker
// guarantees no real bitmap ever equals this value: reference fields are
// packed at the front of each class's layout, and any packed value that
// would collide is demoted to the sentinel outright.
const WalkSuper RefOffsets = 3

// MaxRefSlots is the bit budget of the packed descriptor.
const MaxRefSlots = 32

const highBit uint32 = 1 << 31

// IsBitmap reports whether r is a packed bitmap rather than the sentinel.
// The zero bitmap is a legitimate all-primitive shape, not a sentinel.
func (r RefOffsets) IsBitmap() bool {
	return r != WalkSuper
}

// Count returns the number of reference slots in the bitmap.
func (r RefOffsets) Count() int {
	return bits.OnesCount32(uint32(r))
}

// HasSlot reports whether slot is marked as a reference slot.
func (r RefOffsets) HasSlot(slot int) bool {
	return uint32(r)&(highBit>>uint(slot)) != 0
}

// WithSlot returns r with the given slot marked.
func (r RefOffsets) WithSlot(slot int) RefOffsets {
	return r | RefOffsets(highBit>>uint(slot))
}

// PopHighest returns the position of the highest set bit (0 = the high bit)
// and the bitmap with that bit cleared. The scan loop repeats this until the
// bitmap is zero, which yields a fixed highest-to-lowest slot order.
func (r RefOffsets) PopHighest() (int, RefOffsets) {
	pos := bits.LeadingZeros32(uint32(r))
	return pos, r &^ RefOffsets(highBit>>uint(pos))
}

// PackRefOffsets packs reference slot indices into a bitmap descriptor.
// It fails when a slot is outside the 32-slot budget or when the packed
// value would collide with the WalkSuper sentinel; callers fall back to
// hierarchy walking in either case.
func PackRefOffsets(slots []int) (RefOffsets, bool) {
	var r RefOffsets
	for _, slot := range slots {
		if slot < 0 || slot >= MaxRefSlots {
			return WalkSuper, false
		}
		r = r.WithSlot(slot)
	}
	if r == WalkSuper {
		return WalkSuper, false
	}
	return r, true
}
