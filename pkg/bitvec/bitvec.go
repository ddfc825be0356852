// Package bitvec implements a fixed-width bit set used to track the bits of a PHV
// container that a field-level instruction writes or reads.
package bitvec

import "math/bits"

// Bitvec is a bit set over container positions 0..63. Containers never exceed 32 bits
// in this backend, but a funnel-shift source spans two containers (64 bits), so the
// word is kept wide enough for that case.
type Bitvec uint64

// Empty is the zero value: no bits set.
const Empty Bitvec = 0

// Set returns a copy of v with bit i set.
func (v Bitvec) Set(i int) Bitvec {
	return v | (1 << uint(i))
}

// Clear returns a copy of v with bit i cleared.
func (v Bitvec) Clear(i int) Bitvec {
	return v &^ (1 << uint(i))
}

// Test reports whether bit i is set.
func (v Bitvec) Test(i int) bool {
	return v&(1<<uint(i)) != 0
}

// PopCount returns the number of set bits.
func (v Bitvec) PopCount() int {
	return bits.OnesCount64(uint64(v))
}

// IsZero reports whether no bits are set.
func (v Bitvec) IsZero() bool {
	return v == 0
}

// FirstSet returns the index of the lowest set bit, or -1 if none are set.
func (v Bitvec) FirstSet() int {
	if v == 0 {
		return -1
	}
	return bits.TrailingZeros64(uint64(v))
}

// LastSet returns the index of the highest set bit, or -1 if none are set.
func (v Bitvec) LastSet() int {
	if v == 0 {
		return -1
	}
	return 63 - bits.LeadingZeros64(uint64(v))
}

// IsContiguous reports whether the set bits form a single unbroken run.
func (v Bitvec) IsContiguous() bool {
	if v == 0 {
		return true
	}
	lo := v.FirstSet()
	hi := v.LastSet()
	want := RangeSet(lo, hi)
	return v == want
}

// Range returns the [lo, hi] inclusive span of set bits. Returns (-1,-1) if empty.
func (v Bitvec) Range() (lo, hi int) {
	if v == 0 {
		return -1, -1
	}
	return v.FirstSet(), v.LastSet()
}

// Rotate returns v rotated left by k positions within a word of the given width.
// k is taken modulo width; negative k rotates right.
func (v Bitvec) Rotate(k, width int) Bitvec {
	if width <= 0 {
		return v
	}
	k = ((k % width) + width) % width
	if k == 0 {
		return v
	}
	mask := RangeSet(0, width-1)
	body := v & mask
	rotated := ((body << uint(k)) | (body >> uint(width-k))) & mask
	return rotated | (v &^ mask)
}

// Union returns the bitwise OR of v and o.
func (v Bitvec) Union(o Bitvec) Bitvec { return v | o }

// Intersect returns the bitwise AND of v and o.
func (v Bitvec) Intersect(o Bitvec) Bitvec { return v & o }

// Subtract returns the bits of v that are not in o.
func (v Bitvec) Subtract(o Bitvec) Bitvec { return v &^ o }

// Equals reports whether v and o have the same bits set.
func (v Bitvec) Equals(o Bitvec) bool { return v == o }

// Overlaps reports whether v and o share any set bit.
func (v Bitvec) Overlaps(o Bitvec) bool { return v&o != 0 }

// RangeSet returns a Bitvec with bits [lo, hi] inclusive set.
func RangeSet(lo, hi int) Bitvec {
	if lo < 0 || hi < lo {
		return 0
	}
	width := hi - lo + 1
	var mask Bitvec
	if width >= 64 {
		mask = ^Bitvec(0)
	} else {
		mask = (Bitvec(1) << uint(width)) - 1
	}
	return mask << uint(lo)
}

// RangeClear returns v with bits [lo, hi] inclusive cleared.
func (v Bitvec) RangeClear(lo, hi int) Bitvec {
	return v &^ RangeSet(lo, hi)
}
