package bitvec

import "testing"

func TestRangeSetAndPopCount(t *testing.T) {
	v := RangeSet(4, 11)
	if v.PopCount() != 8 {
		t.Fatalf("expected 8 bits, got %d", v.PopCount())
	}
	lo, hi := v.Range()
	if lo != 4 || hi != 11 {
		t.Fatalf("expected [4,11], got [%d,%d]", lo, hi)
	}
}

func TestIsContiguous(t *testing.T) {
	contig := RangeSet(0, 7)
	if !contig.IsContiguous() {
		t.Fatal("expected contiguous")
	}
	gapped := RangeSet(0, 3).Union(RangeSet(5, 7))
	if gapped.IsContiguous() {
		t.Fatal("expected non-contiguous")
	}
	if !Empty.IsContiguous() {
		t.Fatal("empty is trivially contiguous")
	}
}

func TestRotate(t *testing.T) {
	v := Bitvec(0b0001) // bit 0 set, width 4
	got := v.Rotate(1, 4)
	want := Bitvec(0b0010)
	if got != want {
		t.Fatalf("rotate left 1: got %04b want %04b", got, want)
	}
	// Rotating the high bit wraps to bit 0.
	v2 := Bitvec(0b1000)
	got2 := v2.Rotate(1, 4)
	want2 := Bitvec(0b0001)
	if got2 != want2 {
		t.Fatalf("rotate wrap: got %04b want %04b", got2, want2)
	}
}

func TestRotateNegative(t *testing.T) {
	v := Bitvec(0b0010)
	got := v.Rotate(-1, 4)
	want := Bitvec(0b0001)
	if got != want {
		t.Fatalf("rotate right 1: got %04b want %04b", got, want)
	}
}

func TestSetClearTest(t *testing.T) {
	v := Empty.Set(3).Set(5)
	if !v.Test(3) || !v.Test(5) || v.Test(4) {
		t.Fatalf("unexpected bits: %v", v)
	}
	v = v.Clear(3)
	if v.Test(3) {
		t.Fatal("expected bit 3 cleared")
	}
}

func TestUnionIntersectSubtract(t *testing.T) {
	a := RangeSet(0, 3)
	b := RangeSet(2, 5)
	if u := a.Union(b); u != RangeSet(0, 5) {
		t.Fatalf("union: got %v", u)
	}
	if i := a.Intersect(b); i != RangeSet(2, 3) {
		t.Fatalf("intersect: got %v", i)
	}
	if s := a.Subtract(b); s != RangeSet(0, 1) {
		t.Fatalf("subtract: got %v", s)
	}
	if !a.Overlaps(b) {
		t.Fatal("expected overlap")
	}
}

func TestBitRange(t *testing.T) {
	r := BitRange{Lo: 8, Hi: 15}
	if r.Width() != 8 {
		t.Fatalf("width: got %d", r.Width())
	}
	if !r.Contains(10) || r.Contains(16) {
		t.Fatal("contains mismatch")
	}
	o := BitRange{Lo: 15, Hi: 20}
	if !r.Overlaps(o) {
		t.Fatal("expected overlap at boundary")
	}
	shifted := r.Shift(4)
	if shifted != (BitRange{Lo: 12, Hi: 19}) {
		t.Fatalf("shift: got %+v", shifted)
	}
}

func TestRangeFromBitvecRoundTrip(t *testing.T) {
	r := BitRange{Lo: 2, Hi: 9}
	v := r.ToBitvec()
	got := RangeFromBitvec(v)
	if got != r {
		t.Fatalf("round trip: got %+v want %+v", got, r)
	}
}
