package ir

import (
	"testing"

	"github.com/tofinomau/mau-backend/pkg/bitvec"
)

func TestOpcodeCommutativity(t *testing.T) {
	commutative := []Opcode{OpAdd, OpAddC, OpSaddU, OpSaddS, OpMinU, OpMinS, OpMaxU, OpMaxS,
		OpNor, OpXor, OpOr, OpNand, OpAnd, OpXnor, OpSetZ, OpSetHi}
	for _, op := range commutative {
		if !op.IsCommutative() {
			t.Errorf("%s: expected commutative per spec §4.4", op)
		}
	}
	nonCommutative := []Opcode{OpSub, OpShl, OpAndCA, OpSet, OpDepositField}
	for _, op := range nonCommutative {
		if op.IsCommutative() {
			t.Errorf("%s: expected non-commutative", op)
		}
	}
}

func TestShiftClassification(t *testing.T) {
	if !OpShl.IsSingleShift() || OpShl.IsFunnelShift() {
		t.Fatal("shl should be a single shift")
	}
	if !OpFunnelShift.IsFunnelShift() || OpFunnelShift.IsSingleShift() {
		t.Fatal("funnel-shift should be a funnel shift")
	}
	if OpAdd.IsShift() {
		t.Fatal("add is not a shift")
	}
}

func TestErrorFlagClassify(t *testing.T) {
	cases := []struct {
		flags ErrorFlag
		want  ErrorClass
	}{
		{0, ClassNone},
		{ErrPartialOverwrite, ClassRelayout},
		{ErrConstantToActionData, ClassConstantPromotion},
		{ErrUnknownOpcode, ClassFatal},
		{ErrPartialOverwrite | ErrUnknownOpcode, ClassFatal},
		{ErrPartialOverwrite | ErrConstantToActionData, ClassConstantPromotion},
	}
	for _, c := range cases {
		if got := c.flags.Classify(); got != c.want {
			t.Errorf("flags=%b: got %v want %v", c.flags, got, c.want)
		}
	}
}

func TestAllocSliceConflict(t *testing.T) {
	w0 := Container{Kind: KindNormal, Index: 0, Width: 32}
	a := AllocSlice{
		Slice:       FieldSlice{Field: "f1", Lo: 0, Hi: 7},
		Container:   w0,
		ContainerLo: 0, ContainerHi: 7,
		Live: LiveRange{Start: LiveRangePoint{Stage: 0, Access: AccessWrite}, End: LiveRangePoint{Stage: 2, Access: AccessRead}},
	}
	b := AllocSlice{
		Slice:       FieldSlice{Field: "f2", Lo: 0, Hi: 7},
		Container:   w0,
		ContainerLo: 4, ContainerHi: 11,
		Live: LiveRange{Start: LiveRangePoint{Stage: 1, Access: AccessWrite}, End: LiveRangePoint{Stage: 3, Access: AccessRead}},
	}
	if !a.ConflictsWith(b) {
		t.Fatal("overlapping bits + overlapping live ranges must conflict")
	}
	c := AllocSlice{
		Slice:       FieldSlice{Field: "f3", Lo: 0, Hi: 7},
		Container:   w0,
		ContainerLo: 4, ContainerHi: 11,
		Live: LiveRange{Start: LiveRangePoint{Stage: 4, Access: AccessWrite}, End: LiveRangePoint{Stage: 5, Access: AccessRead}},
	}
	if a.ConflictsWith(c) {
		t.Fatal("disjoint live ranges over shared bits must not conflict (spec §3)")
	}
}

func TestTotalAlignmentPopcountBalanced(t *testing.T) {
	ta := TotalAlignment{
		DirectWriteBits: bitvec.RangeSet(0, 5),
		DirectReadBits:  bitvec.RangeSet(2, 7),
	}
	if !ta.PopcountBalanced() {
		t.Fatal("equal-width ranges should balance")
	}
	ta2 := TotalAlignment{
		DirectWriteBits: bitvec.RangeSet(0, 5),
		DirectReadBits:  bitvec.RangeSet(2, 6),
	}
	if ta2.PopcountBalanced() {
		t.Fatal("unequal widths must not balance")
	}
}
