package verify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tofinomau/mau-backend/pkg/align"
	"github.com/tofinomau/mau-backend/pkg/bitvec"
	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/ir"
)

var profile = device.DefaultProfile()

func w32(idx int) ir.Container { return ir.Container{Kind: ir.KindNormal, Index: idx, Width: 32} }

func TestDisjointWritesMerge(t *testing.T) {
	dst := w32(0)
	b := ContainerBundle{
		Container: dst,
		Op:        ir.OpOr,
		Writes: []Write{
			{
				WriteBits: bitvec.RangeSet(0, 7),
				Reads: []align.SourceContribution{
					{Kind: ir.ParamPHV, SourceContainer: w32(1), Align: ir.Alignment{WriteBits: bitvec.RangeSet(0, 7), ReadBits: bitvec.RangeSet(0, 7)}},
				},
			},
			{
				WriteBits: bitvec.RangeSet(8, 15),
				Reads: []align.SourceContribution{
					{Kind: ir.ParamPHV, SourceContainer: w32(2), Align: ir.Alignment{WriteBits: bitvec.RangeSet(8, 15), ReadBits: bitvec.RangeSet(8, 15)}},
				},
			},
		},
	}
	ca := Verify(profile, b)
	require.Zero(t, ca.Errors&ir.ErrRepeatedWrites, "disjoint writes must not be flagged as repeated")
}

func TestOverlappingWritesRejected(t *testing.T) {
	dst := w32(0)
	b := ContainerBundle{
		Container: dst,
		Op:        ir.OpOr,
		Writes: []Write{
			{
				WriteBits: bitvec.RangeSet(0, 7),
				Reads: []align.SourceContribution{
					{Kind: ir.ParamPHV, SourceContainer: w32(1), Align: ir.Alignment{WriteBits: bitvec.RangeSet(0, 7), ReadBits: bitvec.RangeSet(0, 7)}},
				},
			},
			{
				WriteBits: bitvec.RangeSet(4, 11),
				Reads: []align.SourceContribution{
					{Kind: ir.ParamPHV, SourceContainer: w32(2), Align: ir.Alignment{WriteBits: bitvec.RangeSet(4, 11), ReadBits: bitvec.RangeSet(4, 11)}},
				},
			},
		},
	}
	ca := Verify(profile, b)
	require.NotZero(t, ca.Errors&ir.ErrRepeatedWrites)
}

func TestCommutativityPinsDeterministically(t *testing.T) {
	dst := w32(0)
	srcA, srcB := w32(1), w32(2)
	b := ContainerBundle{
		Container: dst,
		Op:        ir.OpAdd, // commutative
		Writes: []Write{
			{
				WriteBits: bitvec.RangeSet(0, 31),
				Reads: []align.SourceContribution{
					{Kind: ir.ParamPHV, SourceContainer: srcB, Align: ir.Alignment{WriteBits: bitvec.RangeSet(0, 31), ReadBits: bitvec.RangeSet(0, 31), SrcSlot: 0}},
					{Kind: ir.ParamPHV, SourceContainer: srcA, Align: ir.Alignment{WriteBits: bitvec.RangeSet(0, 31), ReadBits: bitvec.RangeSet(0, 31), SrcSlot: 1}},
				},
			},
		},
	}
	ca := Verify(profile, b)
	require.True(t, ca.PHVAlignment[srcA].IsSrc1, "lowest-index container should deterministically win src1 for a commutative op")
	require.False(t, ca.PHVAlignment[srcB].IsSrc1)
}

func TestNonCommutativePinsFirstRead(t *testing.T) {
	dst := w32(0)
	srcA, srcB := w32(1), w32(2)
	b := ContainerBundle{
		Container: dst,
		Op:        ir.OpSub, // non-commutative
		Writes: []Write{
			{
				WriteBits: bitvec.RangeSet(0, 31),
				Reads: []align.SourceContribution{
					{Kind: ir.ParamPHV, SourceContainer: srcB, Align: ir.Alignment{WriteBits: bitvec.RangeSet(0, 31), ReadBits: bitvec.RangeSet(0, 31), SrcSlot: 0}},
					{Kind: ir.ParamPHV, SourceContainer: srcA, Align: ir.Alignment{WriteBits: bitvec.RangeSet(0, 31), ReadBits: bitvec.RangeSet(0, 31), SrcSlot: 1}},
				},
			},
		},
	}
	ca := Verify(profile, b)
	require.True(t, ca.PHVAlignment[srcB].IsSrc1, "the first read operand must pin s1 for a non-commutative op regardless of container index")
	require.False(t, ca.PHVAlignment[srcA].IsSrc1)
}

func TestReadSizeEqualityFlagsMismatch(t *testing.T) {
	dst := w32(0)
	src := w32(1)
	b := ContainerBundle{
		Container: dst,
		Op:        ir.OpOr,
		Writes: []Write{
			{
				WriteBits: bitvec.RangeSet(0, 7),
				Reads: []align.SourceContribution{
					{Kind: ir.ParamPHV, SourceContainer: src, Align: ir.Alignment{WriteBits: bitvec.RangeSet(0, 7), ReadBits: bitvec.RangeSet(0, 7)}},
				},
			},
			{
				WriteBits: bitvec.RangeSet(16, 19),
				Reads: []align.SourceContribution{
					{Kind: ir.ParamPHV, SourceContainer: src, Align: ir.Alignment{WriteBits: bitvec.RangeSet(16, 19), ReadBits: bitvec.RangeSet(16, 19)}},
				},
			},
		},
	}
	ca := Verify(profile, b)
	require.NotZero(t, ca.Errors&ir.ErrDifferentOpSize)
}

func TestMergeFieldActionsRejectsBadWidth(t *testing.T) {
	_, err := MergeFieldActions(ir.Container{Kind: ir.KindNormal, Index: 0, Width: 12}, ir.OpSet, nil)
	require.Error(t, err)
}
