package adjust

import (
	"testing"

	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/ir"
)

type fakeAlloc map[ir.FieldID][]ir.AllocSlice

func (f fakeAlloc) Slices(field ir.FieldID) []ir.AllocSlice { return f[field] }

func w32(idx int) ir.Container { return ir.Container{Kind: ir.KindNormal, Index: idx, Width: 32} }
func w16(idx int) ir.Container { return ir.Container{Kind: ir.KindNormal, Index: idx, Width: 16} }

func oneToOne(field ir.FieldID, c ir.Container, width int) []ir.AllocSlice {
	return []ir.AllocSlice{{Slice: ir.FieldSlice{Field: field, Lo: 0, Hi: width - 1}, Container: c, ContainerLo: 0, ContainerHi: width - 1}}
}

func newCtx() *device.Context { return device.NewContext(device.DefaultProfile(), device.Flags{}) }

func TestEliminateNoopRemovesSelfMoveAndSelfOr(t *testing.T) {
	a := &ir.FieldRef{Field: "a", BitWidth: 32}
	action := &ir.Action{FieldActions: []ir.FieldAction{
		{Op: ir.OpSet, Write: ir.ActionParam{Expr: a}, Reads: []ir.ActionParam{{Expr: a}}},
		{Op: ir.OpOr, Write: ir.ActionParam{Expr: a}, Reads: []ir.ActionParam{{Expr: a}, {Expr: a}}},
		{Op: ir.OpAdd, Write: ir.ActionParam{Expr: a}, Reads: []ir.ActionParam{{Expr: a}, {Expr: a}}},
	}}
	changed, err := EliminateNoop(newCtx(), fakeAlloc{}, action)
	if err != nil {
		t.Fatal(err)
	}
	if !changed || len(action.FieldActions) != 1 {
		t.Fatalf("expected only the add to survive, got %+v", action.FieldActions)
	}
}

func TestAdjustShiftNarrowsToSetWhenWindowFits(t *testing.T) {
	src := &ir.FieldRef{Field: "src", BitWidth: 32}
	dst := &ir.Slice{Base: &ir.FieldRef{Field: "dst", BitWidth: 8}, Lo: 0, Hi: 7}
	action := &ir.Action{FieldActions: []ir.FieldAction{
		{Op: ir.OpShrS, Write: ir.ActionParam{Expr: dst}, Reads: []ir.ActionParam{{Expr: src}, {Expr: &ir.Constant{Value: 8}}}},
	}}
	changed, err := AdjustShift(newCtx(), fakeAlloc{}, action)
	if err != nil {
		t.Fatal(err)
	}
	if !changed || action.FieldActions[0].Op != ir.OpSet {
		t.Fatalf("expected rewrite to set, got %+v", action.FieldActions[0])
	}
	s, ok := action.FieldActions[0].Reads[0].Expr.(*ir.Slice)
	if !ok || s.Lo != 8 || s.Hi != 15 {
		t.Fatalf("expected source window [8,15], got %+v", action.FieldActions[0].Reads[0].Expr)
	}
}

func TestRewriteReductionOrCollapsesRepeatedSaluOrToSet(t *testing.T) {
	dst := &ir.FieldRef{Field: "dst", BitWidth: 32}
	out1 := &ir.AttachedOutput{ExternName: "m0", BitWidth: 32}
	out2 := &ir.AttachedOutput{ExternName: "m1", BitWidth: 32}
	action := &ir.Action{FieldActions: []ir.FieldAction{
		{Op: ir.OpOr, Write: ir.ActionParam{Expr: dst}, Reads: []ir.ActionParam{{Expr: dst}, {Expr: out1}}},
		{Op: ir.OpOr, Write: ir.ActionParam{Expr: dst}, Reads: []ir.ActionParam{{Expr: dst}, {Expr: out2}}},
	}}
	changed, err := RewriteReductionOr(newCtx(), fakeAlloc{}, action)
	if err != nil {
		t.Fatal(err)
	}
	if !changed || len(action.FieldActions) != 1 {
		t.Fatalf("expected the second SALU-OR dropped, got %+v", action.FieldActions)
	}
	if action.FieldActions[0].Op != ir.OpSet {
		t.Fatalf("expected the surviving instruction rewritten to set, got %v", action.FieldActions[0].Op)
	}
}

func TestSplitAcrossTwoContainersPropagatesCarry(t *testing.T) {
	fieldA := ir.FieldID("wide_a")
	fieldB := ir.FieldID("wide_b")
	fieldDst := ir.FieldID("wide_dst")
	alloc := fakeAlloc{
		fieldA:   {{Slice: ir.FieldSlice{Field: fieldA, Lo: 0, Hi: 15}, Container: w16(0), ContainerLo: 0, ContainerHi: 15}, {Slice: ir.FieldSlice{Field: fieldA, Lo: 16, Hi: 31}, Container: w16(1), ContainerLo: 0, ContainerHi: 15}},
		fieldB:   {{Slice: ir.FieldSlice{Field: fieldB, Lo: 0, Hi: 15}, Container: w16(2), ContainerLo: 0, ContainerHi: 15}, {Slice: ir.FieldSlice{Field: fieldB, Lo: 16, Hi: 31}, Container: w16(3), ContainerLo: 0, ContainerHi: 15}},
		fieldDst: {{Slice: ir.FieldSlice{Field: fieldDst, Lo: 0, Hi: 15}, Container: w16(4), ContainerLo: 0, ContainerHi: 15}, {Slice: ir.FieldSlice{Field: fieldDst, Lo: 16, Hi: 31}, Container: w16(5), ContainerLo: 0, ContainerHi: 15}},
	}
	action := &ir.Action{FieldActions: []ir.FieldAction{
		{Op: ir.OpAdd, Write: ir.ActionParam{Expr: &ir.FieldRef{Field: fieldDst, BitWidth: 32}},
			Reads: []ir.ActionParam{{Expr: &ir.FieldRef{Field: fieldA, BitWidth: 32}}, {Expr: &ir.FieldRef{Field: fieldB, BitWidth: 32}}}},
	}}
	changed, err := Split(newCtx(), alloc, action)
	if err != nil {
		t.Fatal(err)
	}
	if !changed || len(action.FieldActions) != 2 {
		t.Fatalf("expected a 2-way split, got %+v", action.FieldActions)
	}
	if action.FieldActions[0].Op != ir.OpAdd || action.FieldActions[1].Op != ir.OpAddC {
		t.Fatalf("expected add then addc, got %v then %v", action.FieldActions[0].Op, action.FieldActions[1].Op)
	}
}

func TestSplitRejectsSaturatingArithmetic(t *testing.T) {
	field := ir.FieldID("wide")
	alloc := fakeAlloc{field: {
		{Slice: ir.FieldSlice{Field: field, Lo: 0, Hi: 15}, Container: w16(0), ContainerLo: 0, ContainerHi: 15},
		{Slice: ir.FieldSlice{Field: field, Lo: 16, Hi: 31}, Container: w16(1), ContainerLo: 0, ContainerHi: 15},
	}}
	ctx := newCtx()
	action := &ir.Action{FieldActions: []ir.FieldAction{
		{Op: ir.OpSaddU, Write: ir.ActionParam{Expr: &ir.FieldRef{Field: field, BitWidth: 32}},
			Reads: []ir.ActionParam{{Expr: &ir.FieldRef{Field: field, BitWidth: 32}}, {Expr: &ir.Constant{Value: 1}}}},
	}}
	Split(ctx, alloc, action)
	if !ctx.HasFatalErrors() {
		t.Fatal("expected a fatal error for splitting saturating arithmetic")
	}
}

func TestMergeCombinesFieldActionsIntoMultiOperandWrite(t *testing.T) {
	fieldA, fieldB := ir.FieldID("a"), ir.FieldID("b")
	container := w32(0)
	alloc := fakeAlloc{
		fieldA: {{Slice: ir.FieldSlice{Field: fieldA, Lo: 0, Hi: 15}, Container: container, ContainerLo: 0, ContainerHi: 15}},
		fieldB: {{Slice: ir.FieldSlice{Field: fieldB, Lo: 0, Hi: 15}, Container: container, ContainerLo: 16, ContainerHi: 31}},
	}
	action := &ir.Action{FieldActions: []ir.FieldAction{
		{Op: ir.OpOr,
			Write: ir.ActionParam{Expr: &ir.FieldRef{Field: fieldA, BitWidth: 16}},
			Reads: []ir.ActionParam{{Expr: &ir.FieldRef{Field: fieldA, BitWidth: 16}}, {Expr: &ir.Constant{Value: 1, BitWidth: 16}}}},
		{Op: ir.OpOr,
			Write: ir.ActionParam{Expr: &ir.FieldRef{Field: fieldB, BitWidth: 16}},
			Reads: []ir.ActionParam{{Expr: &ir.FieldRef{Field: fieldB, BitWidth: 16}}, {Expr: &ir.Constant{Value: 2, BitWidth: 16}}}},
	}}
	changed, err := Merge(newCtx(), alloc, action)
	if err != nil {
		t.Fatal(err)
	}
	if !changed || len(action.FieldActions) != 1 {
		t.Fatalf("expected both field actions folded into one, got %+v", action.FieldActions)
	}
	mo, ok := action.FieldActions[0].Write.Expr.(*ir.MultiOperand)
	if !ok {
		t.Fatalf("expected merged write to be a MultiOperand, got %T", action.FieldActions[0].Write.Expr)
	}
	if mo.Container != container {
		t.Fatalf("expected MultiOperand to name %v, got %v", container, mo.Container)
	}
}

func TestConstantsToActionDataRewritesFlaggedContainer(t *testing.T) {
	field := ir.FieldID("f")
	c := w32(0)
	alloc := fakeAlloc{field: oneToOne(field, c, 32)}
	action := &ir.Action{
		FieldActions: []ir.FieldAction{
			{Op: ir.OpAnd, Write: ir.ActionParam{Expr: &ir.FieldRef{Field: field, BitWidth: 32}},
				Reads: []ir.ActionParam{{Expr: &ir.FieldRef{Field: field, BitWidth: 32}}, {Expr: &ir.Constant{Value: 42, BitWidth: 32}}}},
		},
		ContainerActions: map[ir.Container]*ir.ContainerAction{c: {Errors: ir.ErrConstantToActionData}},
	}
	changed, err := ConstantsToActionData(newCtx(), alloc, action)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("expected a rewrite")
	}
	adc, ok := action.FieldActions[0].Reads[1].Expr.(*ir.ActionDataConstant)
	if !ok || adc.Container != c {
		t.Fatalf("expected constant promoted to ActionDataConstant, got %+v", action.FieldActions[0].Reads[1].Expr)
	}
}

func TestExpressionsToHashRewritesFlaggedContainer(t *testing.T) {
	field := ir.FieldID("f")
	c := w32(0)
	alloc := fakeAlloc{field: oneToOne(field, c, 32)}
	action := &ir.Action{
		FieldActions: []ir.FieldAction{
			{Op: ir.OpAnd, Write: ir.ActionParam{Expr: &ir.FieldRef{Field: field, BitWidth: 32}},
				Reads: []ir.ActionParam{{Expr: &ir.FieldRef{Field: field, BitWidth: 32}}, {Expr: &ir.Constant{Value: 7, BitWidth: 32}}}},
		},
		ContainerActions: map[ir.Container]*ir.ContainerAction{c: {Errors: ir.ErrConstantToHash}},
	}
	changed, err := ExpressionsToHash(newCtx(), alloc, action)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("expected a rewrite")
	}
	if _, ok := action.FieldActions[0].Reads[1].Expr.(*ir.HashDist); !ok {
		t.Fatalf("expected constant promoted to HashDist, got %+v", action.FieldActions[0].Reads[1].Expr)
	}
}

func TestAdjustStatefulRewritesPhvInputToHalfRegister(t *testing.T) {
	field := ir.FieldID("meter_in")
	alloc := fakeAlloc{field: oneToOne(field, w32(2), 32)}
	action := &ir.Action{Attached: []ir.BackendAttached{{ExternName: "m0", PhvInput: &ir.FieldRef{Field: field, BitWidth: 32}}}}
	changed, err := AdjustStateful(newCtx(), alloc, action)
	if err != nil {
		t.Fatal(err)
	}
	if !changed || action.Attached[0].PhvInput.Field != "phv_lo" {
		t.Fatalf("expected rewrite to phv_lo for an even container, got %+v", action.Attached[0].PhvInput)
	}
}

func TestAdjustStatefulRejectsNonByteAlignedInput(t *testing.T) {
	field := ir.FieldID("odd_in")
	alloc := fakeAlloc{field: {{Slice: ir.FieldSlice{Field: field, Lo: 0, Hi: 11}, Container: w16(0), ContainerLo: 2, ContainerHi: 13}}}
	ctx := newCtx()
	action := &ir.Action{Attached: []ir.BackendAttached{{ExternName: "m0", PhvInput: &ir.FieldRef{Field: field, BitWidth: 12}}}}
	AdjustStateful(ctx, alloc, action)
	if !ctx.HasFatalErrors() {
		t.Fatal("expected a fatal error for a non-byte-aligned stateful input")
	}
}

func TestGuaranteeHashDistSizePadsNarrowHash(t *testing.T) {
	dst := &ir.FieldRef{Field: "dst", BitWidth: 32}
	action := &ir.Action{FieldActions: []ir.FieldAction{
		{Name: "a1", Op: ir.OpSet, Write: ir.ActionParam{Expr: dst}, Reads: []ir.ActionParam{{Expr: &ir.HashDist{CanonicalForm: "h", BitWidth: 16}}}},
	}}
	changed, err := GuaranteeHashDistSize(newCtx(), fakeAlloc{}, action)
	if err != nil {
		t.Fatal(err)
	}
	if !changed || len(action.FieldActions) != 2 {
		t.Fatalf("expected a padding instruction synthesised, got %+v", action.FieldActions)
	}
}

func TestCleanupRemovesRedundantUpperWriteAfterSetZ(t *testing.T) {
	field := ir.FieldID("cmp")
	action := &ir.Action{FieldActions: []ir.FieldAction{
		{Op: ir.OpSetZ, Write: ir.ActionParam{Expr: &ir.FieldRef{Field: field, BitWidth: 32}}},
		{Op: ir.OpSet, Write: ir.ActionParam{Expr: &ir.Slice{Base: &ir.FieldRef{Field: field, BitWidth: 32}, Lo: 8, Hi: 31}}, Reads: []ir.ActionParam{{Expr: &ir.Constant{Value: 0}}}},
	}}
	changed, err := Cleanup(newCtx(), fakeAlloc{}, action)
	if err != nil {
		t.Fatal(err)
	}
	if !changed || len(action.FieldActions) != 1 {
		t.Fatalf("expected the redundant upper-bits write removed, got %+v", action.FieldActions)
	}
}

func TestCleanupCollapsesActionArgZeroCompare(t *testing.T) {
	arg := &ir.ActionArg{Name: "p", BitWidth: 8}
	action := &ir.Action{FieldActions: []ir.FieldAction{
		{Op: ir.OpConditionallySet, Write: ir.ActionParam{Expr: &ir.FieldRef{Field: "dst", BitWidth: 8}},
			Reads: []ir.ActionParam{{Expr: arg}, {Expr: &ir.Constant{Value: 0}}, {Expr: &ir.Constant{Value: 1}}, {Expr: &ir.Constant{Value: 2}}}},
	}}
	changed, err := Cleanup(newCtx(), fakeAlloc{}, action)
	if err != nil {
		t.Fatal(err)
	}
	if !changed || len(action.FieldActions[0].Reads) != 3 {
		t.Fatalf("expected the zero-comparison operand dropped, got %+v", action.FieldActions[0].Reads)
	}
}

func TestPipelineRunToFixpointConverges(t *testing.T) {
	a := &ir.FieldRef{Field: "a", BitWidth: 32}
	action := &ir.Action{Name: "noop_action", FieldActions: []ir.FieldAction{
		{Op: ir.OpSet, Write: ir.ActionParam{Expr: a}, Reads: []ir.ActionParam{{Expr: a}}},
	}}
	p := NewPipeline()
	iterations, err := p.RunToFixpoint(newCtx(), fakeAlloc{}, action)
	if err != nil {
		t.Fatal(err)
	}
	if iterations < 1 {
		t.Fatalf("expected at least one iteration, got %d", iterations)
	}
	if len(action.FieldActions) != 0 {
		t.Fatalf("expected the noop eliminated, got %+v", action.FieldActions)
	}
}
