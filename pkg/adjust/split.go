package adjust

import (
	"sort"

	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/ir"
	sel "github.com/tofinomau/mau-backend/pkg/select"
)

// Split implements spec §4.6 item 4: a field-level instruction whose destination
// occupies N > 1 AllocSlices is rewritten into N parallel per-container instructions.
// Bitwise and plain-move opcodes split bit-for-bit (the same position in every
// operand). Add/sub propagate carry with addc/subc across the split containers, lowest
// bits first. Shifts use the §4.5 funnel-shift recipe when split in two; a shift
// spanning more than two containers (rare — would need a source field wider than two
// PHV containers) falls back to per-container reslicing the way pkg/adjust's
// AdjustShift already does, since chaining funnel-shift through >2 containers needs
// carry-style plumbing the hardware doesn't expose directly. Saturating arithmetic
// cannot be split at all (spec §4.6 item 4's explicit carve-out) and is reported fatal.
func Split(ctx *device.Context, alloc device.PHVAllocation, action *ir.Action) (bool, error) {
	changed := false
	var result []ir.FieldAction
	for _, fa := range action.FieldActions {
		dst, ok := writeField(fa)
		if !ok {
			result = append(result, fa)
			continue
		}
		slices := alloc.Slices(dst)
		if len(slices) <= 1 {
			result = append(result, fa)
			continue
		}
		sort.Slice(slices, func(i, j int) bool { return slices[i].Slice.Lo < slices[j].Slice.Lo })

		switch {
		case fa.Op == ir.OpSaddU || fa.Op == ir.OpSaddS || fa.Op == ir.OpSsubU || fa.Op == ir.OpSsubS:
			ctx.Fatalf(action.Name, "saturating instruction on field %s cannot be split across %d containers", dst, len(slices))
			result = append(result, fa)
			continue

		case fa.Op == ir.OpAdd || fa.Op == ir.OpSub:
			carryOp := ir.OpAddC
			if fa.Op == ir.OpSub {
				carryOp = ir.OpSubC
			}
			for i, s := range slices {
				op := fa.Op
				if i > 0 {
					op = carryOp
				}
				result = append(result, sliceFieldAction(fa, s, op, i))
			}
			changed = true

		case fa.Op.IsShift() && len(slices) == 2:
			lo, hi := sliceFieldAction(fa, slices[0], fa.Op, 0), sliceFieldAction(fa, slices[1], fa.Op, 1)
			shiftAmt := 0
			if len(fa.Reads) == 2 {
				if c, ok := fa.Reads[1].Expr.(*ir.Constant); ok {
					shiftAmt = int(c.Value)
				}
			}
			ffa, err := sel.SelectFunnelShift(fa.Name, lo.Write.Expr, hi.Reads[0].Expr, lo.Reads[0].Expr, shiftAmt)
			if err != nil {
				ctx.Fatalf(action.Name, "split %s: %v", fa.Name, err)
				result = append(result, fa)
				continue
			}
			ffa.Write = lo.Write
			result = append(result, ffa, hi)
			changed = true

		default:
			for i, s := range slices {
				result = append(result, sliceFieldAction(fa, s, fa.Op, i))
			}
			changed = true
		}
	}
	action.FieldActions = result
	return changed, nil
}

// sliceFieldAction builds the FieldAction covering one AllocSlice of an originally
// whole-field instruction, re-slicing every read operand to the same window.
func sliceFieldAction(fa ir.FieldAction, s ir.AllocSlice, op ir.Opcode, index int) ir.FieldAction {
	lo, hi := s.Slice.Lo, s.Slice.Hi
	out := ir.FieldAction{Name: fa.Name, Op: op}
	out.Write = ir.ActionParam{Kind: fa.Write.Kind, Expr: &ir.Slice{Base: fa.Write.Expr, Lo: lo, Hi: hi}}
	for _, r := range fa.Reads {
		out.Reads = append(out.Reads, sliceReadParam(r, lo, hi))
	}
	return out
}

func sliceReadParam(r ir.ActionParam, lo, hi int) ir.ActionParam {
	if c, ok := r.Expr.(*ir.Constant); ok {
		width := hi - lo + 1
		mask := int64(1)<<uint(width) - 1
		val := (c.Value >> uint(lo)) & mask
		return ir.ActionParam{Kind: ir.ParamConstant, Expr: &ir.Constant{Value: val, BitWidth: width, Signed: c.Signed}, ConstValue: val}
	}
	return ir.ActionParam{Kind: r.Kind, Speciality: r.Speciality, Expr: &ir.Slice{Base: r.Expr, Lo: lo, Hi: hi}}
}
