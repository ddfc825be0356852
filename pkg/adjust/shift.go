package adjust

import (
	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/ir"
)

// AdjustShift implements spec §4.6 item 2: for a signed right shift whose destination
// container is narrower than the source field, the plain `shrs` opcode can no longer
// carry the whole source — this pass reslices the source by the (statically known)
// shift amount so the chosen container only ever reads the bits it actually owns.
//
// When the resliced window still lies entirely within the source's own bits, the
// shift-and-truncate collapses to a pure bit-select, so the instruction becomes `set`
// of that slice. When the window runs past the top of the source, the destination's
// high bits must come from hardware sign-extension rather than real source bits, so
// the pass narrows the read to what's available and leaves the opcode as `shrs`; the
// container's native sign-extending shifter supplies the rest. A dynamic (non-constant)
// shift amount cannot be resliced statically and is left untouched for the verifier to
// reject if it genuinely doesn't fit (spec §8 notes dynamic shift amounts are already
// rare — P4 shift counts are almost always compile-time constants).
func AdjustShift(ctx *device.Context, alloc device.PHVAllocation, action *ir.Action) (bool, error) {
	changed := false
	for i, fa := range action.FieldActions {
		if fa.Op != ir.OpShrS || len(fa.Reads) != 2 {
			continue
		}
		destWidth := fa.Write.Expr.Width()
		src := fa.Reads[0].Expr
		srcWidth := src.Width()
		if destWidth >= srcWidth {
			continue
		}
		amtConst, ok := fa.Reads[1].Expr.(*ir.Constant)
		if !ok {
			continue
		}
		shiftAmt := int(amtConst.Value)
		if shiftAmt < 0 {
			continue
		}
		lo := shiftAmt
		hi := shiftAmt + destWidth - 1

		if hi < srcWidth {
			action.FieldActions[i].Op = ir.OpSet
			action.FieldActions[i].Reads = []ir.ActionParam{{Kind: ir.ParamPHV, Expr: &ir.Slice{Base: src, Lo: lo, Hi: hi}}}
			changed = true
			continue
		}
		if lo > 0 && lo < srcWidth {
			action.FieldActions[i].Reads[0] = ir.ActionParam{Kind: ir.ParamPHV, Expr: &ir.Slice{Base: src, Lo: lo, Hi: srcWidth - 1}}
			changed = true
		}
	}
	return changed, nil
}
