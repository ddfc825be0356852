package adjust

import (
	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/ir"
)

// GuaranteeHashDistSize implements spec §4.6 item 9: when a hash-dist operand and its
// destination differ in width, the narrower side is widened so every operand in a
// hash-sourced instruction agrees — a too-narrow hash-dist gets its high bits padded
// with a zero-constant `set` into the remaining destination bits, a too-wide one is
// sliced down to the destination's width.
func GuaranteeHashDistSize(ctx *device.Context, alloc device.PHVAllocation, action *ir.Action) (bool, error) {
	changed := false
	var extra []ir.FieldAction
	for i, fa := range action.FieldActions {
		destWidth := fa.Write.Expr.Width()
		for j, r := range fa.Reads {
			h, ok := r.Expr.(*ir.HashDist)
			if !ok || h.Width() == destWidth {
				continue
			}
			if h.Width() > destWidth {
				narrowed := &ir.HashDist{CanonicalForm: h.CanonicalForm, BitWidth: destWidth}
				action.FieldActions[i].Reads[j] = ir.ActionParam{Kind: r.Kind, Speciality: r.Speciality, Expr: narrowed}
				changed = true
				continue
			}
			// h.Width() < destWidth: pad the high bits of the destination with a
			// zero-constant set so the hash-sourced instruction only ever targets the
			// low h.Width() bits it actually has data for.
			base, baseLo := fa.Write.Expr, 0
			if fs, ok := fa.Write.Expr.(*ir.Slice); ok {
				base, baseLo = fs.Base, fs.Lo
			}
			padLo, padHi := baseLo+h.Width(), baseLo+destWidth-1
			zero := &ir.Constant{Value: 0, BitWidth: padHi - padLo + 1}
			extra = append(extra, ir.FieldAction{
				Name:  fa.Name + "$hashpad",
				Op:    ir.OpSet,
				Write: ir.ActionParam{Kind: fa.Write.Kind, Expr: &ir.Slice{Base: base, Lo: padLo, Hi: padHi}},
				Reads: []ir.ActionParam{{Kind: ir.ParamConstant, Expr: zero, ConstValue: 0}},
			})
			action.FieldActions[i].Write.Expr = &ir.Slice{Base: base, Lo: baseLo, Hi: baseLo + h.Width() - 1}
			changed = true
		}
	}
	if len(extra) > 0 {
		action.FieldActions = append(action.FieldActions, extra...)
	}
	return changed, nil
}
