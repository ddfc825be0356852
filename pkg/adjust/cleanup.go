package adjust

import (
	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/ir"
)

// Cleanup bundles spec §4.6 item 10's three minor normalisations — the spec itself
// describes them together under one numbered bullet, so they're kept as one pass
// rather than three:
//
//   - RemoveUnnecessaryActionArgSlice: a Slice of an ActionArg spanning the arg's full
//     width collapses to the arg itself.
//   - SimplifyConditionalActionArg: a synthesised conditionally-set whose comparison was
//     `arg != 0` drops the explicit zero-comparison operand — the hardware already
//     treats a nonzero action-arg as true.
//   - ArithCompareAdjustment: setz/sethi always write the full container, LSB-aligned,
//     so any separate instruction writing that same field's higher bits is now
//     redundant and is dropped.
func Cleanup(ctx *device.Context, alloc device.PHVAllocation, action *ir.Action) (bool, error) {
	changed := removeUnnecessaryActionArgSlice(action)
	changed = simplifyConditionalActionArg(action) || changed
	changed = arithCompareAdjustment(action) || changed
	return changed, nil
}

func removeUnnecessaryActionArgSlice(action *ir.Action) bool {
	changed := false
	for i := range action.FieldActions {
		fa := &action.FieldActions[i]
		if s, ok := fa.Write.Expr.(*ir.Slice); ok {
			if a, ok := s.Base.(*ir.ActionArg); ok && s.Lo == 0 && s.Hi == a.BitWidth-1 {
				fa.Write.Expr = a
				changed = true
			}
		}
		for j := range fa.Reads {
			r := &fa.Reads[j]
			if s, ok := r.Expr.(*ir.Slice); ok {
				if a, ok := s.Base.(*ir.ActionArg); ok && s.Lo == 0 && s.Hi == a.BitWidth-1 {
					r.Expr = a
					changed = true
				}
			}
		}
	}
	return changed
}

func simplifyConditionalActionArg(action *ir.Action) bool {
	changed := false
	for i := range action.FieldActions {
		fa := &action.FieldActions[i]
		if fa.Op != ir.OpConditionallySet || len(fa.Reads) != 4 {
			continue
		}
		if _, ok := fa.Reads[0].Expr.(*ir.ActionArg); !ok {
			continue
		}
		c, ok := fa.Reads[1].Expr.(*ir.Constant)
		if !ok || c.Value != 0 {
			continue
		}
		fa.Reads = []ir.ActionParam{fa.Reads[0], fa.Reads[2], fa.Reads[3]}
		changed = true
	}
	return changed
}

func arithCompareAdjustment(action *ir.Action) bool {
	fullWriters := make(map[ir.FieldID]bool)
	for _, fa := range action.FieldActions {
		if fa.Op != ir.OpSetZ && fa.Op != ir.OpSetHi {
			continue
		}
		if f, ok := fa.Write.Expr.(*ir.FieldRef); ok {
			fullWriters[f.Field] = true
		}
	}
	if len(fullWriters) == 0 {
		return false
	}
	changed := false
	kept := action.FieldActions[:0]
	for _, fa := range action.FieldActions {
		if fa.Op != ir.OpSetZ && fa.Op != ir.OpSetHi {
			if s, ok := fa.Write.Expr.(*ir.Slice); ok && s.Lo > 0 {
				if f, ok := s.Base.(*ir.FieldRef); ok && fullWriters[f.Field] {
					changed = true
					continue
				}
			}
		}
		kept = append(kept, fa)
	}
	action.FieldActions = kept
	return changed
}
