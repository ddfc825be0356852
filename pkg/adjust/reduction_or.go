package adjust

import (
	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/ir"
)

// RewriteReductionOr implements spec §4.6 item 3. Multiple SALUs whose outputs are all
// OR'd into the same destination field don't need a real OR on the MAU ALU at all: the
// attached memories already combine on their own shared output wire, so the first
// SALU's result can drive the container directly via a plain `set`. This pass detects
// the shape directly from the field-level instruction list (an `or` with an
// AttachedOutput as either operand, repeated against the same destination) rather than
// requiring a dedicated flag on ir.ContainerAction, since spec §3's aggregate doesn't
// enumerate one — the reduction-or shape is a property of the pre-aggregation
// instruction list, not of the per-container alignment result.
func RewriteReductionOr(ctx *device.Context, alloc device.PHVAllocation, action *ir.Action) (bool, error) {
	counts := make(map[ir.FieldID]int)
	for _, fa := range action.FieldActions {
		if !isAttachedOutputOr(fa) {
			continue
		}
		dst, ok := writeField(fa)
		if !ok {
			continue
		}
		counts[dst]++
	}

	changed := false
	kept := action.FieldActions[:0]
	seenFirst := make(map[ir.FieldID]bool)
	for _, fa := range action.FieldActions {
		if isAttachedOutputOr(fa) {
			dst, _ := writeField(fa)
			if counts[dst] > 1 {
				if seenFirst[dst] {
					changed = true
					continue // drop every SALU-OR past the first for this destination
				}
				seenFirst[dst] = true
				out := attachedOutputOperand(fa)
				fa.Op = ir.OpSet
				fa.Reads = []ir.ActionParam{{Kind: ir.ParamPHV, Speciality: ir.SpecialityMeterALU, Expr: out}}
				changed = true
			}
		}
		kept = append(kept, fa)
	}
	action.FieldActions = kept
	return changed, nil
}

func isAttachedOutputOr(fa ir.FieldAction) bool {
	if fa.Op != ir.OpOr || len(fa.Reads) != 2 {
		return false
	}
	_, lhsOut := fa.Reads[0].Expr.(*ir.AttachedOutput)
	_, rhsOut := fa.Reads[1].Expr.(*ir.AttachedOutput)
	return lhsOut || rhsOut
}

func attachedOutputOperand(fa ir.FieldAction) ir.Expr {
	if _, ok := fa.Reads[0].Expr.(*ir.AttachedOutput); ok {
		return fa.Reads[0].Expr
	}
	return fa.Reads[1].Expr
}
