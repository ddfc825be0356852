package adjust

import (
	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/ir"
)

// EliminateNoop implements spec §4.6 item 1: deletes `or A,A,A`, `and A,A,A`, `set A,A`
// where the destination and every source resolve to the identical field.
func EliminateNoop(ctx *device.Context, alloc device.PHVAllocation, action *ir.Action) (bool, error) {
	kept := action.FieldActions[:0]
	changed := false
	for _, fa := range action.FieldActions {
		if isNoop(fa) {
			changed = true
			continue
		}
		kept = append(kept, fa)
	}
	action.FieldActions = kept
	return changed, nil
}

func isNoop(fa ir.FieldAction) bool {
	dst, ok := fa.Write.Expr.(*ir.FieldRef)
	if !ok {
		return false
	}
	switch fa.Op {
	case ir.OpSet:
		if len(fa.Reads) != 1 {
			return false
		}
		return sameField(fa.Reads[0].Expr, dst.Field)
	case ir.OpAnd, ir.OpOr:
		if len(fa.Reads) != 2 {
			return false
		}
		return sameField(fa.Reads[0].Expr, dst.Field) && sameField(fa.Reads[1].Expr, dst.Field)
	default:
		return false
	}
}
