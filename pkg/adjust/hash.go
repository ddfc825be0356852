package adjust

import (
	"fmt"

	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/ir"
)

// ExpressionsToHash implements spec §4.6 item 6: for every container whose
// ContainerAction carries ErrConstantToHash, the offending constant operand is
// replaced with a HashDist expression that will be delivered on the hash-distribution
// bus instead of as an immediate. The canonical form records the original constant so
// pkg/attached's shared-extern consistency check (and a future hash-unit allocator)
// can recognise two instructions that ought to share one hash-dist slot.
func ExpressionsToHash(ctx *device.Context, alloc device.PHVAllocation, action *ir.Action) (bool, error) {
	changed := false
	for i, fa := range action.FieldActions {
		container, ok := fieldActionContainer(alloc, fa)
		if !ok {
			continue
		}
		ca, ok := action.ContainerActions[container]
		if !ok || ca.Errors&ir.ErrConstantToHash == 0 {
			continue
		}
		for j, r := range fa.Reads {
			c, ok := r.Expr.(*ir.Constant)
			if !ok {
				continue
			}
			h := &ir.HashDist{CanonicalForm: fmt.Sprintf("const:%d:%s", c.Value, action.Name), BitWidth: c.BitWidth}
			action.FieldActions[i].Reads[j] = ir.ActionParam{Kind: ir.ParamActionData, Speciality: ir.SpecialityHashDist, Expr: h}
			changed = true
		}
	}
	return changed, nil
}
