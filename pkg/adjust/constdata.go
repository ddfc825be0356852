package adjust

import (
	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/ir"
)

// ConstantsToActionData implements spec §4.6 item 5: for every container whose
// ContainerAction carries ErrConstantToActionData, every IR Constant feeding that
// container is replaced with an ActionDataConstant keyed by (action name, container,
// container bits) — the action-format allocator (an external collaborator, spec §1)
// assigns the real byte offset later.
func ConstantsToActionData(ctx *device.Context, alloc device.PHVAllocation, action *ir.Action) (bool, error) {
	changed := false
	for i, fa := range action.FieldActions {
		container, ok := fieldActionContainer(alloc, fa)
		if !ok {
			continue
		}
		ca, ok := action.ContainerActions[container]
		if !ok || ca.Errors&ir.ErrConstantToActionData == 0 {
			continue
		}
		for j, r := range fa.Reads {
			c, ok := r.Expr.(*ir.Constant)
			if !ok {
				continue
			}
			adc := &ir.ActionDataConstant{
				ActionName: action.Name,
				Container:  container,
				Bits:       [2]int{0, c.BitWidth - 1},
				BitWidth:   c.BitWidth,
			}
			action.FieldActions[i].Reads[j] = ir.ActionParam{Kind: ir.ParamActionData, Expr: adc}
			action.FieldActions[i].ConstantToAD = true
			changed = true
		}
	}
	return changed, nil
}

// fieldActionContainer resolves the container a FieldAction's write targets, unwrapping
// a Slice down to its base FieldRef first (Split leaves every write as a Slice of the
// original field). A write already merged by pkg/adjust's Merge pass names its
// container directly via a MultiOperand.
func fieldActionContainer(alloc device.PHVAllocation, fa ir.FieldAction) (ir.Container, bool) {
	e := fa.Write.Expr
	if m, ok := e.(*ir.MultiOperand); ok {
		return m.Container, true
	}
	for {
		if s, ok := e.(*ir.Slice); ok {
			e = s.Base
			continue
		}
		break
	}
	f, ok := e.(*ir.FieldRef)
	if !ok {
		return ir.Container{}, false
	}
	return destContainer(alloc, f.Field)
}
