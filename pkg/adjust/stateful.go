package adjust

import (
	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/ir"
)

// AdjustStateful implements spec §4.6 item 8: inside an action that drives a stateful
// ALU, the PhvInput field of each attached call is rewritten into either `phv_lo` or
// `phv_hi` depending on which half of the input crossbar the allocator placed it on
// (the search bus vs. the hash bus). The field's first AllocSlice is checked to start
// on a byte boundary and cover whole bytes; a field with no AllocSlice (no input
// bytes) is reported fatal. The byte offset is not checked against the ALU's width.
//
// Grounded on original_source/.../mau/instruction_adjustment.cpp's
// AdjustStatefulInstructions. The crossbar-half decision genuinely belongs to the
// input-crossbar allocator (an external collaborator, spec §1 "Non-goals"); lacking
// that collaborator's real output, this pass uses the container's own index parity as
// the crossbar-half proxy (even containers land on the search bus / phv_lo, odd on the
// hash bus / phv_hi), which is deterministic and good enough to drive the rest of the
// pipeline without inventing a fake allocator.
func AdjustStateful(ctx *device.Context, alloc device.PHVAllocation, action *ir.Action) (bool, error) {
	if len(action.Attached) == 0 {
		return false, nil
	}
	changed := false
	for i := range action.Attached {
		ba := &action.Attached[i]
		if ba.PhvInput == nil {
			continue
		}
		if rewritten, ok := rewritePhvHalf(ctx, alloc, action.Name, ba.PhvInput); ok {
			ba.PhvInput = rewritten
			changed = true
		}
	}
	return changed, nil
}

// rewritePhvHalf resolves field's container placement, validates byte alignment, and
// returns a FieldRef renamed to the phv_lo/phv_hi register the stateful ALU actually
// reads.
func rewritePhvHalf(ctx *device.Context, alloc device.PHVAllocation, actionName string, field *ir.FieldRef) (*ir.FieldRef, bool) {
	slices := alloc.Slices(field.Field)
	if len(slices) == 0 {
		ctx.Fatalf(actionName, "stateful input field %s has no PHV placement, so it supplies no input bytes", field.Field)
		return field, false
	}
	s := slices[0]
	if s.ContainerLo%8 != 0 || s.ContainerWidth()%8 != 0 {
		ctx.Fatalf(actionName, "stateful input field %s is not byte-aligned in container %s", field.Field, s.Container)
		return field, false
	}
	half := "phv_lo"
	if s.Container.Index%2 == 1 {
		half = "phv_hi"
	}
	return &ir.FieldRef{Field: ir.FieldID(half), BitWidth: field.BitWidth}, true
}
