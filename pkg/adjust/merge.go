package adjust

import (
	"fmt"

	"github.com/tofinomau/mau-backend/pkg/align"
	"github.com/tofinomau/mau-backend/pkg/bitvec"
	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/ir"
)

// Merge implements spec §4.6 item 7, the inverse of Split: every container that still
// carries more than one field-level instruction after the earlier passes is folded
// back into a single ALU instruction by re-running the Alignment Solver (pkg/align)
// over the combined set of sources, then choosing among set/deposit-field/
// bitmasked-set/byte-rotate-merge from the resulting ContainerAction's variant flags,
// exactly as spec §4.3 step 3 already does for a single alignment call — Merge's job
// is just assembling that call's input from several still-separate instructions.
func Merge(ctx *device.Context, alloc device.PHVAllocation, action *ir.Action) (bool, error) {
	groups := make(map[ir.Container][]int)
	for i, fa := range action.FieldActions {
		container, _, ok := resolveOperandBits(alloc, fa.Write.Expr)
		if !ok {
			continue
		}
		groups[container] = append(groups[container], i)
	}

	toRemove := make(map[int]bool)
	var merged []ir.FieldAction
	for container, idxs := range groups {
		if len(idxs) <= 1 {
			continue
		}
		in := align.Input{Container: container}
		commonOp := action.FieldActions[idxs[0]].Op
		in.Op = commonOp

		for _, idx := range idxs {
			fa := action.FieldActions[idx]
			if fa.Op != commonOp {
				ctx.Fatalf(action.Name, "container %s: cannot merge field actions with differing opcodes %s and %s", container, commonOp, fa.Op)
			}
			_, writeBits, _ := resolveOperandBits(alloc, fa.Write.Expr)
			for slot, r := range fa.Reads {
				sc := align.SourceContribution{
					Kind:       r.Kind,
					Speciality: r.Speciality,
					Align:      ir.Alignment{WriteBits: writeBits, SrcSlot: slot},
				}
				if srcContainer, readBits, ok := resolveOperandBits(alloc, r.Expr); ok {
					sc.SourceContainer = srcContainer
					sc.Align.ReadBits = readBits
				} else {
					sc.Align.ReadBits = writeBits
					if c, ok := r.Expr.(*ir.Constant); ok {
						sc.ConstValue = c.Value
						sc.ConstSigned = c.Signed
					}
				}
				in.Sources = append(in.Sources, sc)
			}
			toRemove[idx] = true
		}

		ca := align.Solve(ctx.Profile, in)
		if action.ContainerActions == nil {
			action.ContainerActions = make(map[ir.Container]*ir.ContainerAction)
		}
		action.ContainerActions[container] = ca

		op := commonOp
		switch {
		case ca.ConvertToByteRotateMerge:
			op = ir.OpByteRotateMerge
		case ca.ConvertToDepositField:
			op = ir.OpDepositField
		case ca.ConvertToBitmaskedSet:
			op = ir.OpBitmaskedSet
		case ca.TotalOverwritePossible:
			op = ir.OpSet
		}

		// The merged instruction's destination is the container itself (spec §4.6 item
		// 7's "MultiOperand naming the container"), not any one of the originally
		// separate field writes that fed it.
		write := ir.ActionParam{Kind: action.FieldActions[idxs[0]].Write.Kind, Expr: &ir.MultiOperand{Container: container}}
		out := ir.FieldAction{Name: action.FieldActions[idxs[0]].Name, Op: op, Write: write, Errors: ca.Errors}
		seen := make(map[string]bool)
		for _, idx := range idxs {
			for _, r := range action.FieldActions[idx].Reads {
				key := fmt.Sprintf("%#v", r.Expr)
				if seen[key] {
					continue
				}
				seen[key] = true
				out.Reads = append(out.Reads, r)
			}
		}
		merged = append(merged, out)
	}

	if len(merged) == 0 {
		return false, nil
	}
	var result []ir.FieldAction
	for i, fa := range action.FieldActions {
		if toRemove[i] {
			continue
		}
		result = append(result, fa)
	}
	action.FieldActions = append(result, merged...)
	return true, nil
}

// resolveOperandBits maps an operand expression to the (container, container-local bit
// range) it occupies, by walking through any Slice wrapper down to the underlying
// FieldRef and consulting the PHV allocation. Returns ok=false for non-PHV operands
// (constants, action-data, hash-dist, ...), which the caller handles separately.
func resolveOperandBits(alloc device.PHVAllocation, e ir.Expr) (ir.Container, bitvec.Bitvec, bool) {
	lo, hi := 0, e.Width()-1
	base := e
	if s, ok := e.(*ir.Slice); ok {
		base = s.Base
		lo, hi = s.Lo, s.Hi
	}
	f, ok := base.(*ir.FieldRef)
	if !ok {
		return ir.Container{}, bitvec.Empty, false
	}
	for _, s := range alloc.Slices(f.Field) {
		if s.Slice.Lo <= lo && hi <= s.Slice.Hi {
			off := lo - s.Slice.Lo
			containerLo := s.ContainerLo + off
			containerHi := containerLo + (hi - lo)
			return s.Container, bitvec.RangeSet(containerLo, containerHi), true
		}
	}
	return ir.Container{}, bitvec.Empty, false
}
