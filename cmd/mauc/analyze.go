package main

import (
	"fmt"

	"github.com/tofinomau/mau-backend/pkg/align"
	"github.com/tofinomau/mau-backend/pkg/bitvec"
	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/device/fixture"
	"github.com/tofinomau/mau-backend/pkg/ir"
	"github.com/tofinomau/mau-backend/pkg/verify"
)

// fieldIDOf unwraps the Slice/Member wrappers pkg/operand leaves in place (spec §4.2)
// down to the underlying PHV field, so the CLI can look the field up in the static PHV
// assignment a program file supplies.
func fieldIDOf(e ir.Expr) (ir.FieldID, bool) {
	switch v := e.(type) {
	case *ir.FieldRef:
		return v.Field, true
	case *ir.Slice:
		return fieldIDOf(v.Base)
	case *ir.Member:
		return fieldIDOf(v.Base)
	default:
		return "", false
	}
}

// containerSlice finds the AllocSlice of field covering [lo, hi] in the field's own
// numbering, the simplified single-slice case this CLI's PHV assignment supports.
func containerSlice(alloc fixture.MapPHVAllocation, field ir.FieldID, lo, hi int) (ir.AllocSlice, bool) {
	for _, s := range alloc.Slices(field) {
		if s.Slice.Lo <= lo && hi <= s.Slice.Hi {
			return s, true
		}
	}
	return ir.AllocSlice{}, false
}

// containerBitsOf maps a field-local bit range to the bit positions it occupies on its
// assigned container.
func containerBitsOf(slice ir.AllocSlice, lo, hi int) bitvec.Bitvec {
	delta := slice.ContainerLo - slice.Slice.Lo
	return bitvec.RangeSet(lo+delta, hi+delta)
}

// destContainerAndBits resolves a write ActionParam to its container and the bits it
// occupies there.
func destContainerAndBits(alloc fixture.MapPHVAllocation, w ir.ActionParam) (ir.Container, bitvec.Bitvec, error) {
	field, ok := fieldIDOf(w.Expr)
	if !ok {
		return ir.Container{}, 0, fmt.Errorf("write operand has no backing field")
	}
	slice, ok := containerSlice(alloc, field, w.Range.Lo, w.Range.Hi)
	if !ok {
		return ir.Container{}, 0, fmt.Errorf("field %s[%d:%d] has no PHV assignment", field, w.Range.Lo, w.Range.Hi)
	}
	return slice.Container, containerBitsOf(slice, w.Range.Lo, w.Range.Hi), nil
}

// groupFieldActionsByContainer buckets an action's field actions by the PHV container
// their write lands on, per spec §4.4 "Aggregate per-field results into a
// per-container view." Field actions whose write has no PHV assignment are skipped
// with no error here — destContainerAndBits' error surfaces when solveContainer is
// reached for those that DO have an assignment, same as a real PHV-allocation miss.
func groupFieldActionsByContainer(alloc fixture.MapPHVAllocation, fas []ir.FieldAction) map[ir.Container][]ir.FieldAction {
	out := make(map[ir.Container][]ir.FieldAction)
	for _, fa := range fas {
		if fa.Op.HasNoDest() {
			continue
		}
		c, _, err := destContainerAndBits(alloc, fa.Write)
		if err != nil {
			continue
		}
		out[c] = append(out[c], fa)
	}
	return out
}

// solveContainer builds a verify.ContainerBundle for one container's field actions and
// runs it through pkg/verify (which itself runs pkg/align), the same per-container view
// spec §4.4 describes.
func solveContainer(profile device.Profile, alloc fixture.MapPHVAllocation, container ir.Container, fas []ir.FieldAction) (*ir.ContainerAction, error) {
	if len(fas) == 0 {
		return nil, fmt.Errorf("no field actions for container")
	}
	op := fas[0].Op
	var writes []verify.Write
	for _, fa := range fas {
		_, writeBits, err := destContainerAndBits(alloc, fa.Write)
		if err != nil {
			return nil, err
		}
		w := verify.Write{WriteBits: writeBits}
		for slot, r := range fa.Reads {
			contrib, err := sourceContribution(alloc, r, slot, writeBits)
			if err != nil {
				return nil, err
			}
			w.Reads = append(w.Reads, contrib)
		}
		writes = append(writes, w)
	}
	bundle, err := verify.MergeFieldActions(container, op, writes)
	if err != nil {
		return nil, err
	}
	return verify.Verify(profile, bundle), nil
}

// sourceContribution classifies one read operand into the align.SourceContribution
// pkg/align expects: PHV reads resolve through the static PHV assignment to their own
// source container; action-data and constant reads carry no source container.
func sourceContribution(alloc fixture.MapPHVAllocation, r ir.ActionParam, slot int, destWriteBits bitvec.Bitvec) (align.SourceContribution, error) {
	c := align.SourceContribution{
		Kind: r.Kind, Speciality: r.Speciality,
		Align: ir.Alignment{WriteBits: destWriteBits, SrcSlot: slot},
	}
	switch r.Kind {
	case ir.ParamPHV:
		field, ok := fieldIDOf(r.Expr)
		if !ok {
			return align.SourceContribution{}, fmt.Errorf("read operand has no backing field")
		}
		slice, ok := containerSlice(alloc, field, r.Range.Lo, r.Range.Hi)
		if !ok {
			return align.SourceContribution{}, fmt.Errorf("field %s[%d:%d] has no PHV assignment", field, r.Range.Lo, r.Range.Hi)
		}
		c.SourceContainer = slice.Container
		c.Align.ReadBits = containerBitsOf(slice, r.Range.Lo, r.Range.Hi)
	case ir.ParamConstant:
		c.ConstValue = r.ConstValue
		c.Align.ReadBits = destWriteBits
	default: // ParamActionData
		c.Align.ReadBits = destWriteBits
	}
	return c, nil
}

// variantName names the ALU instruction variant Solve/Verify selected, for analyze's
// output line.
func variantName(ca *ir.ContainerAction) string {
	switch {
	case ca.ConvertToByteRotateMerge:
		return "byte-rotate-merge"
	case ca.ConvertToDepositField:
		return "deposit-field"
	case ca.ConvertToBitmaskedSet:
		return "bitmasked-set"
	default:
		return "set"
	}
}
