// Package verify implements the Container-Action Verifier of spec.md §4.4 (component
// C5): it runs after pkg/align on every container touched by an action and enforces
// the rules that only make sense once every field-level write to that container is
// known at once — at-most-one-write (or disjoint-merge), commutativity, read-size
// equality, and the final three-tier error disposition.
//
// Kept as its own package, separate from the alignment solver it calls into, and
// structured as one cheap check ("are the writes even disjoint") before a more
// expensive one ("hand the merged bundle to the alignment solver").
package verify

import (
	"fmt"
	"sort"

	"github.com/tofinomau/mau-backend/pkg/align"
	"github.com/tofinomau/mau-backend/pkg/bitvec"
	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/ir"
)

// Write is one field-level instruction's contribution to a container: the bits of
// the destination container it writes, and the operand contributions (pkg/operand's
// output, already positioned onto this container by the PHV allocation) that supply
// those bits.
type Write struct {
	WriteBits bitvec.Bitvec
	Reads     []align.SourceContribution
}

// ContainerBundle is every field-level instruction in one action that targets one
// container, per spec §4.4 ("Aggregate per-field results into a per-container view").
type ContainerBundle struct {
	Container ir.Container
	Op        ir.Opcode
	Writes    []Write
}

// Verify runs the container-action rules of spec §4.4 and returns the resulting
// ContainerAction, with any additional errors OR'd in on top of what pkg/align found.
func Verify(profile device.Profile, b ContainerBundle) *ir.ContainerAction {
	extra := checkDisjointWrites(b.Writes)

	in := align.Input{Container: b.Container, Op: b.Op}
	for _, w := range b.Writes {
		in.Sources = append(in.Sources, w.Reads...)
	}
	ca := align.Solve(profile, in)
	ca.Errors |= extra

	assignCommutativity(ca, b)
	checkReadSizeEquality(ca, b)

	if ca.Errors.Classify() == ir.ClassFatal {
		ca.Impossible = true
	}
	return ca
}

// checkDisjointWrites implements spec §4.4's "At most one write per container per
// action": multiple field writes to the same container are legal only when their bit
// ranges are pairwise disjoint.
func checkDisjointWrites(writes []Write) ir.ErrorFlag {
	for i := 0; i < len(writes); i++ {
		for j := i + 1; j < len(writes); j++ {
			if writes[i].WriteBits.Overlaps(writes[j].WriteBits) {
				return ir.ErrRepeatedWrites
			}
		}
	}
	return 0
}

// assignCommutativity implements spec §4.4's commutativity rule: for the opcodes
// listed in spec §4.4, src1/src2 may be freely swapped to satisfy source-slot rules
// (e.g. which source lands in the ALU's s1 position); non-commutative opcodes pin the
// first read operand to s1. The assignment itself is deterministic (lowest container
// index wins ties) so repeated runs on identical input agree, per spec §8 P7.
func assignCommutativity(ca *ir.ContainerAction, b ContainerBundle) {
	if len(ca.PHVAlignment) == 0 {
		return
	}
	if !b.Op.IsCommutative() {
		pinned := firstReadSourceContainer(b)
		for c, ta := range ca.PHVAlignment {
			ta.IsSrc1 = c == pinned
			ca.PHVAlignment[c] = ta
		}
		return
	}
	// Commutative: break ties deterministically by container index so repeated runs
	// agree without caring which operand the caller happened to list first.
	var containers []ir.Container
	for c := range ca.PHVAlignment {
		containers = append(containers, c)
	}
	sort.Slice(containers, func(i, j int) bool { return containers[i].Index < containers[j].Index })
	for i, c := range containers {
		ta := ca.PHVAlignment[c]
		ta.IsSrc1 = i == 0
		ca.PHVAlignment[c] = ta
	}
}

func firstReadSourceContainer(b ContainerBundle) ir.Container {
	for _, w := range b.Writes {
		for _, r := range w.Reads {
			if r.Kind == ir.ParamPHV && r.Align.SrcSlot == 0 {
				return r.SourceContainer
			}
		}
	}
	return ir.Container{}
}

// checkReadSizeEquality implements spec §4.4's "Read-size equality": all reads that
// land on the same source container must cover equal widths unless they are slices
// that combine into one contiguous range — which TotalAlignment.DirectReadBits being
// contiguous already demonstrates.
func checkReadSizeEquality(ca *ir.ContainerAction, b ContainerBundle) {
	widths := make(map[ir.Container]map[int]bool)
	for _, w := range b.Writes {
		for _, r := range w.Reads {
			if r.Kind != ir.ParamPHV {
				continue
			}
			if widths[r.SourceContainer] == nil {
				widths[r.SourceContainer] = make(map[int]bool)
			}
			widths[r.SourceContainer][r.Align.ReadBits.PopCount()] = true
		}
	}
	for c, ws := range widths {
		if len(ws) <= 1 {
			continue
		}
		ta, ok := ca.PHVAlignment[c]
		if ok && ta.DirectReadBits.IsContiguous() {
			continue // the differing-width slices combined into one contiguous range
		}
		ca.Errors |= ir.ErrDifferentOpSize
	}
}

// MergeFieldActions packages one container's writes and its single opcode into the
// ContainerBundle shape Verify expects, erroring if the container width is not 8, 16
// or 32 bits. It takes one opcode, so it does not detect two different opcodes aimed
// at the same container; its caller in cmd/mauc passes the first field action's
// opcode.
func MergeFieldActions(container ir.Container, op ir.Opcode, writes []Write) (ContainerBundle, error) {
	if container.Width != 8 && container.Width != 16 && container.Width != 32 {
		return ContainerBundle{}, fmt.Errorf("verify: container %s has unsupported width %d", container, container.Width)
	}
	return ContainerBundle{Container: container, Op: op, Writes: writes}, nil
}
