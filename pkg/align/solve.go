// Package align implements the Alignment Solver of spec.md §4.3 (component C4):
// given the per-source (write_bits, read_bits) contributions that land on one
// container, compute each source's rotation, the implicit write bits, and classify
// the container action into one of the four ALU instruction variants (set,
// deposit-field, bitmasked-set, byte-rotate-merge).
//
// Solve runs the cheap congruence/contiguity checks first and only builds the full
// TotalAlignment once those pass.
package align

import (
	"sort"

	"github.com/tofinomau/mau-backend/pkg/bitvec"
	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/ir"
)

// SourceContribution is one (write_bits, read_bits, source_slot) triple together with
// enough of the operand's classification (pkg/operand's output) to drive the
// mocha/dark, source-count, and specialty rules of spec §4.3 steps 5-7.
type SourceContribution struct {
	Kind            ir.ParamKind
	Speciality      ir.Speciality
	SourceContainer ir.Container // meaningful only when Kind == ir.ParamPHV
	ConstValue      int64
	ConstSigned     bool
	Align           ir.Alignment // bits on the destination container this source contributes
}

// Input is the per-(container, opcode) bundle the solver consumes.
type Input struct {
	Container ir.Container
	Op        ir.Opcode
	Sources   []SourceContribution
}

// Solve runs the eight-step algorithm of spec §4.3 and returns the resulting
// ContainerAction. It never returns a nil pointer; failures are recorded in
// ca.Errors / ca.Impossible rather than as a Go error, matching spec §7's
// "recoverable conditions are returned through the error bitmasks without throwing."
func Solve(profile device.Profile, in Input) *ir.ContainerAction {
	ca := ir.NewContainerAction(in.Container)
	ca.Op = in.Op
	width := in.Container.Width

	phvGroups := groupPHVSources(in.Sources)

	// Step 1: congruence, per PHV source.
	for container, contribs := range phvGroups {
		shift, directWrite, directRead, ok := congruence(contribs, width)
		if !ok {
			ca.Errors |= ir.ErrImpossibleAlignment
			continue
		}
		ca.PHVAlignment[container] = ir.TotalAlignment{
			DirectWriteBits: directWrite,
			DirectReadBits:  directRead,
			RightShift:      shift,
		}
	}

	// Source counts (step 6/7 groundwork).
	ca.PHVSourceCount = len(phvGroups)
	for _, s := range in.Sources {
		switch s.Kind {
		case ir.ParamActionData:
			ca.ActionDataSourceCount++
		case ir.ParamConstant:
			ca.ConstantSourceCount++
		}
	}

	totalWrite := unionWriteBits(in.Sources)
	full := bitvec.RangeSet(0, width-1)
	contiguous := totalWrite.IsContiguous()

	// Step 5: mocha/dark enforcement.
	enforceContainerKind(ca, in)

	// Step 6: source-count rules.
	if ca.PHVSourceCount > profile.MaxPHVSources {
		ca.Errors |= ir.ErrTooManyPHVSources
	}
	if ca.ActionDataSourceCount > 1 {
		ca.Errors |= ir.ErrMultipleActionData
	}
	classifyConstants(profile, ca, in)

	// Step 7: specialty rules.
	enforceSpecialty(profile, ca, in)

	// Step 8: shift rules.
	enforceShiftRules(ca, in, width)

	if ca.Errors.Classify() == ir.ClassFatal {
		ca.Impossible = true
		return ca
	}

	// Step 2/3/4: contiguity, variant selection, implicit bits.
	selectVariant(ca, in, totalWrite, full, contiguous, width)

	return ca
}

// groupPHVSources buckets PHV contributions by their source container, since a
// single source container may feed a destination with more than one field-level
// instruction (e.g. two slices of the same source field).
func groupPHVSources(sources []SourceContribution) map[ir.Container][]SourceContribution {
	groups := make(map[ir.Container][]SourceContribution)
	for _, s := range sources {
		if s.Kind != ir.ParamPHV {
			continue
		}
		groups[s.SourceContainer] = append(groups[s.SourceContainer], s)
	}
	return groups
}

// congruence implements spec §4.3 step 1: every (write_bits, read_bits) pair for one
// source must agree on a single right_shift k in [0, W).
func congruence(contribs []SourceContribution, width int) (shift int, directWrite, directRead bitvec.Bitvec, ok bool) {
	haveShift := false
	for _, c := range contribs {
		k, okOne := alignmentShift(c.Align, width)
		if !okOne {
			return 0, 0, 0, false
		}
		if !haveShift {
			shift = k
			haveShift = true
		} else if k != shift {
			return 0, 0, 0, false
		}
		directWrite = directWrite.Union(c.Align.WriteBits)
		directRead = directRead.Union(c.Align.ReadBits)
	}
	return shift, directWrite, directRead, true
}

// alignmentShift pairs up the sorted set bits of WriteBits and ReadBits and checks
// they differ by one consistent amount modulo width.
func alignmentShift(a ir.Alignment, width int) (int, bool) {
	w := sortedBits(a.WriteBits)
	r := sortedBits(a.ReadBits)
	if len(w) != len(r) {
		return 0, false // popcount mismatch: ErrPopcountMismatch territory, caller flags IMPOSSIBLE_ALIGNMENT
	}
	if len(w) == 0 {
		return 0, true
	}
	mod := func(x int) int { return ((x % width) + width) % width }
	k := mod(w[0] - r[0])
	for i := 1; i < len(w); i++ {
		if mod(w[i]-r[i]) != k {
			return 0, false
		}
	}
	return k, true
}

func sortedBits(v bitvec.Bitvec) []int {
	var out []int
	for i := 0; i < 64; i++ {
		if v.Test(i) {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

func unionWriteBits(sources []SourceContribution) bitvec.Bitvec {
	var u bitvec.Bitvec
	for _, s := range sources {
		u = u.Union(s.Align.WriteBits)
	}
	return u
}

// enforceContainerKind implements spec §4.3 step 5.
func enforceContainerKind(ca *ir.ContainerAction, in Input) {
	width := in.Container.Width
	full := bitvec.RangeSet(0, width-1)
	totalWrite := unionWriteBits(in.Sources)

	switch in.Container.Kind {
	case ir.KindMocha:
		for _, s := range in.Sources {
			if (s.Kind == ir.ParamActionData || s.Kind == ir.ParamConstant) && totalWrite != full {
				ca.Errors |= ir.ErrIllegalOverwrite
			}
		}
	case ir.KindDark:
		for _, s := range in.Sources {
			if s.Kind == ir.ParamActionData || s.Kind == ir.ParamConstant {
				ca.Errors |= ir.ErrIllegalOverwrite
			}
		}
		if totalWrite != full {
			ca.Errors |= ir.ErrPartialOverwrite
		}
	}
}

// classifyConstants implements spec §4.3 step 6's constant rules: constants may only
// occupy src1 (the first read slot) and must fit LOADCONST_MAX bits for opcodes that
// take a full-width constant, or the device's ConstSrcMax signed range otherwise.
//
// When a constant doesn't fit, it must be promoted off the immediate encoding. Per
// spec §4.3 step 6 / §4.4, a container action may carry at most one action-data
// source; if one is already present among in.Sources, the action-data slot is already
// spoken for, so the over-wide constant is promoted onto the hash-distribution bus
// instead (ErrConstantToHash) rather than contending for the same action-data word
// (ErrConstantToActionData).
func classifyConstants(profile device.Profile, ca *ir.ContainerAction, in Input) {
	maxBits := profile.LoadconstMax
	if !opTakesFullConst(in.Op) {
		maxBits = profile.ConstSrcMax
	}
	actionDataSlotTaken := false
	for _, s := range in.Sources {
		if s.Kind == ir.ParamActionData {
			actionDataSlotTaken = true
			break
		}
	}
	for _, s := range in.Sources {
		if s.Kind != ir.ParamConstant {
			continue
		}
		if s.Align.SrcSlot > 0 {
			ca.Errors |= ir.ErrReformatConstant
		}
		bitsNeeded := constantBitsNeeded(s.ConstValue, s.ConstSigned)
		if bitsNeeded > maxBits {
			if actionDataSlotTaken {
				ca.Errors |= ir.ErrConstantToHash
			} else {
				ca.Errors |= ir.ErrConstantToActionData
			}
		}
		ca.Constant.Positions = append(ca.Constant.Positions, ir.ConstPosition{
			Value: s.ConstValue,
			Range: bitvec.RangeFromBitvec(s.Align.WriteBits),
		})
		ca.Constant.SignExtend = ca.Constant.SignExtend || s.ConstSigned
	}
	if n := len(ca.Constant.Positions); n > 0 {
		merged := int64(0)
		for _, p := range ca.Constant.Positions {
			merged |= p.Value << uint(p.Range.Lo)
		}
		ca.Constant.Merged = merged
	}
}

// opTakesFullConst reports whether op is OpSet (a plain move), which per spec §4.3
// step 6 may use the whole LOADCONST_MAX range; every other opcode is limited to the
// device's signed ConstSrcMax range.
func opTakesFullConst(op ir.Opcode) bool { return op == ir.OpSet }

func constantBitsNeeded(v int64, signed bool) int {
	if v == 0 {
		return 1
	}
	if !signed || v > 0 {
		n := 0
		for x := v; x != 0; x >>= 1 {
			n++
		}
		return n
	}
	// Signed negative: count bits needed for two's-complement representation.
	n := 1
	for x := v; x != -1 && x != 0; x >>= 1 {
		n++
	}
	return n
}

// enforceSpecialty implements spec §4.3 step 7.
func enforceSpecialty(profile device.Profile, ca *ir.ContainerAction, in Input) {
	specialCount := 0
	for _, s := range in.Sources {
		if s.Speciality == ir.NoSpeciality {
			continue
		}
		specialCount++
		if s.Speciality == ir.SpecialityMeterALU {
			lo, _ := s.Align.WriteBits.Range()
			byteOffset := (lo / 8) * 8
			if !containsInt(profile.MeterALUByteOffsets, byteOffset) {
				ca.Errors |= ir.ErrImpossibleAlignment
			}
		}
		ca.ActionData.Speciality = s.Speciality
	}
	if specialCount > 1 {
		ca.Errors |= ir.ErrMultipleActionData
	}
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// enforceShiftRules implements spec §4.3 step 8.
func enforceShiftRules(ca *ir.ContainerAction, in Input, width int) {
	if in.Op.IsSingleShift() {
		for c := range groupPHVSources(in.Sources) {
			if c != in.Container {
				ca.Errors |= ir.ErrDifferentOpSize
			}
		}
		return
	}
	if in.Op.IsFunnelShift() {
		groups := groupPHVSources(in.Sources)
		if len(groups) != 2 {
			ca.Errors |= ir.ErrOperandCountOutOfRange
			return
		}
		var widths []int
		for c := range groups {
			widths = append(widths, c.Width)
		}
		if widths[0] != widths[1] {
			ca.Errors |= ir.ErrDifferentOpSize
		}
	}
}

// selectVariant implements spec §4.3 steps 2-4: contiguity, the four-way variant
// choice, and the implicit-write-bits computation.
func selectVariant(ca *ir.ContainerAction, in Input, totalWrite, full bitvec.Bitvec, contiguous bool, width int) {
	switch {
	case byteRotateMergeShape(in, width):
		ca.ConvertToByteRotateMerge = true
		ca.TotalOverwritePossible = totalWrite == full
		markImplicitBits(ca, in, width, true)

	case totalWrite == full:
		ca.TotalOverwritePossible = true
		// Whole-container write: no implicit bits, no preservation needed. Stays a
		// plain `set` (or whatever whole-width opcode produced it) — no conversion.

	case contiguous:
		ca.ConvertToDepositField = true
		ca.ImplicitSrc2 = true // preserved bits come from the destination container itself
		markImplicitBits(ca, in, width, false)

	case in.Op.IsBitwiseOverwritable():
		// X = X op const over a non-contiguous mask is exactly what bitmasked-set is for.
		ca.ConvertToBitmaskedSet = true
		ca.ImplicitSrc2 = true
		markImplicitBits(ca, in, width, false)

	default:
		ca.Errors |= ir.ErrPartialOverwrite
	}
}

// byteRotateMergeShape detects spec §4.3 step 3's byte-rotate-merge precondition:
// exactly two PHV sources, each contributing a disjoint set of whole, byte-aligned
// positions in the destination container.
func byteRotateMergeShape(in Input, width int) bool {
	groups := groupPHVSources(in.Sources)
	if len(groups) != 2 {
		return false
	}
	var seen bitvec.Bitvec
	for _, contribs := range groups {
		var group bitvec.Bitvec
		for _, c := range contribs {
			group = group.Union(c.Align.WriteBits)
		}
		if group.Overlaps(seen) {
			return false
		}
		if !isByteAligned(group, width) {
			return false
		}
		seen = seen.Union(group)
	}
	return true
}

func isByteAligned(v bitvec.Bitvec, width int) bool {
	if v.IsZero() {
		return true
	}
	for byteStart := 0; byteStart < width; byteStart += 8 {
		byteMask := bitvec.RangeSet(byteStart, byteStart+7)
		inByte := v.Intersect(byteMask)
		if inByte != 0 && inByte != byteMask {
			return false
		}
	}
	return true
}

// markImplicitBits records the bits of the destination container that are preserved
// by the implicit s2 (the destination container itself) rather than by any operand
// that appears in the instruction (spec §4.3 step 4: "implicit write bits are the
// bits of the destination container outside the chosen contiguous range that s2
// contributes"). byte-rotate-merge has no such remainder: its two sources between
// them already tile every written byte.
func markImplicitBits(ca *ir.ContainerAction, in Input, width int, byteRotate bool) {
	if byteRotate {
		return
	}
	full := bitvec.RangeSet(0, width-1)
	implicit := full.Subtract(unionWriteBits(in.Sources))
	if implicit.IsZero() {
		return
	}
	self := ca.PHVAlignment[in.Container]
	self.ImplicitWriteBits = self.ImplicitWriteBits.Union(implicit)
	ca.PHVAlignment[in.Container] = self
}
