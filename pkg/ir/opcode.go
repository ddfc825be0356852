package ir

// Opcode is a compact identifier for an ALU instruction, naming the fixed ALU
// operation set of spec §4.5 plus the four container-action variants of spec §4.3.
type Opcode int

const (
	// The four ALU instruction variants (spec §4.3 step 3) — what a ContainerAction
	// is ultimately lowered to.
	OpSet Opcode = iota
	OpDepositField
	OpBitmaskedSet
	OpByteRotateMerge

	// Arithmetic (spec §4.5).
	OpAdd
	OpAddC // carry-propagating half of a split add (spec §4.6 SplitInstructions)
	OpSub
	OpSubC
	OpSaddU // saturating unsigned add
	OpSaddS // saturating signed add
	OpSsubU // saturating unsigned subtract (rewritten per spec §4.5 last paragraph)
	OpSsubS // saturating signed subtract

	// Shifts (spec §4.5, §4.3 step 8).
	OpShl
	OpShrU
	OpShrS
	OpFunnelShift

	// Bitwise, with NOT folded into the variant name (spec §4.5).
	OpAnd
	OpAndCA // a & ~b
	OpAndCB // ~a & b
	OpNand
	OpOr
	OpOrCA
	OpOrCB
	OpXor
	OpXnor
	OpNor
	OpNot

	// Min/max synthesised from a conditional-set pattern (spec §4.5).
	OpMinU
	OpMinS
	OpMaxU
	OpMaxS

	// Comparison-derived full-container writes (spec §4.6 item 10 "ArithCompareAdjustment").
	OpSetZ
	OpSetHi

	// Conditional set, synthesised when a ternary doesn't reduce to min/max (spec §4.5).
	OpConditionallySet

	// No destination (spec §4.2 "Opcodes with no destination").
	OpInvalidate

	opcodeCount
)

// ShiftKind distinguishes the single-container shifts from the two-container funnel
// shift, per spec §4.3 step 8.
type ShiftKind int

const (
	NotAShift ShiftKind = iota
	SingleShift
	FunnelShiftKind
)

// OpcodeInfo holds static metadata for one Opcode.
type OpcodeInfo struct {
	Mnemonic    string
	Commutative bool // spec §4.4 "Commutativity" list
	Shift       ShiftKind
	// BitwiseOverwritable marks opcodes usable on a partially-overwritten container in
	// the form `X = X op const`, per action_analysis.h's is_bitwise_overwritable.
	BitwiseOverwritable bool
	NoDest              bool // spec §4.2 "no_sources"
	MaxConstBits         int  // not set in Catalog and not read by pkg/align, which gives only set the LOADCONST_MAX range and limits every other opcode to ConstSrcMax
}

// Catalog maps every Opcode to its metadata.
var Catalog [int(opcodeCount)]OpcodeInfo

func reg(op Opcode, info OpcodeInfo) { Catalog[op] = info }

func init() {
	reg(OpSet, OpcodeInfo{Mnemonic: "set"})
	reg(OpDepositField, OpcodeInfo{Mnemonic: "deposit-field"})
	reg(OpBitmaskedSet, OpcodeInfo{Mnemonic: "bitmasked-set"})
	reg(OpByteRotateMerge, OpcodeInfo{Mnemonic: "byte-rotate-merge"})

	reg(OpAdd, OpcodeInfo{Mnemonic: "add", Commutative: true})
	reg(OpAddC, OpcodeInfo{Mnemonic: "addc", Commutative: true})
	reg(OpSub, OpcodeInfo{Mnemonic: "sub"})
	reg(OpSubC, OpcodeInfo{Mnemonic: "subc"})
	reg(OpSaddU, OpcodeInfo{Mnemonic: "saddu", Commutative: true})
	reg(OpSaddS, OpcodeInfo{Mnemonic: "sadds", Commutative: true})
	reg(OpSsubU, OpcodeInfo{Mnemonic: "ssubu"})
	reg(OpSsubS, OpcodeInfo{Mnemonic: "ssubs"})

	reg(OpShl, OpcodeInfo{Mnemonic: "shl", Shift: SingleShift})
	reg(OpShrU, OpcodeInfo{Mnemonic: "shru", Shift: SingleShift})
	reg(OpShrS, OpcodeInfo{Mnemonic: "shrs", Shift: SingleShift})
	reg(OpFunnelShift, OpcodeInfo{Mnemonic: "funnel-shift", Shift: FunnelShiftKind})

	reg(OpAnd, OpcodeInfo{Mnemonic: "and", Commutative: true, BitwiseOverwritable: true})
	reg(OpAndCA, OpcodeInfo{Mnemonic: "andca"})
	reg(OpAndCB, OpcodeInfo{Mnemonic: "andcb"})
	reg(OpNand, OpcodeInfo{Mnemonic: "nand", Commutative: true})
	reg(OpOr, OpcodeInfo{Mnemonic: "or", Commutative: true, BitwiseOverwritable: true})
	reg(OpOrCA, OpcodeInfo{Mnemonic: "orca"})
	reg(OpOrCB, OpcodeInfo{Mnemonic: "orcb"})
	reg(OpXor, OpcodeInfo{Mnemonic: "xor", Commutative: true, BitwiseOverwritable: true})
	reg(OpXnor, OpcodeInfo{Mnemonic: "xnor", Commutative: true, BitwiseOverwritable: true})
	reg(OpNor, OpcodeInfo{Mnemonic: "nor", Commutative: true})
	reg(OpNot, OpcodeInfo{Mnemonic: "not"})

	reg(OpMinU, OpcodeInfo{Mnemonic: "minu", Commutative: true})
	reg(OpMinS, OpcodeInfo{Mnemonic: "mins", Commutative: true})
	reg(OpMaxU, OpcodeInfo{Mnemonic: "maxu", Commutative: true})
	reg(OpMaxS, OpcodeInfo{Mnemonic: "maxs", Commutative: true})

	reg(OpSetZ, OpcodeInfo{Mnemonic: "setz", Commutative: true})
	reg(OpSetHi, OpcodeInfo{Mnemonic: "sethi", Commutative: true})

	reg(OpConditionallySet, OpcodeInfo{Mnemonic: "conditionally-set"})

	reg(OpInvalidate, OpcodeInfo{Mnemonic: "invalidate", NoDest: true})
}

// Info returns the catalog entry for op.
func (op Opcode) Info() OpcodeInfo { return Catalog[op] }

// String returns the opcode's assembly mnemonic.
func (op Opcode) String() string { return Catalog[op].Mnemonic }

// ParseOpcode looks up an Opcode by its Catalog mnemonic, the inverse of String, for
// tooling that reads opcodes back from text (cmd/mauc's JSON instruction format).
func ParseOpcode(mnemonic string) (Opcode, bool) {
	for op := Opcode(0); op < opcodeCount; op++ {
		if Catalog[op].Mnemonic == mnemonic {
			return op, true
		}
	}
	return 0, false
}

// IsCommutative reports whether src1/src2 may be freely swapped, per spec §4.4's list:
// add, addc, saddu, sadds, minu, mins, maxu, maxs, nor, xor, or, nand, and, xnor, setz, sethi.
func (op Opcode) IsCommutative() bool { return Catalog[op].Commutative }

// IsSingleShift reports whether op is shl/shru/shrs (spec §4.3 step 8).
func (op Opcode) IsSingleShift() bool { return Catalog[op].Shift == SingleShift }

// IsFunnelShift reports whether op is funnel-shift.
func (op Opcode) IsFunnelShift() bool { return Catalog[op].Shift == FunnelShiftKind }

// IsShift reports whether op is any shift variant.
func (op Opcode) IsShift() bool { return Catalog[op].Shift != NotAShift }

// IsBitwiseOverwritable reports whether op may partially overwrite a container in the
// form `X = X op const` (action_analysis.h is_bitwise_overwritable).
func (op Opcode) IsBitwiseOverwritable() bool { return Catalog[op].BitwiseOverwritable }

// HasNoDest reports whether op writes nothing (spec §4.2, e.g. invalidate).
func (op Opcode) HasNoDest() bool { return Catalog[op].NoDest }
