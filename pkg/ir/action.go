package ir

import "github.com/tofinomau/mau-backend/pkg/bitvec"

// ParamKind classifies one operand's physical source, per spec §3 ActionParam.
type ParamKind int

const (
	ParamPHV ParamKind = iota
	ParamActionData
	ParamConstant
)

func (k ParamKind) String() string {
	switch k {
	case ParamPHV:
		return "PHV"
	case ParamActionData:
		return "ACTION_DATA"
	case ParamConstant:
		return "CONSTANT"
	default:
		return "INVALID"
	}
}

// Speciality tags an operand that arrives from a non-ordinary physical source, per
// spec §3 ActionParam / §4.2.
type Speciality int

const (
	NoSpeciality Speciality = iota
	SpecialityHashDist
	SpecialityMeterColor
	SpecialityRandom
	SpecialityMeterALU
	SpecialityStfulCounter
)

func (s Speciality) String() string {
	switch s {
	case NoSpeciality:
		return "NO_SPECIAL"
	case SpecialityHashDist:
		return "HASH_DIST"
	case SpecialityMeterColor:
		return "METER_COLOR"
	case SpecialityRandom:
		return "RANDOM"
	case SpecialityMeterALU:
		return "METER_ALU"
	case SpecialityStfulCounter:
		return "STFUL_COUNTER"
	default:
		return "INVALID_SPECIALITY"
	}
}

// ActionParam is one operand of a field-level instruction, per spec §3.
type ActionParam struct {
	Kind       ParamKind
	Speciality Speciality
	Expr       Expr
	Range      bitvec.BitRange // the bit range within Expr's source that this param covers
	ConstValue int64           // valid when Kind == ParamConstant
}

// Width returns the bit width of the param.
func (p ActionParam) Width() int { return p.Range.Width() }

// ErrorFlag is a bit in FieldAction/ContainerAction's error bitmask, per spec §3/§4.4.
type ErrorFlag uint32

const (
	ErrReadAfterWrite ErrorFlag = 1 << iota
	ErrRepeatedWrites
	ErrMultipleActionData
	ErrDifferentOpSize
	ErrBadConditionalSet
	ErrTooManyPHVSources
	ErrPartialOverwrite
	ErrReformatConstant
	ErrUnresolvedRepeatedActionData
	ErrImpossibleAlignment
	ErrIllegalOverwrite
	ErrConstantToActionData
	ErrConstantToHash
	ErrUnknownOpcode
	ErrOperandCountOutOfRange
	ErrPopcountMismatch
)

// ErrorClass is the three-way disposition of spec §4.4's last bullet.
type ErrorClass int

const (
	ClassNone ErrorClass = iota
	ClassRelayout
	ClassConstantPromotion
	ClassFatal
)

// relayoutMask are the flags "Recoverable by re-layout" in spec §4.4.
const relayoutMask = ErrPartialOverwrite | ErrReformatConstant | ErrUnresolvedRepeatedActionData |
	ErrImpossibleAlignment | ErrIllegalOverwrite

// promotionMask are the flags "Recoverable by constant-to-action-data promotion".
const promotionMask = ErrConstantToActionData | ErrConstantToHash

// Classify returns the most severe applicable ErrorClass for a bitmask. Fatal beats
// promotion beats relayout beats none, matching spec §4.4's ordering (a container
// action can carry several flags; the adjustment pipeline must act on the worst one).
func (e ErrorFlag) Classify() ErrorClass {
	if e == 0 {
		return ClassNone
	}
	fatal := e &^ (relayoutMask | promotionMask)
	if fatal != 0 {
		return ClassFatal
	}
	if e&promotionMask != 0 {
		return ClassConstantPromotion
	}
	return ClassRelayout
}

// FieldAction is one high-level field-level instruction, per spec §3.
type FieldAction struct {
	Name   string // opcode mnemonic, kept as a string so instruction selection can stage it
	Op     Opcode
	Write  ActionParam
	Reads  []ActionParam
	Errors ErrorFlag
	// ConstantToAD is set by pkg/adjust's ConstantsToActionData pass once it has
	// rewritten this instruction's constant operand into an ActionDataConstant.
	ConstantToAD bool
}

// IsBitwiseOverwritable mirrors action_analysis.h's FieldAction::is_bitwise_overwritable.
func (f FieldAction) IsBitwiseOverwritable() bool { return f.Op.IsBitwiseOverwritable() }

// IsShift reports whether this is a single or funnel shift.
func (f FieldAction) IsShift() bool { return f.Op.IsShift() }

// Alignment is (write_bits, read_bits, src_slot) for one field-level source's
// contribution to a container, per spec §3.
type Alignment struct {
	WriteBits bitvec.Bitvec
	ReadBits  bitvec.Bitvec
	SrcSlot   int // which read operand (0-based) this came from; -1 for the write itself
}

// TotalAlignment aggregates all Alignments for one source on one container, per spec §3.
type TotalAlignment struct {
	DirectWriteBits   bitvec.Bitvec
	DirectReadBits    bitvec.Bitvec
	ImplicitWriteBits bitvec.Bitvec
	RightShift        int
	IsSrc1            bool
}

// PopcountBalanced checks the TotalAlignment invariant of spec §3:
// popcount(direct_write_bits) == popcount(direct_read_bits).
func (t TotalAlignment) PopcountBalanced() bool {
	return t.DirectWriteBits.PopCount() == t.DirectReadBits.PopCount()
}

// AllWriteBits returns direct_write_bits | implicit_write_bits (spec §8 P1).
func (t TotalAlignment) AllWriteBits() bitvec.Bitvec {
	return t.DirectWriteBits.Union(t.ImplicitWriteBits)
}

// ConstDescriptor records where constant operands land in the immediate word, per the
// ContainerAction "constant descriptor" of spec §3.
type ConstPosition struct {
	Value int64
	Range bitvec.BitRange
}

type ConstDescriptor struct {
	Positions     []ConstPosition
	Merged        int64
	SignExtend    bool
}

// ActionDataDescriptor records the action-data slot consumed by a ContainerAction.
type ActionDataDescriptor struct {
	StartByte  int
	Width      int
	Speciality Speciality
}

// ContainerAction is the per-container aggregate of spec §3.
type ContainerAction struct {
	Container Container
	Op        Opcode
	Errors    ErrorFlag

	PHVSourceCount        int
	ActionDataSourceCount int
	ConstantSourceCount   int

	ActionData ActionDataDescriptor
	Constant   ConstDescriptor

	// PHVAlignment maps each PHV source container that feeds this destination
	// container to its TotalAlignment, per spec §3's phv_alignment multimap.
	PHVAlignment map[Container]TotalAlignment

	ConvertToDepositField    bool
	ConvertToBitmaskedSet    bool
	ConvertToByteRotateMerge bool
	TotalOverwritePossible   bool
	// ImplicitSrc2 marks deposit-field/bitmasked-set variants whose second source is
	// not an explicit operand but the destination container's own current value
	// (spec §4.3 step 3). s1 is always the explicit operand by construction in this
	// solver, so there is no symmetric "implicit s1" case to flag.
	ImplicitSrc2 bool
	Impossible   bool
}

// NewContainerAction returns a ContainerAction with its map initialised.
func NewContainerAction(c Container) *ContainerAction {
	return &ContainerAction{Container: c, PHVAlignment: make(map[Container]TotalAlignment)}
}

// ErrorClass returns the worst applicable disposition across all recorded errors.
func (ca *ContainerAction) ErrorClass() ErrorClass { return ca.Errors.Classify() }

// WriteUnion returns the union of direct+implicit write bits across all sources,
// which spec §8 P1 requires to equal the union of destination AllocSlices.
func (ca *ContainerAction) WriteUnion() bitvec.Bitvec {
	var u bitvec.Bitvec
	for _, ta := range ca.PHVAlignment {
		u = u.Union(ta.AllWriteBits())
	}
	return u
}
