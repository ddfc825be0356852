package ir

// Expr is the tagged-union expression tree that instruction selection (pkg/select)
// and the operand classifier (pkg/operand) walk. Spec §9 "Polymorphism" describes the
// original as a visitor over a C++ class hierarchy; here it's a small closed interface
// with a type switch at each pass, the idiomatic Go rendition of the same dispatch.
type Expr interface {
	ExprKind() ExprKind
	Width() int
}

// ExprKind tags the concrete Expr type without needing a type assertion everywhere.
type ExprKind int

const (
	KindField ExprKind = iota
	KindSlice
	KindMember
	KindConstant
	KindActionArg
	KindActionDataConstant
	KindAttachedOutput
	KindHashDist
	KindRandomNumber
	KindStatefulCounter
	KindBinOp
	KindUnOp
	KindTernary
	KindMultiOperand
)

// FieldRef is a reference to a PHV-allocated field.
type FieldRef struct {
	Field    FieldID
	BitWidth int
}

func (f *FieldRef) ExprKind() ExprKind { return KindField }
func (f *FieldRef) Width() int         { return f.BitWidth }

// Slice is a contiguous bit-range view of a wider expression (spec §4.2 "Wrapping
// expressions — bit slice, reinterpret cast — propagate through").
type Slice struct {
	Base Expr
	Lo   int
	Hi   int
}

func (s *Slice) ExprKind() ExprKind { return KindSlice }
func (s *Slice) Width() int         { return s.Hi - s.Lo + 1 }

// Member is a reinterpret-cast-like projection (e.g. a header field view) that
// propagates operand classification through to Base, per spec §4.2.
type Member struct {
	Base     Expr
	BitWidth int
}

func (m *Member) ExprKind() ExprKind { return KindMember }
func (m *Member) Width() int         { return m.BitWidth }

// Constant is a literal value.
type Constant struct {
	Value    int64
	BitWidth int
	Signed   bool
}

func (c *Constant) ExprKind() ExprKind { return KindConstant }
func (c *Constant) Width() int         { return c.BitWidth }

// ActionArg is a reference to an action parameter (action-data), classified ACTION_DATA.
type ActionArg struct {
	Name     string
	BitWidth int
}

func (a *ActionArg) ExprKind() ExprKind { return KindActionArg }
func (a *ActionArg) Width() int         { return a.BitWidth }

// ActionDataConstant is a compiler-synthesised action-data operand keyed by
// (action_name, container, container_bits), created by pkg/adjust's ConstantsToActionData
// pass (spec §4.6 item 5).
type ActionDataConstant struct {
	ActionName string
	Container  Container
	Bits       [2]int // [lo, hi] within the container
	BitWidth   int
}

func (a *ActionDataConstant) ExprKind() ExprKind { return KindActionDataConstant }
func (a *ActionDataConstant) Width() int         { return a.BitWidth }

// AttachedOutput is a reference to an attached memory's output (meter/counter/register
// ALU result), consumed by pkg/attached.
type AttachedOutput struct {
	ExternName string
	BitWidth   int
	Speciality Speciality
}

func (a *AttachedOutput) ExprKind() ExprKind { return KindAttachedOutput }
func (a *AttachedOutput) Width() int         { return a.BitWidth }

// HashDist is a value delivered on the hash-distribution bus, per spec's GLOSSARY.
type HashDist struct {
	CanonicalForm string // used by pkg/attached to compare shared-extern index expressions
	BitWidth      int
}

func (h *HashDist) ExprKind() ExprKind { return KindHashDist }
func (h *HashDist) Width() int         { return h.BitWidth }

// RandomNumber is a reference to the device's random generator.
type RandomNumber struct {
	BitWidth int
}

func (r *RandomNumber) ExprKind() ExprKind { return KindRandomNumber }
func (r *RandomNumber) Width() int         { return r.BitWidth }

// StatefulCounter is a reference to a stateful-ALU counter output.
type StatefulCounter struct {
	ExternName string
	BitWidth   int
}

func (s *StatefulCounter) ExprKind() ExprKind { return KindStatefulCounter }
func (s *StatefulCounter) Width() int         { return s.BitWidth }

// BinOpKind enumerates the P4-level binary operators instruction selection matches on
// (spec §4.5's table).
type BinOpKind int

const (
	BinAnd BinOpKind = iota
	BinOr
	BinXor
	BinAdd
	BinSatAdd
	BinSub
	BinShl
	BinShr // signedness decided by the operand type, not the opcode
)

// BinOp is a P4-level binary expression, the input to pkg/select's bottom-up rewrite.
type BinOp struct {
	Kind        BinOpKind
	LHS, RHS    Expr
	Signed      bool
	Saturating  bool
	BitWidth    int
}

func (b *BinOp) ExprKind() ExprKind { return KindBinOp }
func (b *BinOp) Width() int         { return b.BitWidth }

// UnOpKind enumerates the unary operators.
type UnOpKind int

const (
	UnNot UnOpKind = iota // bitwise complement
	UnNeg                  // arithmetic negation
)

// UnOp is a P4-level unary expression.
type UnOp struct {
	Kind     UnOpKind
	Operand  Expr
	BitWidth int
}

func (u *UnOp) ExprKind() ExprKind { return KindUnOp }
func (u *UnOp) Width() int         { return u.BitWidth }

// CompareKind enumerates the comparison operators a Ternary's condition may use.
type CompareKind int

const (
	CmpEq CompareKind = iota
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

// Ternary is `cond ? t : f`, the input to min/max/conditionally-set synthesis (spec §4.5).
type Ternary struct {
	Cmp      CompareKind
	CmpLHS   Expr
	CmpRHS   Expr
	IfTrue   Expr
	IfFalse  Expr
	Signed   bool
	BitWidth int
}

func (t *Ternary) ExprKind() ExprKind { return KindTernary }
func (t *Ternary) Width() int         { return t.BitWidth }

// MultiOperand names a container directly rather than any one field placed in it, per
// spec §4.6 item 7: once MergeInstructions folds several field-level instructions on
// the same container back into one ALU instruction, the result's destination no
// longer belongs to a single field — it is the container itself.
type MultiOperand struct {
	Container Container
}

func (m *MultiOperand) ExprKind() ExprKind { return KindMultiOperand }
func (m *MultiOperand) Width() int         { return m.Container.Width }
