package ir

// ExternKind distinguishes the attached-memory call shapes of spec §4.7.
type ExternKind int

const (
	ExternRegisterExecute ExternKind = iota
	ExternRegisterClear
	ExternCounterCount
	ExternMeterExecute
	ExternLpfExecute
	ExternWredExecute
	ExternSelectorSelect
)

// ExternCall is one `X.execute(index)`-shaped call inside an action, per spec §4.7.
type ExternCall struct {
	Kind       ExternKind
	ExternName string
	Index      Expr
	PreColor   Expr // only for ExternMeterExecute
	Input      Expr // only for ExternLpfExecute / ExternWredExecute
	Indirect   bool // addressed by index vs. by direct hash-dist
}

// MeterType enumerates the STFUL_INST0..3 classification of spec §4.7.
type MeterType int

const (
	StfulInst0 MeterType = iota
	StfulInst1
	StfulInst2
	StfulInst3
)

// BackendAttached carries the per-flow-enable bits and resolved meter-type that
// pkg/attached propagates from an action to its table, per spec §4.7.
type BackendAttached struct {
	ExternName      string
	MeterType       MeterType
	ColorAware      bool
	PerFlowEnableBit int
	PhvInput        *FieldRef // captured for Lpf/Wred per spec §4.7
}

// Action is one table action: a named body of field-level instructions plus any
// attached-memory calls, per spec §3/§4.7.
type Action struct {
	Name            string
	FieldActions    []FieldAction
	Calls           []ExternCall
	ContainerActions map[Container]*ContainerAction
	Attached        []BackendAttached
	AlwaysRun       bool
	Gress           Gress

	// EndStageHint is the stage this action's field live ranges were computed
	// against before always-run merging (spec §4.9 last bullet). It is 0 unless the
	// program sets it; pkg/merge reads it to decide which merged actions'
	// live ranges need extending to the latest original end stage.
	EndStageHint int
}

// Gress distinguishes ingress/egress, needed for always-run-action merging (spec §4.9):
// the hardware has one always-run slot per (stage, gress).
type Gress int

const (
	GressIngress Gress = iota
	GressEgress
)

// Dependency edge kinds, per spec §6 "Input" / §9.
type DepKind int

const (
	DepData DepKind = iota
	DepControl
	DepAnti
	DepMetadataInit
)

// DepEdge is one edge of the table dependency graph.
type DepEdge struct {
	From, To string // table names
	Kind     DepKind
}

// NextTag names a branch of a table's next-table map: "$hit", "$miss", a gateway
// true/false tag, or "$try_next_stage" for a stage-split continuation (spec §4.9).
type NextTag string

const (
	NextHit          NextTag = "$hit"
	NextMiss         NextTag = "$miss"
	NextTryNextStage NextTag = "$try_next_stage"
)

// TableSeq is a next-table sequence: the set of tables that may run after a given
// match outcome, per spec §3/§6.
type TableSeq struct {
	Tables []string
}

// Table is one logical P4 table, the unit that table placement (pkg/place) assigns to
// a (stage, logical_id) pair.
type Table struct {
	Name     string
	Actions  []*Action
	Entries  int // requested entry count (from P4 size property or static-entries list)
	MinEntries int // stated minimum entries placement must meet before advancing a stage
	Next     map[NextTag]TableSeq

	IsGateway      bool
	IsATCAM        bool
	IsKeyless      bool
	DLeft          bool // spec §9 open question: DLeft is out of scope; rejected if set
	UsesHashAction bool
	SeparateGateway bool
	DynamicKeyMasks bool
	DisableAtomicModify bool

	// StagePragma / EntriesPragma implement @stage(n) / @stage(n, entries), spec §6.
	StagePragma    int
	HasStagePragma bool
	EntriesPragma  int

	PlacementPriority int // @pragma placement_priority(int|name)

	// AttachedExterns lists the shared indirect externs this table addresses, used by
	// pkg/attached's shared-extern consistency check (spec §4.7).
	AttachedExterns []string

	Gress Gress

	MatchFields []FieldID // for crossbar allocation
}
