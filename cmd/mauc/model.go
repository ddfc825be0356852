package main

import (
	"encoding/json"
	"fmt"

	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/device/fixture"
	"github.com/tofinomau/mau-backend/pkg/ir"
	"github.com/tofinomau/mau-backend/pkg/operand"
)

// instructionDTO is one field-level instruction: an opcode mnemonic, a write operand
// (absent for no-dest opcodes like invalidate) and its read operands, in that order
// (spec §3: "the write operand is always first").
type instructionDTO struct {
	Name  string          `json:"name"`
	Op    string          `json:"op"`
	Write *exprDTO        `json:"write,omitempty"`
	Reads json.RawMessage `json:"reads,omitempty"`
}

func (d instructionDTO) toFieldAction() (ir.FieldAction, error) {
	op, ok := ir.ParseOpcode(d.Op)
	if !ok {
		return ir.FieldAction{}, fmt.Errorf("instruction %s: unknown opcode %q", d.Name, d.Op)
	}
	write, err := d.Write.toExpr()
	if err != nil {
		return ir.FieldAction{}, fmt.Errorf("instruction %s: write: %w", d.Name, err)
	}
	reads, err := unmarshalExprs(d.Reads)
	if err != nil {
		return ir.FieldAction{}, fmt.Errorf("instruction %s: reads: %w", d.Name, err)
	}
	return operand.ClassifyInstruction(d.Name, op, write, reads)
}

// callDTO is one attached-memory call (`extern.execute(index)`), per spec §4.7.
type callDTO struct {
	Kind       string   `json:"kind"`
	ExternName string   `json:"extern"`
	Index      *exprDTO `json:"index,omitempty"`
	PreColor   *exprDTO `json:"precolor,omitempty"`
	Input      *exprDTO `json:"input,omitempty"`
	Indirect   bool     `json:"indirect,omitempty"`
}

var externKindByName = map[string]ir.ExternKind{
	"register_execute": ir.ExternRegisterExecute,
	"register_clear":   ir.ExternRegisterClear,
	"counter_count":    ir.ExternCounterCount,
	"meter_execute":    ir.ExternMeterExecute,
	"lpf_execute":      ir.ExternLpfExecute,
	"wred_execute":     ir.ExternWredExecute,
	"selector_select":  ir.ExternSelectorSelect,
}

func (d callDTO) toCall() (ir.ExternCall, error) {
	kind, ok := externKindByName[d.Kind]
	if !ok {
		return ir.ExternCall{}, fmt.Errorf("call %s: unknown kind %q", d.ExternName, d.Kind)
	}
	index, err := d.Index.toExpr()
	if err != nil {
		return ir.ExternCall{}, err
	}
	preColor, err := d.PreColor.toExpr()
	if err != nil {
		return ir.ExternCall{}, err
	}
	input, err := d.Input.toExpr()
	if err != nil {
		return ir.ExternCall{}, err
	}
	return ir.ExternCall{
		Kind: kind, ExternName: d.ExternName, Index: index,
		PreColor: preColor, Input: input, Indirect: d.Indirect,
	}, nil
}

// actionDTO is one table action: named field-level instructions plus any attached
// calls, per spec §3/§4.7.
type actionDTO struct {
	Name         string           `json:"name"`
	Instructions []instructionDTO `json:"instructions"`
	Calls        []callDTO        `json:"calls,omitempty"`
	AlwaysRun    bool             `json:"always_run,omitempty"`
	Gress        string           `json:"gress,omitempty"`
	EndStageHint int              `json:"end_stage_hint,omitempty"`
}

func gressFromString(s string) ir.Gress {
	if s == "egress" {
		return ir.GressEgress
	}
	return ir.GressIngress
}

func (d actionDTO) toAction() (*ir.Action, error) {
	a := &ir.Action{Name: d.Name, AlwaysRun: d.AlwaysRun, Gress: gressFromString(d.Gress), EndStageHint: d.EndStageHint}
	for _, inst := range d.Instructions {
		fa, err := inst.toFieldAction()
		if err != nil {
			return nil, fmt.Errorf("action %s: %w", d.Name, err)
		}
		a.FieldActions = append(a.FieldActions, fa)
	}
	for _, c := range d.Calls {
		call, err := c.toCall()
		if err != nil {
			return nil, fmt.Errorf("action %s: %w", d.Name, err)
		}
		a.Calls = append(a.Calls, call)
	}
	return a, nil
}

// nextSeqDTO is one branch of a table's next-table map, per spec §3/§6.
type nextSeqDTO struct {
	Tag    string   `json:"tag"`
	Tables []string `json:"tables"`
}

// tableDTO is one logical P4 table, per spec §3.
type tableDTO struct {
	Name            string       `json:"name"`
	Actions         []actionDTO  `json:"actions"`
	Entries         int          `json:"entries"`
	MinEntries      int          `json:"min_entries,omitempty"`
	Next            []nextSeqDTO `json:"next,omitempty"`
	IsGateway       bool         `json:"is_gateway,omitempty"`
	IsATCAM         bool         `json:"is_atcam,omitempty"`
	IsKeyless       bool         `json:"is_keyless,omitempty"`
	DLeft           bool         `json:"d_left,omitempty"`
	UsesHashAction  bool         `json:"uses_hash_action,omitempty"`
	StagePragma     *int         `json:"stage_pragma,omitempty"`
	EntriesPragma   int          `json:"entries_pragma,omitempty"`
	Placement       int          `json:"placement_priority,omitempty"`
	AttachedExterns []string     `json:"attached_externs,omitempty"`
	Gress           string       `json:"gress,omitempty"`
	MatchFields     []string     `json:"match_fields,omitempty"`
}

func (d tableDTO) toTable() (*ir.Table, error) {
	t := &ir.Table{
		Name: d.Name, Entries: d.Entries, MinEntries: d.MinEntries,
		IsGateway: d.IsGateway, IsATCAM: d.IsATCAM, IsKeyless: d.IsKeyless,
		DLeft: d.DLeft, UsesHashAction: d.UsesHashAction,
		EntriesPragma: d.EntriesPragma, PlacementPriority: d.Placement,
		AttachedExterns: d.AttachedExterns, Gress: gressFromString(d.Gress),
	}
	if d.StagePragma != nil {
		t.HasStagePragma = true
		t.StagePragma = *d.StagePragma
	}
	for _, f := range d.MatchFields {
		t.MatchFields = append(t.MatchFields, ir.FieldID(f))
	}
	if len(d.Next) > 0 {
		t.Next = make(map[ir.NextTag]ir.TableSeq, len(d.Next))
		for _, n := range d.Next {
			t.Next[ir.NextTag(n.Tag)] = ir.TableSeq{Tables: n.Tables}
		}
	}
	for _, ad := range d.Actions {
		a, err := ad.toAction()
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", d.Name, err)
		}
		t.Actions = append(t.Actions, a)
	}
	return t, nil
}

// depDTO is one table dependency edge, per spec §6's "Input".
type depDTO struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind"`
}

var depKindByName = map[string]ir.DepKind{
	"data": ir.DepData, "control": ir.DepControl,
	"anti": ir.DepAnti, "metadata_init": ir.DepMetadataInit,
}

func (d depDTO) toDepEdge() (ir.DepEdge, error) {
	kind, ok := depKindByName[d.Kind]
	if !ok {
		return ir.DepEdge{}, fmt.Errorf("dependency %s->%s: unknown kind %q", d.From, d.To, d.Kind)
	}
	return ir.DepEdge{From: d.From, To: d.To, Kind: kind}, nil
}

// phvEntryDTO statically assigns a field's slices to containers, standing in for a
// real PHV allocator (spec §1 Non-goals).
type phvEntryDTO struct {
	Field  string `json:"field"`
	Lo     int    `json:"lo"`
	Hi     int    `json:"hi"`
	Width  int    `json:"container_width"`
	Index  int    `json:"container_index"`
	ConLo  int    `json:"container_lo"`
	ConHi  int    `json:"container_hi"`
}

func buildPHVAllocation(entries []phvEntryDTO) fixture.MapPHVAllocation {
	alloc := make(fixture.MapPHVAllocation)
	for _, e := range entries {
		field := ir.FieldID(e.Field)
		alloc[field] = append(alloc[field], ir.AllocSlice{
			Slice:       ir.FieldSlice{Field: field, Lo: e.Lo, Hi: e.Hi},
			Container:   ir.Container{Kind: ir.KindNormal, Index: e.Index, Width: e.Width},
			ContainerLo: e.ConLo, ContainerHi: e.ConHi,
		})
	}
	return alloc
}

// programDTO is the full compilation unit cmd/mauc's place/pipeline subcommands
// consume: every table, the dependency graph between them, and the static PHV
// assignment every field needs before alignment/verification/adjustment can run.
type programDTO struct {
	Tables       []tableDTO    `json:"tables"`
	Dependencies []depDTO      `json:"dependencies,omitempty"`
	PHV          []phvEntryDTO `json:"phv,omitempty"`
}

func (d programDTO) toTables() (map[string]*ir.Table, error) {
	tables := make(map[string]*ir.Table, len(d.Tables))
	for _, td := range d.Tables {
		t, err := td.toTable()
		if err != nil {
			return nil, err
		}
		tables[t.Name] = t
	}
	return tables, nil
}

func (d programDTO) toDeps() ([]ir.DepEdge, error) {
	var out []ir.DepEdge
	for _, dd := range d.Dependencies {
		e, err := dd.toDepEdge()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// defaultMemoryBudget is the CLI's stand-in per-stage resource budget (spec §1 Non-goal
// "choosing the ... memory allocation"): generous enough that only genuinely oversized
// test programs hit it, bounded by the device's own logical-table-per-stage limit.
func defaultMemoryBudget(profile device.Profile) fixture.BudgetMemory {
	return fixture.BudgetMemory{
		Budget:       device.ResourceUsage{SRAMRows: 48, TCAMRows: 24, MapRAMRows: 48, LogicalTables: profile.LogicalIDCount},
		RowsPerEntry: 1024,
	}
}

// defaultImemBudget is the CLI's stand-in instruction-memory allocator (spec §1
// Non-goal "choosing the ... instruction-memory allocation").
func defaultImemBudget() *fixture.BudgetImem {
	return &fixture.BudgetImem{MaxWordsPerStage: 32}
}

// deviceProfile resolves the --device flag: an explicit TOML profile file, or the
// built-in default (pkg/device.DefaultProfile), per spec §6's device.toml input.
func deviceProfile(path string) (device.Profile, error) {
	if path == "" {
		return device.DefaultProfile(), nil
	}
	return device.LoadProfile(path)
}
