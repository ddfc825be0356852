package place

import (
	"testing"

	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/ir"
)

type fakeMem struct {
	budget device.ResourceUsage
}

func (m fakeMem) Allocate(tableName string, entries int, current device.ResourceUsage) (device.ResourceUsage, bool) {
	rows := (entries + 1023) / 1024
	if rows < 1 {
		rows = 1
	}
	usage := current.Add(device.ResourceUsage{SRAMRows: rows, LogicalTables: 1})
	if !usage.Fits(m.budget) {
		return device.ResourceUsage{}, false
	}
	return usage, true
}

type fakeXbar struct{}

func (fakeXbar) Allocate(tableName string, fields []ir.FieldID) bool { return true }

type fakeImem struct{}

func (fakeImem) Allocate(stage int, actionCount int) bool { return true }

func testProfile() device.Profile {
	p := device.DefaultProfile()
	p.StageCount = 4
	p.LogicalIDCount = 16
	p.LongBranchTags = 8
	p.BacktrackLimit = 50
	return p
}

func simpleTable(name string, next ...string) *ir.Table {
	t := &ir.Table{Name: name, Entries: 512, MinEntries: 1, Actions: []*ir.Action{{Name: name + "_a"}}}
	if len(next) > 0 {
		t.Next = map[ir.NextTag]ir.TableSeq{ir.NextHit: {Tables: next}}
	}
	return t
}

func TestPlaceOrdersByDataDependency(t *testing.T) {
	tables := map[string]*ir.Table{
		"A": simpleTable("A", "B"),
		"B": simpleTable("B"),
	}
	deps := []ir.DepEdge{{From: "A", To: "B", Kind: ir.DepData}}
	ctx := device.NewContext(testProfile(), device.Flags{})

	res, err := Place(ctx, testProfile(), tables, deps, fakeMem{budget: device.ResourceUsage{SRAMRows: 100, LogicalTables: 100}}, fakeXbar{}, fakeImem{}, Options{})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if res.Placed.StageOf("A") > res.Placed.StageOf("B") {
		t.Fatalf("A (stage %d) must not be placed after B (stage %d)", res.Placed.StageOf("A"), res.Placed.StageOf("B"))
	}
	if !res.Placed.Contains("A") || !res.Placed.Contains("B") {
		t.Fatalf("both tables must be placed")
	}
}

func TestPlaceRespectsStagePragmaLowerBound(t *testing.T) {
	a := simpleTable("A")
	a.HasStagePragma = true
	a.StagePragma = 2
	tables := map[string]*ir.Table{"A": a}

	ctx := device.NewContext(testProfile(), device.Flags{})
	res, err := Place(ctx, testProfile(), tables, nil, fakeMem{budget: device.ResourceUsage{SRAMRows: 100, LogicalTables: 100}}, fakeXbar{}, fakeImem{}, Options{})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if res.Placed.StageOf("A") < 2 {
		t.Fatalf("table A must land at stage >= 2, got %d", res.Placed.StageOf("A"))
	}
}

func TestPlaceReportsInfeasibilityWhenStagesExhausted(t *testing.T) {
	tables := make(map[string]*ir.Table)
	var deps []ir.DepEdge
	names := []string{"T0", "T1", "T2", "T3", "T4", "T5"}
	for i, n := range names {
		if i+1 < len(names) {
			tables[n] = simpleTable(n, names[i+1])
			deps = append(deps, ir.DepEdge{From: n, To: names[i+1], Kind: ir.DepData})
		} else {
			tables[n] = simpleTable(n)
		}
	}
	profile := testProfile()
	profile.StageCount = 2 // far fewer stages than the dependency chain needs

	ctx := device.NewContext(profile, device.Flags{})
	_, err := Place(ctx, profile, tables, deps, fakeMem{budget: device.ResourceUsage{SRAMRows: 100, LogicalTables: 100}}, fakeXbar{}, fakeImem{}, Options{})
	if err == nil {
		t.Fatalf("expected infeasibility error when chain exceeds stage count")
	}
}

func TestHashActionForcesDefaultPerFlowEnable(t *testing.T) {
	a := &ir.Action{Name: "act", Attached: []ir.BackendAttached{{ExternName: "m1", PerFlowEnableBit: 3}}}
	tbl := &ir.Table{Name: "T", Entries: 10, MinEntries: 1, Actions: []*ir.Action{a}, UsesHashAction: true}
	tables := map[string]*ir.Table{"T": tbl}

	ctx := device.NewContext(testProfile(), device.Flags{})
	_, err := Place(ctx, testProfile(), tables, nil, fakeMem{budget: device.ResourceUsage{SRAMRows: 100, LogicalTables: 100}}, fakeXbar{}, fakeImem{}, Options{})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if a.Attached[0].PerFlowEnableBit != PFELocationDefault {
		t.Fatalf("hash-action table must force pfe_location=DEFAULT, got %d", a.Attached[0].PerFlowEnableBit)
	}
}

func TestWorkerPoolMergeIsDeterministic(t *testing.T) {
	tables := map[string]*ir.Table{
		"A": simpleTable("A"),
		"B": simpleTable("B"),
		"C": simpleTable("C"),
	}
	mem := fakeMem{budget: device.ResourceUsage{SRAMRows: 100, LogicalTables: 100}}

	for _, workers := range []int{1, 4} {
		wp := NewWorkerPool(workers)
		out := wp.EvaluateAll(tables, 0, 0, nil, mem, fakeXbar{}, fakeImem{}, []string{"A", "B", "C"})
		if len(out) != 3 {
			t.Fatalf("workers=%d: expected 3 successful candidates, got %d", workers, len(out))
		}
		for name := range tables {
			if _, ok := out[name]; !ok {
				t.Fatalf("workers=%d: missing candidate for %s", workers, name)
			}
		}
	}
}
