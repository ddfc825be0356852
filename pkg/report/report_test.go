package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/ir"
	"github.com/tofinomau/mau-backend/pkg/place"
)

func TestDiagnosticsSortsFatalFirst(t *testing.T) {
	d := NewDiagnostics()
	d.Add(device.Diagnostic{Severity: device.SevRecoverable, Message: "r1"})
	d.Add(device.Diagnostic{Severity: device.SevFatal, Message: "f1"})
	all := d.All()
	if len(all) != 2 || all[0].Severity != device.SevFatal {
		t.Fatalf("expected fatal first, got %+v", all)
	}
	if d.FatalCount() != 1 {
		t.Fatalf("expected 1 fatal diagnostic, got %d", d.FatalCount())
	}
}

func TestStageAdvanceLogPreservesOrder(t *testing.T) {
	l := NewStageAdvanceLog()
	l.AppendAll([]string{"ran out of srams", "ran out of ixbar"})
	got := l.Entries()
	if len(got) != 2 || got[0] != "ran out of srams" || got[1] != "ran out of ixbar" {
		t.Fatalf("unexpected entries: %v", got)
	}
}

func TestPlanRoundTripsThroughPlacedChain(t *testing.T) {
	head := &place.Placed{Table: "A", Stage: 0, LogicalID: 0, Entries: 10}
	head = &place.Placed{Table: "B", Stage: 1, LogicalID: 0, Entries: 20, Prev: head}

	plan := FromPlaced(head, 2)
	if len(plan.Records) != 2 || plan.Records[0].Table != "A" || plan.Records[1].Table != "B" {
		t.Fatalf("unexpected flattened records: %+v", plan.Records)
	}

	rebuilt := plan.ToPlaced()
	if rebuilt.Table != "B" || rebuilt.Prev.Table != "A" {
		t.Fatalf("rebuilt chain has wrong order: %+v", rebuilt)
	}
}

func TestSaveLoadPlanRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.gob")
	head := &place.Placed{Table: "A", Stage: 0, LogicalID: 0, Entries: 10}
	plan := FromPlaced(head, 1)

	if err := SavePlan(path, plan); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected plan file to exist: %v", err)
	}
	loaded, err := LoadPlan(path)
	if err != nil {
		t.Fatalf("LoadPlan: %v", err)
	}
	if len(loaded.Records) != 1 || loaded.Records[0].Table != "A" || loaded.NextStage != 1 {
		t.Fatalf("unexpected loaded plan: %+v", loaded)
	}
}

func TestWriteDependencyGraphEmitsDot(t *testing.T) {
	var buf bytes.Buffer
	deps := []ir.DepEdge{
		{From: "T2", To: "T3", Kind: ir.DepControl},
		{From: "T1", To: "T2", Kind: ir.DepData},
	}
	if err := WriteDependencyGraph(&buf, deps); err != nil {
		t.Fatalf("WriteDependencyGraph: %v", err)
	}
	out := buf.String()
	if !bytes.Contains(buf.Bytes(), []byte(`"T1" -> "T2"`)) {
		t.Fatalf("expected T1->T2 edge in output:\n%s", out)
	}
	if !bytes.Contains(buf.Bytes(), []byte("style=dashed")) {
		t.Fatalf("expected control edge rendered dashed:\n%s", out)
	}
}
