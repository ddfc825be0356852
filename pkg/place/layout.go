package place

import (
	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/ir"
)

// PFELocationDefault is the sentinel stored into BackendAttached.PerFlowEnableBit for
// hash-action and keyless tables, which cannot mix enabled/disabled executions across
// their actions and so must use the device's fixed DEFAULT per-flow-enable location
// (spec §4.8 "Hash-action and keyless-table placement force pfe_location = DEFAULT").
const PFELocationDefault = -1

// candidate is one trial placement of a table at a stage, built by tryPlaceTable and
// compared by isBetter before being committed.
type candidate struct {
	table     *ir.Table
	stage     int
	logicalID int
	entries   int
	attached  map[string]int
	resources device.ResourceUsage
	score     tieBreak
}

// tieBreak captures the ordered comparison fields of spec §4.8 step 4's is_better
// rule, reduced to the subset this placer can actually compute without the dominator-
// frontier/control-dominating-set analysis the full compiler runs (those require a
// complete CFG-dominance pass over the table graph, which spec §1's Non-goals places
// outside this backend's scope — the remaining fields still express the spirit of
// "prefer the candidate that unblocks the most future work").
type tieBreak struct {
	stage              int // earliest computed stage: lower is better
	stagePragma        int // earliest @stage pragma: lower is better, MaxInt if absent
	priority           int // placement_priority pragma: higher is better
	sharedAttachedDone int // number of shared-attached tables already completed: higher is better
}

func less(a, b tieBreak) bool {
	if a.stage != b.stage {
		return a.stage < b.stage
	}
	if a.stagePragma != b.stagePragma {
		return a.stagePragma < b.stagePragma
	}
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	return a.sharedAttachedDone > b.sharedAttachedDone
}

func scoreOf(table *ir.Table, stage int, placed *Placed) tieBreak {
	pragma := 1 << 30
	if table.HasStagePragma {
		pragma = table.StagePragma
	}
	done := 0
	for _, extern := range table.AttachedExterns {
		if placed.Contains(extern) {
			done++
		}
	}
	return tieBreak{stage: stage, stagePragma: pragma, priority: table.PlacementPriority, sharedAttachedDone: done}
}

// tryPlaceTable attempts to place table in stage against the given placement history,
// per spec §4.8 step 3: pick the first layout option (modelled here as the requested
// entry count), allocate crossbar / memory / instruction-memory against it, and if
// allocation fails shrink the entry count and retry; if shrinking falls below the
// table's stated minimum, report failure so the caller advances to the next stage.
func tryPlaceTable(table *ir.Table, stage, logicalID int, placed *Placed, mem device.MemoryAllocator, xbar device.CrossbarAllocator, imem device.ImemAllocator) (*Placed, bool) {
	if !xbar.Allocate(table.Name, table.MatchFields) {
		return nil, false
	}

	entries := table.Entries
	if table.HasStagePragma && table.EntriesPragma > 0 {
		entries = table.EntriesPragma
	}
	if entries <= 0 {
		entries = 1
	}

	current := placed.StageUsage(stage)
	for entries >= table.MinEntries && entries > 0 {
		usage, ok := mem.Allocate(table.Name, entries, current)
		if ok && imem.Allocate(stage, len(table.Actions)) {
			attachedEntries := placeAttached(table, placed, entries)
			n := Placed{
				Table:           table.Name,
				Stage:           stage,
				LogicalID:       logicalID,
				Entries:         entries,
				AttachedEntries: attachedEntries,
				StageSplit:      entries < table.Entries,
				Resources:       usage,
				Group:           table.Name,
			}
			next := push(placed, n)
			if table.UsesHashAction || table.IsKeyless {
				forcePFEDefault(table)
			}
			return next, true
		}
		if entries == table.MinEntries {
			break
		}
		entries /= 2
		if entries < table.MinEntries {
			entries = table.MinEntries
		}
	}
	return nil, false
}

// placeAttached records the attached entries for this stage (spec §4.8 step 3b):
// every attached extern of the table gets the match's entry count here, direct or
// shared alike. Shared indirect externs are not deferred to a later stage, and
// "can be split to absorb fewer entries" is not modelled separately from the match's
// own entry-shrink loop.
func placeAttached(table *ir.Table, placed *Placed, entries int) map[string]int {
	out := make(map[string]int)
	for _, name := range table.AttachedExterns {
		out[name] = entries
	}
	return out
}

func forcePFEDefault(table *ir.Table) {
	for _, a := range table.Actions {
		for i := range a.Attached {
			a.Attached[i].PerFlowEnableBit = PFELocationDefault
		}
	}
}
