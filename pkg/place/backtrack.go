package place

import (
	"math"

	"github.com/tofinomau/mau-backend/pkg/ir"
)

// backtrackState tracks the remaining backtrack budget and which of the two ordered
// strategies of spec §4.8 ("Backtracking") is active: dependency-only selection first,
// then resource-weighted selection once the budget for the first strategy runs out.
type backtrackState struct {
	limit    int // budget each strategy starts with
	budget   int
	strategy int // 0 = dependency-only, 1 = resource-weighted
}

func newBacktrackState(limit int) *backtrackState {
	return &backtrackState{limit: limit, budget: limit, strategy: 0}
}

// spend consumes one unit of backtrack budget, downgrading from dependency-only to
// resource-weighted once exhausted, per spec §4.8 "Cancellation / timeouts": the
// budget downgrades the strategy rather than aborting outright. Returns false once
// both strategies have exhausted their budget — the caller must accept an incomplete
// placement and report it (spec §4.8's third downgrade step).
func (b *backtrackState) spend() bool {
	if b.budget > 0 {
		b.budget--
		return true
	}
	if b.strategy == 0 {
		b.strategy = 1
		b.budget = b.limit
		return b.spend()
	}
	return false
}

// findBacktrackPoint walks one level of table upward from the just-placed table's
// data-dependency predecessors and returns the chain position immediately before that
// predecessor's earliest placement, so the caller can retry placing it — and
// everything placed after it — starting from a later stage. The full source compiler
// walks the dependency graph transitively until it finds a position that frees enough
// stages; this placer takes a single predecessor as the retry point and re-enters the
// normal stage-advance loop from there (a second backtrack call will walk further up
// if one level isn't enough). Which predecessor is chosen depends on strategy: 0
// (dependency-only) picks the one placed at the highest stage, matching the
// "unblock the most immediate blocker first" reading of spec §4.8's first strategy;
// 1 (resource-weighted) instead picks whichever predecessor's stage is least
// contended, per the second strategy's resource-ratio scoring.
func findBacktrackPoint(placed *Placed, deps []ir.DepEdge, table string, strategy int) *Placed {
	preds := dataPredecessors(deps, table)
	var best *Placed

	if strategy == 1 {
		totals := programDemand(placed)
		bestScore := math.Inf(1)
		for _, p := range preds {
			node := latestNode(placed, p)
			if node == nil {
				continue
			}
			used := stageUsageVector(placed, node.Stage)
			if s := resourceScore(totals, used); s < bestScore {
				bestScore, best = s, node
			}
		}
	} else {
		bestStage := -1
		for _, p := range preds {
			if node := latestNode(placed, p); node != nil && node.Stage > bestStage {
				best, bestStage = node, node.Stage
			}
		}
	}

	if best == nil {
		// No placed predecessor to retry from: rewind past the table's own earliest
		// placement instead.
		target := latestNode(placed, table)
		if target == nil {
			return placed
		}
		return target.Prev
	}
	return earliestNode(placed, best.Table).Prev
}

// latestNode returns the most recently placed node for table, or nil if absent.
func latestNode(placed *Placed, table string) *Placed {
	var found *Placed
	for n := placed; n != nil; n = n.Prev {
		if n.Table == table {
			found = n
			break
		}
	}
	return found
}

// earliestNode returns the first (earliest-placed) node for table in the chain.
func earliestNode(placed *Placed, table string) *Placed {
	var found *Placed
	for n := placed; n != nil; n = n.Prev {
		if n.Table == table {
			found = n
		}
	}
	return found
}

// stageUsageVector extracts the (tcam, sram, logicalIDs, mapRAM) tuple already
// committed in stage, in the same order resourceScore expects.
func stageUsageVector(placed *Placed, stage int) [4]int {
	u := placed.StageUsage(stage)
	return [4]int{u.TCAMRows, u.SRAMRows, u.LogicalTables, u.MapRAMRows}
}

// programDemand sums resource usage across every stage placed so far, used as the
// resource-weighted strategy's stand-in for "the program's total demand" (spec
// §4.8) — the true total requires a full dry-run over every table still unplaced,
// which isn't available mid-placement, so the demand observed so far is used instead.
func programDemand(placed *Placed) resourceTotals {
	max := placed.MaxStage()
	var t resourceTotals
	for s := 0; s <= max; s++ {
		u := placed.StageUsage(s)
		t.tcam += u.TCAMRows
		t.sram += u.SRAMRows
		t.logicalIDs += u.LogicalTables
		t.mapRAM += u.MapRAMRows
	}
	return t
}

// resourceScore implements the resource-weighted strategy's stage scoring: lower is a
// better (less contended) stage to retry into, weighted by the usage-to-demand ratio
// across TCAM, SRAM, logical-id, and map-RAM rows (spec §4.8 "resource-weighted
// selection which scores stages by ... usage against the program's total demand").
func resourceScore(usage resourceTotals, stageUsed [4]int) float64 {
	score := 0.0
	if usage.tcam > 0 {
		score += float64(stageUsed[0]) / float64(usage.tcam)
	}
	if usage.sram > 0 {
		score += float64(stageUsed[1]) / float64(usage.sram)
	}
	if usage.logicalIDs > 0 {
		score += float64(stageUsed[2]) / float64(usage.logicalIDs)
	}
	if usage.mapRAM > 0 {
		score += float64(stageUsed[3]) / float64(usage.mapRAM)
	}
	return score
}

type resourceTotals struct {
	tcam, sram, logicalIDs, mapRAM int
}
