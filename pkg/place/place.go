package place

import (
	"fmt"
	"sort"

	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/ir"
)

// Result is the outcome of a placement run: the final decision chain plus the ranked
// stage-advance log spec §4.8/§8 says must accompany an infeasibility report (and
// which is also useful diagnostic output on a successful run).
type Result struct {
	Placed         *Placed
	StageAdvanceLog []string
}

// Place runs the greedy-plus-backtracking table placement algorithm of spec §4.8 to
// completion (or to infeasibility) over every table in tables.
func Place(ctx *device.Context, profile device.Profile, tables map[string]*ir.Table, deps []ir.DepEdge, mem device.MemoryAllocator, xbar device.CrossbarAllocator, imem device.ImemAllocator, opts Options) (Result, error) {
	work := seedWork(tables)
	var placed *Placed
	bstate := newBacktrackState(profile.BacktrackLimit)
	var log []string
	nextLogicalID := make(map[int]int) // stage -> next free logical_id

	total := len(tables)
	stage := 0
	for placedCount(placed) < total {
		if stage >= profile.StageCount {
			msg := fmt.Sprintf("ran out of stages with %d/%d tables placed", placedCount(placed), total)
			log = append(log, msg)
			ctx.Fatalf("place", "%s", msg)
			return Result{Placed: placed, StageAdvanceLog: log}, fmt.Errorf("place: infeasible, %d of %d tables could not be placed within %d stages", total-placedCount(placed), total, profile.StageCount)
		}

		ready := readyTables(tables, deps, placed, work, stage)
		if opts.TablePlacementInOrder {
			sort.Strings(ready)
		} else {
			sort.Slice(ready, func(i, j int) bool {
				si, sj := scoreOf(tables[ready[i]], stage, placed), scoreOf(tables[ready[j]], stage, placed)
				return less(si, sj)
			})
		}

		placedOneThisStage := false
		for _, name := range ready {
			t := tables[name]
			lid := nextLogicalID[stage]
			if lid >= profile.LogicalIDCount {
				continue
			}
			candPlaced, ok := tryPlaceTable(t, stage, lid, placed, mem, xbar, imem)
			if !ok {
				log = append(log, fmt.Sprintf("stage %d: table %s did not fit (ran out of srams/tcams/ixbar)", stage, name))
				continue
			}

			if !opts.DisableLongBranch {
				if n := longBranchTagsNeeded(tables, candPlaced, stage); n > profile.LongBranchTags {
					if !bstate.spend() {
						msg := fmt.Sprintf("stage %d: long-branch budget exhausted, accepting incomplete placement", stage)
						log = append(log, msg)
						ctx.Fatalf("place", "%s", msg)
						return Result{Placed: placed, StageAdvanceLog: log}, fmt.Errorf("place: backtrack budget exhausted with %d/%d tables placed", placedCount(placed), total)
					}
					rewound := findBacktrackPoint(placed, deps, name, bstate.strategy)
					placed = rewound
					work = pruneWork(seedAndExpand(tables, placed), placed)
					stage = 0
					if placed != nil {
						stage = placed.MaxStage()
					}
					log = append(log, fmt.Sprintf("stage %d: table %s needed %d long-branch tags > budget %d, backtracking", stage, name, n, profile.LongBranchTags))
					placedOneThisStage = true
					break
				}
			}
			if stagesLeftExceeded(tables, deps, candPlaced, name, profile.StageCount-1-stage) {
				if !bstate.spend() {
					log = append(log, "backtrack budget exhausted, accepting incomplete placement")
					ctx.Fatalf("place", "backtrack budget exhausted with %d/%d tables placed", placedCount(placed), total)
					return Result{Placed: placed, StageAdvanceLog: log}, fmt.Errorf("place: backtrack budget exhausted with %d/%d tables placed", placedCount(placed), total)
				}
				rewound := findBacktrackPoint(candPlaced, deps, name, bstate.strategy)
				placed = rewound
				work = pruneWork(seedAndExpand(tables, placed), placed)
				stage = 0
				if placed != nil {
					stage = placed.MaxStage()
				}
				log = append(log, fmt.Sprintf("table %s's dependency tail exceeds remaining stages, backtracking", name))
				placedOneThisStage = true
				break
			}

			placed = candPlaced
			nextLogicalID[stage] = lid + 1
			work = pruneWork(append(work, expandNext(t)...), placed)
			placedOneThisStage = true
		}

		if !placedOneThisStage {
			stage++
		}
	}

	return Result{Placed: placed, StageAdvanceLog: log}, nil
}

func placedCount(p *Placed) int {
	seen := make(map[string]bool)
	for n := p; n != nil; n = n.Prev {
		seen[n.Table] = true
	}
	return len(seen)
}

// seedAndExpand rebuilds a worklist from scratch consistent with the current placed
// chain: the roots, plus the Next groups of every already-placed table.
func seedAndExpand(tables map[string]*ir.Table, placed *Placed) []GroupPlace {
	work := seedWork(tables)
	done := make(map[string]bool)
	for n := placed; n != nil; n = n.Prev {
		if done[n.Table] {
			continue
		}
		done[n.Table] = true
		if t, ok := tables[n.Table]; ok {
			work = append(work, expandNext(t)...)
		}
	}
	return work
}

// stagesLeftExceeded reports whether the longest chain of data-dependents still
// downstream of name (computed transitively; a table already visited in the walk
// counts as depth 0, which stops cycles) is longer than stagesLeft, per spec §4.8
// "Backtracking": "if the remaining dependency chain of the just-placed table exceeds
// the stages left".
func stagesLeftExceeded(tables map[string]*ir.Table, deps []ir.DepEdge, placed *Placed, name string, stagesLeft int) bool {
	depth := dependencyDepth(deps, name, make(map[string]bool))
	return depth > stagesLeft
}

func dependencyDepth(deps []ir.DepEdge, name string, visiting map[string]bool) int {
	if visiting[name] {
		return 0
	}
	visiting[name] = true
	max := 0
	for _, e := range deps {
		if e.From == name && e.Kind == ir.DepData {
			d := 1 + dependencyDepth(deps, e.To, visiting)
			if d > max {
				max = d
			}
		}
	}
	return max
}

// longBranchTagsNeeded estimates how many long-branch tags this stage would require
// if no further tables joined it, per spec §4.8: one tag per forward reference from a
// table already placed in this stage to a table not yet placed.
func longBranchTagsNeeded(tables map[string]*ir.Table, placed *Placed, stage int) int {
	count := 0
	for _, name := range placed.TablesInStage(stage) {
		t, ok := tables[name]
		if !ok {
			continue
		}
		for tag, seq := range t.Next {
			if tag == ir.NextTryNextStage {
				continue
			}
			for _, n := range seq.Tables {
				if n != "" && !placed.Contains(n) {
					count++
				}
			}
		}
	}
	return count
}
