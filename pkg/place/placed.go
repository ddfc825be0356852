// Package place implements table placement (spec component C9): a greedy allocator
// with backtracking that assigns each logical table to a (stage, logical_id) pair.
package place

import "github.com/tofinomau/mau-backend/pkg/device"

// Placed is one immutable decision in the placement history, per spec §3's "Table
// Placement" glossary entry: (table, stage, logical_id, entries, attached_entries,
// stage_split, resources, prev, group). The chain of Prev links is a persistent list:
// backtracking never mutates an existing node, it rewinds to an earlier one and grows
// a new branch from there (spec §4.8 "Cloning on write").
type Placed struct {
	Table           string
	Stage           int
	LogicalID       int
	Entries         int
	AttachedEntries map[string]int
	StageSplit      bool
	Resources       device.ResourceUsage
	Prev            *Placed
	Group           string
}

// Contains reports whether table has already been placed anywhere in the chain.
func (p *Placed) Contains(table string) bool {
	for n := p; n != nil; n = n.Prev {
		if n.Table == table {
			return true
		}
	}
	return false
}

// MatchPlaced reports whether table's match (as opposed to a later stage-split
// continuation) has been decided. A table's first occurrence walking back from the
// head of the chain is always its earliest-placed stage, which is where the match
// itself lives; later occurrences are $try_next_stage continuations. Simplified
// relative to the source compiler's separate placed/match_placed bit sets: here a
// table is match_placed the moment it appears anywhere in the chain, since every
// placement of a table always creates its first (match) node before any split
// continuation node.
func (p *Placed) MatchPlaced(table string) bool {
	return p.Contains(table)
}

// StageOf returns the earliest stage at which table was placed, or -1 if unplaced.
func (p *Placed) StageOf(table string) int {
	stage := -1
	for n := p; n != nil; n = n.Prev {
		if n.Table == table {
			stage = n.Stage
		}
	}
	return stage
}

// StageUsage sums the resources already committed in the given stage.
func (p *Placed) StageUsage(stage int) device.ResourceUsage {
	var total device.ResourceUsage
	for n := p; n != nil; n = n.Prev {
		if n.Stage == stage {
			total = total.Add(n.Resources)
		}
	}
	return total
}

// TablesInStage lists the distinct tables with at least one node in the given stage.
func (p *Placed) TablesInStage(stage int) []string {
	seen := make(map[string]bool)
	var out []string
	for n := p; n != nil; n = n.Prev {
		if n.Stage == stage && !seen[n.Table] {
			seen[n.Table] = true
			out = append(out, n.Table)
		}
	}
	return out
}

// MaxStage returns the highest stage used anywhere in the chain, or -1 if empty.
func (p *Placed) MaxStage() int {
	max := -1
	for n := p; n != nil; n = n.Prev {
		if n.Stage > max {
			max = n.Stage
		}
	}
	return max
}

// push returns a new chain head with n appended; the existing chain is untouched,
// matching spec §4.8's "clone the suffix up to the mutation point" requirement for
// plain appends (there is nothing to clone: nothing earlier changes).
func push(prev *Placed, n Placed) *Placed {
	n.Prev = prev
	return &n
}
