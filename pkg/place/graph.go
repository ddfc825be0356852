package place

import "github.com/tofinomau/mau-backend/pkg/ir"

// GroupPlace wraps one TableSeq whose parent table has already been placed, per
// spec §4.8's "work set of GroupPlace objects". Seq lists the candidate tables that
// may run next; Tag records which next-table branch produced this group, used only
// for diagnostics.
type GroupPlace struct {
	Seq ir.TableSeq
	Tag ir.NextTag
}

// seedWork builds the initial worklist from every table that is never named as a
// target of another table's Next map — the roots of the table graph.
func seedWork(tables map[string]*ir.Table) []GroupPlace {
	referenced := make(map[string]bool)
	for _, t := range tables {
		for _, seq := range t.Next {
			for _, name := range seq.Tables {
				referenced[name] = true
			}
		}
	}
	var roots []string
	for name := range tables {
		if !referenced[name] {
			roots = append(roots, name)
		}
	}
	return []GroupPlace{{Seq: ir.TableSeq{Tables: roots}}}
}

// expandNext returns the GroupPlace entries unlocked by placing table.
func expandNext(table *ir.Table) []GroupPlace {
	var out []GroupPlace
	for tag, seq := range table.Next {
		if tag == ir.NextTryNextStage {
			continue // a split continuation, handled by the placement loop directly
		}
		out = append(out, GroupPlace{Seq: seq, Tag: tag})
	}
	return out
}

// dataPredecessors returns the tables that must be MatchPlaced before name may be
// placed: every table with a DepData edge into name.
func dataPredecessors(deps []ir.DepEdge, name string) []string {
	var out []string
	for _, e := range deps {
		if e.To == name && e.Kind == ir.DepData {
			out = append(out, e.From)
		}
	}
	return out
}

// metadataPredecessors returns the tables that must be fully Placed (not merely
// match_placed) before name may be placed: the reverse-metadata-init dependency of
// spec §4.8 step 2.
func metadataPredecessors(deps []ir.DepEdge, name string) []string {
	var out []string
	for _, e := range deps {
		if e.To == name && e.Kind == ir.DepMetadataInit {
			out = append(out, e.From)
		}
	}
	return out
}

// sameStageConflict reports whether placing name in stage would violate a data
// dependency or anti-dependency against a table already committed to that stage
// (spec invariant P4: stage(T) >= stage(P) for every data predecessor P, strict when
// the edge isn't control-only and a container conflict exists). Container-conflict
// detection is left to the caller's PHVAllocation-driven resource check; here only
// the dependency-kind test is applied.
func sameStageConflict(deps []ir.DepEdge, name string, stageTables []string) bool {
	inStage := make(map[string]bool, len(stageTables))
	for _, t := range stageTables {
		inStage[t] = true
	}
	for _, e := range deps {
		if e.Kind == ir.DepControl {
			continue
		}
		if e.To == name && inStage[e.From] {
			return true
		}
		if e.From == name && inStage[e.To] {
			return true
		}
	}
	return false
}

// readyTables scans every GroupPlace on the worklist and returns the tables that may
// be attempted in the current stage, per spec §4.8 step 2.
func readyTables(tables map[string]*ir.Table, deps []ir.DepEdge, placed *Placed, work []GroupPlace, stage int) []string {
	stageTables := placed.TablesInStage(stage)
	var ready []string
	seen := make(map[string]bool)
	for _, g := range work {
		for _, name := range g.Seq.Tables {
			if name == "" || seen[name] || placed.Contains(name) {
				continue
			}
			t, ok := tables[name]
			if !ok {
				continue
			}
			if t.HasStagePragma && t.StagePragma > stage {
				continue
			}
			ok = true
			for _, pred := range dataPredecessors(deps, name) {
				if !placed.MatchPlaced(pred) {
					ok = false
					break
				}
			}
			if ok {
				for _, pred := range metadataPredecessors(deps, name) {
					if !placed.Contains(pred) {
						ok = false
						break
					}
				}
			}
			if ok && sameStageConflict(deps, name, stageTables) {
				ok = false
			}
			if ok {
				seen[name] = true
				ready = append(ready, name)
			}
		}
	}
	return ready
}

// pruneWork drops every table already in placed from every group's Seq, and drops
// groups left with nothing to offer.
func pruneWork(work []GroupPlace, placed *Placed) []GroupPlace {
	var out []GroupPlace
	for _, g := range work {
		var remaining []string
		for _, name := range g.Seq.Tables {
			if !placed.Contains(name) {
				remaining = append(remaining, name)
			}
		}
		if len(remaining) > 0 {
			out = append(out, GroupPlace{Seq: ir.TableSeq{Tables: remaining}, Tag: g.Tag})
		}
	}
	return out
}
