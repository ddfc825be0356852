// Package merge implements Transform & Merge (spec.md §4.9, component C10): the pass
// that turns table-placement decisions (pkg/place) into the final materialised table
// layout — stage-split chaining, gateway/match merge, ATCAM split, detached-attached
// gateways, and always-run action merge.
package merge

import (
	"fmt"
	"sort"

	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/ir"
	"github.com/tofinomau/mau-backend/pkg/place"
)

// Gateway branch tags used by the gateway/match merge and the detached-attached
// synthetic gateway (spec §4.9). Not part of pkg/ir's NextTag constants since they are
// a convention local to this package's gateway handling, not a general IR concept.
const (
	TagTrue  ir.NextTag = "true"
	TagFalse ir.NextTag = "false"
)

// MaterializedTable is one stage-table instance produced by Transform, per spec §4.9:
// a table split across stages becomes several of these chained by "$try_next_stage";
// an ATCAM table becomes several sharing one Partition; a gateway merged with its
// match table becomes one MaterializedTable carrying both tables' actions.
type MaterializedTable struct {
	Name      string
	Source    *ir.Table
	Stage     int
	LogicalID int
	Entries   int
	Next      map[ir.NextTag]ir.TableSeq
	Partition int // ATCAM partition index shared by every way of one ATCAM table; 0 otherwise
	IsDetached bool
}

// Result is the materialised output of Transform.
type Result struct {
	Tables          []MaterializedTable
	ExtendedLiveRanges map[ir.FieldID]int // spec §4.9 always-run merge live-range extension
}

// Transform implements spec §4.9 in full: stage-split chaining, gateway/match merge,
// ATCAM splitting, detached-attached gateway synthesis, and always-run action merging.
// tables is the same table set given to pkg/place; placement is its Result.
func Transform(ctx *device.Context, profile device.Profile, tables map[string]*ir.Table, placement place.Result) (Result, error) {
	var out []MaterializedTable
	names := placedTableNames(placement.Placed)

	for _, name := range names {
		table, ok := tables[name]
		if !ok {
			continue
		}
		if err := RejectDLeft(table); err != nil {
			return Result{}, err
		}
		nodes := nodesOf(placement.Placed, name)
		if len(nodes) == 0 {
			continue
		}

		chain := stageSplitChain(table, nodes)

		if table.IsATCAM {
			chain = splitATCAM(profile, table, chain)
		}

		out = append(out, chain...)
	}

	out = mergeGateways(tables, out)
	out = append(out, detachedAttachedGateways(tables, out)...)

	extended := mergeAlwaysRun(out)

	sort.Slice(out, func(i, j int) bool {
		if out[i].Stage != out[j].Stage {
			return out[i].Stage < out[j].Stage
		}
		return out[i].LogicalID < out[j].LogicalID
	})

	return Result{Tables: out, ExtendedLiveRanges: extended}, nil
}

// placedTableNames returns every distinct table name appearing in the placement
// chain, in the order each was first placed (earliest node first).
func placedTableNames(head *place.Placed) []string {
	var rev []string
	seen := make(map[string]bool)
	for n := head; n != nil; n = n.Prev {
		if !seen[n.Table] {
			seen[n.Table] = true
			rev = append(rev, n.Table)
		}
	}
	// rev is newest-first (walking Prev from the head); reverse for placement order.
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

// nodesOf returns every Placed node for table, ordered earliest stage first. A table
// placed in a single stage returns one node; a table split across stages (spec §4.9
// "A table split across stages becomes a chain") returns one node per stage.
func nodesOf(head *place.Placed, table string) []*place.Placed {
	var rev []*place.Placed
	for n := head; n != nil; n = n.Prev {
		if n.Table == table {
			rev = append(rev, n)
		}
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

// stageSplitChain materialises one Placed chain for a single table into one or more
// MaterializedTables, per spec §4.9: "stage-K's next[\"$try_next_stage\"] points to
// stage-K+1; only the last stage's hit/miss next-table map is populated normally."
func stageSplitChain(table *ir.Table, nodes []*place.Placed) []MaterializedTable {
	out := make([]MaterializedTable, len(nodes))
	for i, n := range nodes {
		mt := MaterializedTable{
			Name:      table.Name,
			Source:    table,
			Stage:     n.Stage,
			LogicalID: n.LogicalID,
			Entries:   n.Entries,
			Next:      map[ir.NextTag]ir.TableSeq{},
		}
		if i == len(nodes)-1 {
			for tag, seq := range table.Next {
				if tag == ir.NextTryNextStage {
					continue
				}
				mt.Next[tag] = seq
			}
		} else {
			mt.Next[ir.NextTryNextStage] = ir.TableSeq{Tables: []string{table.Name}}
		}
		out[i] = mt
	}
	return out
}

// mergeGateways implements spec §4.9's gateway/match merge: a gateway table not
// marked @separate_gateway whose "true" branch names a match table first, placed in
// the same stage, is folded into that match table. The merged table inherits the
// match table's next map; the rest of the gateway's true-branch sequence (what the
// source program says runs after the gateway regardless of the match outcome) is
// distributed into every branch of the merged table so those tables still execute on
// every action path.
func mergeGateways(tables map[string]*ir.Table, mts []MaterializedTable) []MaterializedTable {
	byName := make(map[string][]int) // table name -> indices into mts
	for i, mt := range mts {
		byName[mt.Name] = append(byName[mt.Name], i)
	}

	merged := make(map[int]bool)
	var out []MaterializedTable
	for i, mt := range mts {
		if merged[i] {
			continue
		}
		gwTable := tables[mt.Name]
		if gwTable == nil || !gwTable.IsGateway || gwTable.SeparateGateway {
			out = append(out, mt)
			continue
		}
		matchName, rest := splitTrueBranch(gwTable.Next[TagTrue])
		if matchName == "" {
			out = append(out, mt)
			continue
		}
		idxs, ok := byName[matchName]
		if !ok || len(idxs) == 0 {
			out = append(out, mt)
			continue
		}
		// Merge with the earliest stage occurrence of the match table placed in the
		// same stage as the gateway, which is the only shape table placement ever
		// produces for a gateway/match pair (they are placed together, spec §4.8).
		matchIdx := -1
		for _, j := range idxs {
			if !merged[j] && mts[j].Stage == mt.Stage {
				matchIdx = j
				break
			}
		}
		if matchIdx < 0 {
			out = append(out, mt)
			continue
		}
		match := mts[matchIdx]
		mergedMt := MaterializedTable{
			Name:      gwTable.Name + "+" + match.Name,
			Source:    match.Source,
			Stage:     match.Stage,
			LogicalID: match.LogicalID,
			Entries:   match.Entries,
			Next:      distributeTrueBranch(ir.TableSeq{Tables: rest}, match.Next),
			Partition: match.Partition,
		}
		merged[matchIdx] = true
		out = append(out, mergedMt)
	}
	return out
}

// splitTrueBranch returns the first table named in seq (the match-table merge
// candidate) and the tables that follow it, or "" and nil if seq names no table.
func splitTrueBranch(seq ir.TableSeq) (string, []string) {
	if len(seq.Tables) == 0 {
		return "", nil
	}
	return seq.Tables[0], seq.Tables[1:]
}

// distributeTrueBranch builds the merged table's next map: matchNext with every
// branch's sequence extended by gwTrue, the gateway's true-branch tables that follow
// the merged match table, per spec §4.9.
func distributeTrueBranch(gwTrue ir.TableSeq, matchNext map[ir.NextTag]ir.TableSeq) map[ir.NextTag]ir.TableSeq {
	out := make(map[ir.NextTag]ir.TableSeq, len(matchNext))
	for tag, seq := range matchNext {
		combined := make([]string, 0, len(seq.Tables)+len(gwTrue.Tables))
		combined = append(combined, seq.Tables...)
		combined = append(combined, gwTrue.Tables...)
		out[tag] = ir.TableSeq{Tables: combined}
	}
	if len(out) == 0 && len(gwTrue.Tables) > 0 {
		out[ir.NextHit] = ir.TableSeq{Tables: append([]string{}, gwTrue.Tables...)}
	}
	return out
}

// errUnsupportedDLeft is returned when a table marked DLeft reaches Transform; spec
// §9's open question treats DLeft as out of scope rather than silently mishandling it.
var errUnsupportedDLeft = fmt.Errorf("merge: DLeft tables are not supported")

// RejectDLeft returns an error naming table if it is marked DLeft, per spec §9's open
// question decision (SPEC_FULL.md "Open Questions").
func RejectDLeft(table *ir.Table) error {
	if table.DLeft {
		return fmt.Errorf("%w: table %s", errUnsupportedDLeft, table.Name)
	}
	return nil
}
