package merge

import (
	"fmt"

	"github.com/tofinomau/mau-backend/pkg/ir"
)

// StageGress identifies one always-run slot: the hardware has exactly one per
// (stage, gress), per spec §4.9's last bullet.
type StageGress struct {
	Stage int
	Gress ir.Gress
}

// mergeAlwaysRun finds every always-run action sharing a (stage, gress) slot across
// the materialised tables and folds them into a single action body, per spec §4.9:
// "Always-run actions in the same stage and gress are merged into a single action
// body because the hardware has one always-run slot per (stage, gress)." It returns
// the set of fields whose live range must be extended to the latest original end
// stage among the merged actions ("slices whose live range ended at any of the merged
// actions are extended to the maximum original end stage") — reported rather than
// applied directly, since AllocSlice.Live is owned by the PHV allocator, an external
// collaborator per spec §1's Non-goals.
func mergeAlwaysRun(mts []MaterializedTable) map[ir.FieldID]int {
	groups := make(map[StageGress][]*ir.Action)
	for _, mt := range mts {
		if mt.Source == nil {
			continue
		}
		for _, a := range mt.Source.Actions {
			if a.AlwaysRun {
				key := StageGress{Stage: mt.Stage, Gress: a.Gress}
				groups[key] = append(groups[key], a)
			}
		}
	}

	extended := make(map[ir.FieldID]int)
	for key, actions := range groups {
		if len(actions) <= 1 {
			continue
		}
		maxEnd := 0
		for _, a := range actions {
			if a.EndStageHint > maxEnd {
				maxEnd = a.EndStageHint
			}
		}
		merged := &ir.Action{
			Name:         fmt.Sprintf("always_run$stage%d$gress%d", key.Stage, int(key.Gress)),
			AlwaysRun:    true,
			Gress:        key.Gress,
			EndStageHint: maxEnd,
		}
		for _, a := range actions {
			merged.FieldActions = append(merged.FieldActions, a.FieldActions...)
			merged.Calls = append(merged.Calls, a.Calls...)
			if a.EndStageHint < maxEnd {
				for _, fa := range a.FieldActions {
					if f, ok := fa.Write.Expr.(*ir.FieldRef); ok {
						extended[f.Field] = maxEnd
					}
				}
			}
		}
		replaceAlwaysRun(mts, actions, merged)
	}
	return extended
}

// replaceAlwaysRun drops every action in originals from whichever table's Actions
// list it lives in, putting merged in place of the first occurrence encountered.
func replaceAlwaysRun(mts []MaterializedTable, originals []*ir.Action, merged *ir.Action) {
	isOriginal := func(a *ir.Action) bool {
		for _, o := range originals {
			if a == o {
				return true
			}
		}
		return false
	}

	placedMerged := false
	for _, mt := range mts {
		if mt.Source == nil {
			continue
		}
		kept := mt.Source.Actions[:0]
		for _, a := range mt.Source.Actions {
			if isOriginal(a) {
				if !placedMerged {
					kept = append(kept, merged)
					placedMerged = true
				}
				continue
			}
			kept = append(kept, a)
		}
		mt.Source.Actions = kept
	}
}
