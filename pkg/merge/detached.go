package merge

import (
	"fmt"

	"github.com/tofinomau/mau-backend/pkg/ir"
)

// pfeFieldPrefix names the synthetic per-flow-enable key field a detached-attached
// gateway matches on.
const pfeFieldPrefix = "$pfe."

// detachedAttachedGateways finds every register-action extern whose attached-entries
// placement landed in a stage different from its match table's own stage, and returns
// a synthetic gateway table per spec §4.9's "detached attached" pattern: "a register-
// action that is placed in a separate stage from its match table gets a synthetic
// gateway whose key is the action's per-flow-enable bit and whose sole action invokes
// the attached call."
func detachedAttachedGateways(tables map[string]*ir.Table, mts []MaterializedTable) []MaterializedTable {
	stageOf := make(map[string]int)
	for _, mt := range mts {
		if _, ok := stageOf[mt.Name]; !ok {
			stageOf[mt.Name] = mt.Stage
		}
	}

	var detached []MaterializedTable
	seen := make(map[string]bool)
	for _, mt := range mts {
		table := tables[mt.Source.Name]
		if table == nil {
			continue
		}
		for _, action := range table.Actions {
			for _, call := range action.Calls {
				if call.Kind != ir.ExternRegisterExecute || call.ExternName == "" {
					continue
				}
				attachedStage, ok := stageOf[call.ExternName]
				if !ok || attachedStage == mt.Stage {
					continue
				}
				key := fmt.Sprintf("%s$%s$%d", table.Name, call.ExternName, attachedStage)
				if seen[key] {
					continue
				}
				seen[key] = true
				detached = append(detached, newDetachedGateway(table, call, attachedStage))
			}
		}
	}
	return detached
}

func newDetachedGateway(table *ir.Table, call ir.ExternCall, stage int) MaterializedTable {
	name := fmt.Sprintf("%s$%s$detached", table.Name, call.ExternName)
	gw := &ir.Table{
		Name:        name,
		IsGateway:   true,
		MatchFields: []ir.FieldID{ir.FieldID(pfeFieldPrefix + call.ExternName)},
		Actions: []*ir.Action{{
			Name:  name + "_action",
			Calls: []ir.ExternCall{call},
		}},
	}
	return MaterializedTable{
		Name:       name,
		Source:     gw,
		Stage:      stage,
		LogicalID:  -1, // assigned by a later placement pass over the synthesized gateway
		Next:       map[ir.NextTag]ir.TableSeq{},
		IsDetached: true,
	}
}
