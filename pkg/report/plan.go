package report

import (
	"encoding/gob"
	"os"

	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/place"
)

// PlacedRecord is one flattened, gob-friendly snapshot of a place.Placed node, stored
// earliest-to-latest. gob cannot round-trip place.Placed's pointer chain directly
// (spec §4.8's persistent list is an in-memory structure, not a wire format), so Plan
// stores the flattened form and rebuilds the chain on load.
type PlacedRecord struct {
	Table           string
	Stage           int
	LogicalID       int
	Entries         int
	AttachedEntries map[string]int
	StageSplit      bool
	Resources       device.ResourceUsage
	Group           string
}

// Plan is a resumable table-placement checkpoint (spec §6's persistent-plan
// requirement), letting a long table-placement run resume from the last committed
// decision instead of restarting from scratch.
type Plan struct {
	Records   []PlacedRecord
	NextStage int
}

// FromPlaced flattens a place.Placed chain into a Plan, earliest node first.
func FromPlaced(head *place.Placed, nextStage int) Plan {
	var rev []PlacedRecord
	for n := head; n != nil; n = n.Prev {
		rev = append(rev, PlacedRecord{
			Table:           n.Table,
			Stage:           n.Stage,
			LogicalID:       n.LogicalID,
			Entries:         n.Entries,
			AttachedEntries: n.AttachedEntries,
			StageSplit:      n.StageSplit,
			Resources:       n.Resources,
			Group:           n.Group,
		})
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return Plan{Records: rev, NextStage: nextStage}
}

// ToPlaced rebuilds a place.Placed chain from p, in the same order it was flattened.
func (p Plan) ToPlaced() *place.Placed {
	var head *place.Placed
	for _, r := range p.Records {
		head = &place.Placed{
			Table:           r.Table,
			Stage:           r.Stage,
			LogicalID:       r.LogicalID,
			Entries:         r.Entries,
			AttachedEntries: r.AttachedEntries,
			StageSplit:      r.StageSplit,
			Resources:       r.Resources,
			Group:           r.Group,
			Prev:            head,
		}
	}
	return head
}

// SavePlan writes a Plan to path via gob.
func SavePlan(path string, p Plan) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(p)
}

// LoadPlan reads a Plan previously written by SavePlan.
func LoadPlan(path string) (Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return Plan{}, err
	}
	defer f.Close()
	var p Plan
	err = gob.NewDecoder(f).Decode(&p)
	return p, err
}
