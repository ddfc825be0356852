package merge

import (
	"fmt"

	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/ir"
)

// splitATCAM breaks an ATCAM table's chain into `logical_tables_in_stage` parallel
// stage-tables sharing one partition, per spec §4.9: "ATCAM tables are broken into
// logical_tables_in_stage parallel stage-tables sharing a partition." The number of
// ways is derived from how many of profile.ATCAMPartitionEntries one way holds; each
// way gets its own logical_id (LogicalID+way) but all ways of one chain element share
// the element's Partition index.
func splitATCAM(profile device.Profile, table *ir.Table, chain []MaterializedTable) []MaterializedTable {
	partitionSize := profile.ATCAMPartitionEntries
	if partitionSize <= 0 {
		partitionSize = 1
	}
	var out []MaterializedTable
	for partition, mt := range chain {
		ways := (mt.Entries + partitionSize - 1) / partitionSize
		if ways < 1 {
			ways = 1
		}
		entriesLeft := mt.Entries
		for w := 0; w < ways; w++ {
			wayEntries := partitionSize
			if entriesLeft < wayEntries {
				wayEntries = entriesLeft
			}
			entriesLeft -= wayEntries
			way := mt
			way.Name = fmt.Sprintf("%s$way%d", mt.Name, w)
			way.LogicalID = mt.LogicalID + w
			way.Entries = wayEntries
			way.Partition = partition
			if w > 0 {
				// Only way 0 carries the table's externally visible next map; the
				// other ways are purely parallel match lookups into the same
				// partition and never drive control flow on their own.
				way.Next = map[ir.NextTag]ir.TableSeq{}
			}
			out = append(out, way)
		}
	}
	return out
}
