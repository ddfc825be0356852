package place

// Options mirrors the CLI flags of spec §6's "Flags consumed" table that affect
// table placement.
type Options struct {
	DisableLongBranch           bool
	DisableSplitAttached        bool
	TablePlacementInOrder       bool
	ForcedPlacement             bool
	DisableTablePlacementBackfill bool
	AltPHVAlloc                 bool

	// Workers is a WorkerPool size (spec §4.8 "optional worker-pool variant"). Place
	// does not read it: it evaluates candidates one at a time.
	Workers int
}
