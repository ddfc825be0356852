package device

import "github.com/tofinomau/mau-backend/pkg/ir"

// PHVAllocation is the external collaborator that supplies the field-to-container map
// (spec §1 "Non-goals: Choosing the PHV allocation"). Consumed as input by every pass.
type PHVAllocation interface {
	// Slices returns every AllocSlice placing field bits into containers.
	Slices(field ir.FieldID) []ir.AllocSlice
}

// MemoryAllocator is the external collaborator that assigns SRAM/TCAM/MapRAM to a
// table's match entries and attached memories.
type MemoryAllocator interface {
	Allocate(tableName string, entries int, resources ResourceUsage) (ResourceUsage, bool)
}

// CrossbarAllocator is the external collaborator that assigns input-crossbar byte/bit
// lanes to a table's match key and action sources.
type CrossbarAllocator interface {
	Allocate(tableName string, fields []ir.FieldID) bool
}

// ImemAllocator is the external collaborator that assigns instruction-memory addresses
// to a stage's action set.
type ImemAllocator interface {
	Allocate(stage int, actionCount int) bool
}

// ResourceUsage is the per-stage resource tally consulted by table placement (spec
// §4.8 step 1 and §5 "Shared-resource policy").
type ResourceUsage struct {
	SRAMRows       int
	TCAMRows       int
	MapRAMRows     int
	ActionDataBus  int // bytes consumed on the action-data bus
	InstrMemWords  int
	CrossbarBytes  int
	LogicalTables  int
}

// Add returns the element-wise sum of two ResourceUsage values.
func (r ResourceUsage) Add(o ResourceUsage) ResourceUsage {
	return ResourceUsage{
		SRAMRows:      r.SRAMRows + o.SRAMRows,
		TCAMRows:      r.TCAMRows + o.TCAMRows,
		MapRAMRows:    r.MapRAMRows + o.MapRAMRows,
		ActionDataBus: r.ActionDataBus + o.ActionDataBus,
		InstrMemWords: r.InstrMemWords + o.InstrMemWords,
		CrossbarBytes: r.CrossbarBytes + o.CrossbarBytes,
		LogicalTables: r.LogicalTables + o.LogicalTables,
	}
}

// Fits reports whether r is within the given per-stage budget.
func (r ResourceUsage) Fits(budget ResourceUsage) bool {
	return r.SRAMRows <= budget.SRAMRows &&
		r.TCAMRows <= budget.TCAMRows &&
		r.MapRAMRows <= budget.MapRAMRows &&
		r.ActionDataBus <= budget.ActionDataBus &&
		r.InstrMemWords <= budget.InstrMemWords &&
		r.CrossbarBytes <= budget.CrossbarBytes &&
		r.LogicalTables <= budget.LogicalTables
}
