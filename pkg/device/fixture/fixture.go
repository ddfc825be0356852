// Package fixture provides minimal, budget-based implementations of the
// device.PHVAllocation / device.MemoryAllocator / device.CrossbarAllocator /
// device.ImemAllocator interfaces — the external collaborators spec.md §1 places out
// of scope (PHV allocation, memory allocation, input-crossbar allocation,
// instruction-memory allocation). cmd/mauc uses these, having no real allocator plugin
// wired in; package tests (pkg/adjust, pkg/place) define their own small fakes
// instead. A real deployment replaces the package entirely with its own allocator,
// which is the point of the interfaces in pkg/device.
package fixture

import (
	"sync"

	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/ir"
)

// MapPHVAllocation is a static field-to-AllocSlice map, the simplest possible
// device.PHVAllocation: the CLI's "analyze", "adjust" and "pipeline" subcommands
// populate it directly from the program file's PHV entries rather than consulting a
// real PHV allocator.
type MapPHVAllocation map[ir.FieldID][]ir.AllocSlice

// Slices implements device.PHVAllocation.
func (m MapPHVAllocation) Slices(field ir.FieldID) []ir.AllocSlice {
	return m[field]
}

// BudgetMemory charges a fixed number of SRAM rows per RowsPerEntry match entries
// against a per-stage budget, the simplest resource model that still makes table
// placement's entry-shrink loop (spec §4.8 step 3c) observable.
type BudgetMemory struct {
	Budget       device.ResourceUsage
	RowsPerEntry int // entries packed into one SRAM row; default 1024 if unset
}

// Allocate implements device.MemoryAllocator.
func (m BudgetMemory) Allocate(tableName string, entries int, current device.ResourceUsage) (device.ResourceUsage, bool) {
	perRow := m.RowsPerEntry
	if perRow <= 0 {
		perRow = 1024
	}
	rows := (entries + perRow - 1) / perRow
	if rows < 1 {
		rows = 1
	}
	usage := current.Add(device.ResourceUsage{SRAMRows: rows, LogicalTables: 1})
	if !usage.Fits(m.Budget) {
		return device.ResourceUsage{}, false
	}
	return usage, true
}

// OpenCrossbar always grants input-crossbar lanes — a stand-in for the real
// crossbar allocator (spec §1 Non-goals), sufficient for exercising every other
// component without modelling byte/bit-lane contention.
type OpenCrossbar struct{}

// Allocate implements device.CrossbarAllocator.
func (OpenCrossbar) Allocate(tableName string, fields []ir.FieldID) bool { return true }

// BudgetImem tracks how many action-instruction-memory words each stage has
// consumed, rejecting once MaxWordsPerStage is exceeded.
type BudgetImem struct {
	MaxWordsPerStage int

	mu    sync.Mutex
	usage map[int]int
}

// Allocate implements device.ImemAllocator: charges one instruction-memory word per
// action in the stage's action count.
func (b *BudgetImem) Allocate(stage int, actionCount int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.usage == nil {
		b.usage = make(map[int]int)
	}
	limit := b.MaxWordsPerStage
	if limit <= 0 {
		limit = 1 << 20 // effectively unbounded when unset
	}
	next := b.usage[stage] + actionCount
	if next > limit {
		return false
	}
	b.usage[stage] = next
	return true
}
