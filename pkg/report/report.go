// Package report implements the diagnostics and stage-advance reporting of spec §7
// and the resumable-placement checkpoint of spec §6: Diagnostics is a mutex-guarded
// accumulator with a sorted accessor, and Plan is a gob-encode/decode checkpoint.
package report

import (
	"sort"
	"sync"

	"github.com/tofinomau/mau-backend/pkg/device"
)

// Diagnostics accumulates device.Diagnostic values across an entire compilation run
// (every pass, not just one pass's device.Context).
type Diagnostics struct {
	mu    sync.Mutex
	items []device.Diagnostic
}

// NewDiagnostics returns an empty accumulator.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{}
}

// Add records one diagnostic.
func (d *Diagnostics) Add(diag device.Diagnostic) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = append(d.items, diag)
}

// AddAll records every diagnostic a device.Context has collected so far.
func (d *Diagnostics) AddAll(ctx *device.Context) {
	for _, diag := range ctx.Diagnostics() {
		d.Add(diag)
	}
}

// All returns a copy of every recorded diagnostic, fatal first.
func (d *Diagnostics) All() []device.Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]device.Diagnostic, len(d.items))
	copy(out, d.items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity > out[j].Severity
	})
	return out
}

// Len returns the number of recorded diagnostics.
func (d *Diagnostics) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

// FatalCount returns how many recorded diagnostics are severity-fatal.
func (d *Diagnostics) FatalCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, diag := range d.items {
		if diag.Severity == device.SevFatal {
			n++
		}
	}
	return n
}

// StageAdvanceLog accumulates the ranked stage-advance reasons of spec §7
// ("ran out of ixbar", "ran out of srams", "container conflict with table T", …),
// collected during placement and surfaced alongside root-cause errors on infeasibility.
type StageAdvanceLog struct {
	mu      sync.Mutex
	entries []string
}

// NewStageAdvanceLog returns an empty log.
func NewStageAdvanceLog() *StageAdvanceLog {
	return &StageAdvanceLog{}
}

// Append records one reason, in the order it was observed.
func (l *StageAdvanceLog) Append(reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, reason)
}

// AppendAll records every reason already collected by a pkg/place.Result's
// StageAdvanceLog field.
func (l *StageAdvanceLog) AppendAll(reasons []string) {
	for _, r := range reasons {
		l.Append(r)
	}
}

// Entries returns a copy of every recorded reason, in observation order (spec §7's
// "ranked list of the stage-advance reasons" — placement already emits them in the
// order each backtrack/advance was decided, which is the rank).
func (l *StageAdvanceLog) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}
