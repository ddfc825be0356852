package device

import (
	"fmt"
	"os"
	"sort"
	"sync"
)

// Severity classifies a Diagnostic per spec §7's taxonomy.
type Severity int

const (
	// SevRecoverable conditions are returned through error bitmasks and handled by a
	// later pass (re-layout, split, promote-to-action-data, hash, merge).
	SevRecoverable Severity = iota
	// SevFatal conditions abort the current pipe once the current pass finishes.
	SevFatal
)

func (s Severity) String() string {
	if s == SevFatal {
		return "fatal"
	}
	return "recoverable"
}

// Diagnostic is one user-visible message, tagged with source location per spec §7.
type Diagnostic struct {
	Severity Severity
	Location string // e.g. table name, action name, or "table T1 / table T2" for a pairwise error
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s] %s: %s", d.Severity, d.Location, d.Message)
}

// Flags mirrors the command-line configuration of spec §6.
type Flags struct {
	DisableLongBranch             bool
	DisableSplitAttached           bool
	TablePlacementInOrder           bool
	ForcedPlacement                  bool
	DisableTablePlacementBackfill   bool
	CreateGraphs                     bool
	AltPHVAlloc                      bool
	Workers                          int
}

// Context is the process-wide state of spec §9 "Global state", made explicit and
// passed to every pass instead of living in package globals.
type Context struct {
	Profile Profile
	Flags   Flags

	mu          sync.Mutex
	diagnostics []Diagnostic
	fatalCount  int
	nextUID     uint64
}

// NewContext constructs a Context for one compilation pipe.
func NewContext(profile Profile, flags Flags) *Context {
	return &Context{Profile: profile, Flags: flags}
}

// NextUID returns a fresh, monotonically increasing unique id, used by IR node arenas.
func (c *Context) NextUID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextUID++
	return c.nextUID
}

// Report records a diagnostic. Fatal diagnostics increment the global counter that the
// outer driver consults after each pass (spec §7 "Propagation policy").
func (c *Context) Report(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diagnostics = append(c.diagnostics, d)
	if d.Severity == SevFatal {
		c.fatalCount++
	}
}

// Fatalf records a fatal diagnostic with a formatted message.
func (c *Context) Fatalf(location, format string, args ...any) {
	c.Report(Diagnostic{Severity: SevFatal, Location: location, Message: fmt.Sprintf(format, args...)})
}

// Recoverablef records a recoverable diagnostic with a formatted message.
func (c *Context) Recoverablef(location, format string, args ...any) {
	c.Report(Diagnostic{Severity: SevRecoverable, Location: location, Message: fmt.Sprintf(format, args...)})
}

// HasFatalErrors reports whether the outer driver should abort after the current pass.
func (c *Context) HasFatalErrors() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fatalCount > 0
}

// Diagnostics returns a stable-sorted copy of all recorded diagnostics, fatal first.
func (c *Context) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.diagnostics))
	copy(out, c.diagnostics)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity > out[j].Severity
	})
	return out
}

// PrintDiagnostics writes all diagnostics to stderr, one per line.
func (c *Context) PrintDiagnostics() {
	for _, d := range c.Diagnostics() {
		fmt.Fprintln(os.Stderr, d.String())
	}
}
