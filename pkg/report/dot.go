package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/tofinomau/mau-backend/pkg/ir"
)

// depKindLabel names a DepEdge.Kind for the dot edge label.
func depKindLabel(k ir.DepKind) string {
	switch k {
	case ir.DepData:
		return "data"
	case ir.DepControl:
		return "control"
	case ir.DepAnti:
		return "anti"
	case ir.DepMetadataInit:
		return "metadata-init"
	default:
		return "unknown"
	}
}

// WriteDependencyGraph emits a GraphViz .dot rendering of the table dependency graph
// to w. No cmd/mauc subcommand calls it; there is no --create-graphs flag. No
// GraphViz-family Go library exists anywhere in the retrieval pack, so this small
// stdlib writer is the justified exception to "never fall back to the standard
// library" (see DESIGN.md).
func WriteDependencyGraph(w io.Writer, deps []ir.DepEdge) error {
	sorted := make([]ir.DepEdge, len(deps))
	copy(sorted, deps)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].From != sorted[j].From {
			return sorted[i].From < sorted[j].From
		}
		if sorted[i].To != sorted[j].To {
			return sorted[i].To < sorted[j].To
		}
		return sorted[i].Kind < sorted[j].Kind
	})

	if _, err := fmt.Fprintln(w, "digraph tables {"); err != nil {
		return err
	}
	for _, e := range sorted {
		style := "solid"
		if e.Kind == ir.DepControl {
			style = "dashed"
		}
		if _, err := fmt.Fprintf(w, "  %q -> %q [label=%q, style=%s];\n", e.From, e.To, depKindLabel(e.Kind), style); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}
