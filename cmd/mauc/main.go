// Command mauc drives the Action Analysis, Instruction Adjustment and Table Placement
// subsystems of a P4-to-Tofino-style backend from a JSON description of a program,
// via a small set of cobra subcommands.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tofinomau/mau-backend/pkg/adjust"
	"github.com/tofinomau/mau-backend/pkg/attached"
	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/device/fixture"
	"github.com/tofinomau/mau-backend/pkg/ir"
	"github.com/tofinomau/mau-backend/pkg/merge"
	"github.com/tofinomau/mau-backend/pkg/place"
	"github.com/tofinomau/mau-backend/pkg/report"
)

func main() {
	var devicePath string

	rootCmd := &cobra.Command{
		Use:   "mauc",
		Short: "MAU action-instruction backend — analysis, adjustment and table placement",
	}
	rootCmd.PersistentFlags().StringVar(&devicePath, "device", "", "Device profile TOML (default: built-in profile)")

	rootCmd.AddCommand(
		newAnalyzeCmd(&devicePath),
		newAdjustCmd(&devicePath),
		newPlaceCmd(&devicePath),
		newPipelineCmd(&devicePath),
		newReportCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mauc:", err)
		os.Exit(1)
	}
}

func readProgram(path string) (programDTO, error) {
	f, err := os.Open(path)
	if err != nil {
		return programDTO{}, err
	}
	defer f.Close()
	var p programDTO
	if err := json.NewDecoder(f).Decode(&p); err != nil {
		return programDTO{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return p, nil
}

// newAnalyzeCmd runs Action Analysis alone (components C1-C5: operand classification,
// instruction selection having already happened at JSON-authoring time, alignment and
// verification) over every action in a program file, reporting each container's
// resulting ContainerAction shape without running adjustment or placement.
func newAnalyzeCmd(devicePath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <program.json>",
		Short: "Classify and verify every action's field-level instructions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := deviceProfile(*devicePath)
			if err != nil {
				return err
			}
			prog, err := readProgram(args[0])
			if err != nil {
				return err
			}
			tables, err := prog.toTables()
			if err != nil {
				return err
			}
			alloc := buildPHVAllocation(prog.PHV)
			ctx := device.NewContext(profile, device.Flags{})

			for _, t := range orderedTableNames(tables) {
				table := tables[t]
				for _, action := range table.Actions {
					reportActionAlignment(ctx, profile, alloc, table.Name, action)
				}
			}
			ctx.PrintDiagnostics()
			if ctx.HasFatalErrors() {
				return fmt.Errorf("analyze: fatal errors encountered")
			}
			return nil
		},
	}
}

func reportActionAlignment(ctx *device.Context, profile device.Profile, alloc fixture.MapPHVAllocation, table string, action *ir.Action) {
	byContainer := groupFieldActionsByContainer(alloc, action.FieldActions)
	for container, fas := range byContainer {
		ca, err := solveContainer(profile, alloc, container, fas)
		if err != nil {
			ctx.Recoverablef(table+"/"+action.Name, "%s: %v", container, err)
			continue
		}
		if ca.Impossible {
			ctx.Fatalf(table+"/"+action.Name, "%s: impossible alignment (errors=%#x)", container, ca.Errors)
			continue
		}
		fmt.Printf("%s/%s %s: op=%s variant=%s errors=%#x\n",
			table, action.Name, container, ca.Op, variantName(ca), ca.Errors)
	}
}

// newAdjustCmd runs Instruction Adjustment (component C6) to a fixpoint on every
// action of a program file.
func newAdjustCmd(devicePath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "adjust <program.json>",
		Short: "Run the instruction-adjustment pipeline to a fixpoint on every action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := deviceProfile(*devicePath)
			if err != nil {
				return err
			}
			prog, err := readProgram(args[0])
			if err != nil {
				return err
			}
			tables, err := prog.toTables()
			if err != nil {
				return err
			}
			alloc := buildPHVAllocation(prog.PHV)
			ctx := device.NewContext(profile, device.Flags{})
			pipeline := adjust.NewPipeline()
			resolver := attached.NewResolver(ctx)

			for _, name := range orderedTableNames(tables) {
				table := tables[name]
				for _, action := range table.Actions {
					iterations, err := pipeline.RunToFixpoint(ctx, alloc, action)
					if err != nil {
						return fmt.Errorf("%s/%s: %w", name, action.Name, err)
					}
					resolver.ResolveAction(name, action)
					attached.CollapseTempHash(action)
					fmt.Printf("%s/%s: converged after %d pass iteration(s), %d field action(s)\n",
						name, action.Name, iterations, len(action.FieldActions))
				}
			}
			ctx.PrintDiagnostics()
			if ctx.HasFatalErrors() {
				return fmt.Errorf("adjust: fatal errors encountered")
			}
			return nil
		},
	}
}

// newPlaceCmd runs Table Placement (component C9) over every table in a program
// file and prints the resulting (stage, logical_id) assignment.
func newPlaceCmd(devicePath *string) *cobra.Command {
	var workers int
	var disableLongBranch, disableSplitAttached, inOrder, forced, disableBackfill, altPHV bool

	cmd := &cobra.Command{
		Use:   "place <program.json>",
		Short: "Place every table into (stage, logical_id) slots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := deviceProfile(*devicePath)
			if err != nil {
				return err
			}
			prog, err := readProgram(args[0])
			if err != nil {
				return err
			}
			tables, err := prog.toTables()
			if err != nil {
				return err
			}
			deps, err := prog.toDeps()
			if err != nil {
				return err
			}

			flags := device.Flags{
				DisableLongBranch: disableLongBranch, DisableSplitAttached: disableSplitAttached,
				TablePlacementInOrder: inOrder, ForcedPlacement: forced,
				DisableTablePlacementBackfill: disableBackfill, AltPHVAlloc: altPHV, Workers: workers,
			}
			ctx := device.NewContext(profile, flags)
			opts := place.Options{
				DisableLongBranch: disableLongBranch, DisableSplitAttached: disableSplitAttached,
				TablePlacementInOrder: inOrder, ForcedPlacement: forced,
				DisableTablePlacementBackfill: disableBackfill, AltPHVAlloc: altPHV, Workers: workers,
			}

			mem := defaultMemoryBudget(profile)
			xbar := fixture.OpenCrossbar{}
			imem := defaultImemBudget()

			result, err := place.Place(ctx, profile, tables, deps, mem, xbar, imem, opts)
			if err != nil {
				return err
			}
			printPlacement(result)
			for _, reason := range result.StageAdvanceLog {
				fmt.Fprintln(os.Stderr, "stage-advance:", reason)
			}
			ctx.PrintDiagnostics()
			return nil
		},
	}
	bindPlacementFlags(cmd, &workers, &disableLongBranch, &disableSplitAttached, &inOrder, &forced, &disableBackfill, &altPHV)
	return cmd
}

func bindPlacementFlags(cmd *cobra.Command, workers *int, disableLongBranch, disableSplitAttached, inOrder, forced, disableBackfill, altPHV *bool) {
	cmd.Flags().IntVar(workers, "workers", 0, "Worker-pool size passed to placement; placement itself evaluates candidates sequentially")
	cmd.Flags().BoolVar(disableLongBranch, "disable-long-branch", false, "Disable long-branch tag allocation")
	cmd.Flags().BoolVar(disableSplitAttached, "disable-split-attached", false, "Disable splitting attached tables across stages")
	cmd.Flags().BoolVar(inOrder, "table-placement-in-order", false, "Force placement in program order")
	cmd.Flags().BoolVar(forced, "forced-placement", false, "Passed to placement but not read by it; @stage pragmas act as a lower bound either way")
	cmd.Flags().BoolVar(disableBackfill, "disable-table-placement-backfill", false, "Disable backfilling earlier stages")
	cmd.Flags().BoolVar(altPHV, "alt-phv-alloc", false, "Passed to placement but not read by it; there is one PHV-allocation flow")
}

func printPlacement(result place.Result) {
	var nodes []*place.Placed
	for n := result.Placed; n != nil; n = n.Prev {
		nodes = append(nodes, n)
	}
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
	for _, n := range nodes {
		fmt.Printf("stage=%d logical_id=%d table=%s entries=%d\n", n.Stage, n.LogicalID, n.Table, n.Entries)
	}
}

// newPipelineCmd runs the full backend end to end: adjustment, then placement, then
// Transform & Merge (component C10), printing the final materialized table list.
func newPipelineCmd(devicePath *string) *cobra.Command {
	var workers int
	var disableLongBranch, disableSplitAttached, inOrder, forced, disableBackfill, altPHV bool
	var savePlan string

	cmd := &cobra.Command{
		Use:   "pipeline <program.json>",
		Short: "Run adjustment, placement and transform/merge end to end",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := deviceProfile(*devicePath)
			if err != nil {
				return err
			}
			prog, err := readProgram(args[0])
			if err != nil {
				return err
			}
			tables, err := prog.toTables()
			if err != nil {
				return err
			}
			deps, err := prog.toDeps()
			if err != nil {
				return err
			}
			alloc := buildPHVAllocation(prog.PHV)

			flags := device.Flags{
				DisableLongBranch: disableLongBranch, DisableSplitAttached: disableSplitAttached,
				TablePlacementInOrder: inOrder, ForcedPlacement: forced,
				DisableTablePlacementBackfill: disableBackfill, AltPHVAlloc: altPHV, Workers: workers,
			}
			ctx := device.NewContext(profile, flags)
			pipeline := adjust.NewPipeline()
			resolver := attached.NewResolver(ctx)

			for _, name := range orderedTableNames(tables) {
				for _, action := range tables[name].Actions {
					if _, err := pipeline.RunToFixpoint(ctx, alloc, action); err != nil {
						return fmt.Errorf("%s/%s: %w", name, action.Name, err)
					}
					resolver.ResolveAction(name, action)
					attached.CollapseTempHash(action)
				}
			}
			if ctx.HasFatalErrors() {
				ctx.PrintDiagnostics()
				return fmt.Errorf("pipeline: fatal adjustment errors")
			}

			opts := place.Options{
				DisableLongBranch: disableLongBranch, DisableSplitAttached: disableSplitAttached,
				TablePlacementInOrder: inOrder, ForcedPlacement: forced,
				DisableTablePlacementBackfill: disableBackfill, AltPHVAlloc: altPHV, Workers: workers,
			}
			mem := defaultMemoryBudget(profile)
			xbar := fixture.OpenCrossbar{}
			imem := defaultImemBudget()

			placement, err := place.Place(ctx, profile, tables, deps, mem, xbar, imem, opts)
			if err != nil {
				return err
			}

			merged, err := merge.Transform(ctx, profile, tables, placement)
			if err != nil {
				return err
			}

			for _, mt := range merged.Tables {
				fmt.Printf("stage=%d logical_id=%d table=%s entries=%d detached=%v\n",
					mt.Stage, mt.LogicalID, mt.Name, mt.Entries, mt.IsDetached)
			}
			for field, stage := range merged.ExtendedLiveRanges {
				fmt.Printf("extended live range: field=%s until stage=%d\n", field, stage)
			}

			if savePlan != "" {
				nextStage := 0
				if placement.Placed != nil {
					nextStage = placement.Placed.Stage + 1
				}
				plan := report.FromPlaced(placement.Placed, nextStage)
				if err := report.SavePlan(savePlan, plan); err != nil {
					return err
				}
				fmt.Println("plan saved to", savePlan)
			}

			ctx.PrintDiagnostics()
			return nil
		},
	}
	bindPlacementFlags(cmd, &workers, &disableLongBranch, &disableSplitAttached, &inOrder, &forced, &disableBackfill, &altPHV)
	cmd.Flags().StringVar(&savePlan, "save-plan", "", "Write the resulting placement as a resumable plan file")
	return cmd
}

// newReportCmd dumps a saved plan file (report.SavePlan's gob format) as a
// human-readable stage table.
func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <plan.gob>",
		Short: "Print a saved placement plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := report.LoadPlan(args[0])
			if err != nil {
				return err
			}
			for _, r := range plan.Records {
				fmt.Printf("stage=%d logical_id=%d table=%s entries=%d\n", r.Stage, r.LogicalID, r.Table, r.Entries)
			}
			fmt.Printf("next_stage=%d\n", plan.NextStage)
			return nil
		},
	}
}

// orderedTableNames returns table names sorted, so command output and diagnostics are
// deterministic across runs (spec §8 P7).
func orderedTableNames(tables map[string]*ir.Table) []string {
	names := make([]string, 0, len(tables))
	for n := range tables {
		names = append(names, n)
	}
	sortStrings(names)
	return names
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
