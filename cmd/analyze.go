package cmd

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"treeline/arbor/internal/audit"
	"treeline/arbor/internal/db"
)

var (
	checkLimit  int
	statsTopN   int
	checkRepair bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify path, level, children count and family of every node",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if checkLimit < 0 {
			return fmt.Errorf("--limit must not be negative, got %d", checkLimit)
		}
		e, d, err := OpenEngine(true)
		if err != nil {
			return err
		}
		defer d.Close()

		ctx := cmd.Context()
		if checkRepair {
			if _, err := e.RepairAll(ctx); err != nil {
				return fmt.Errorf("repairing: %w", err)
			}
		}

		snap, err := audit.SnapshotFromDB(ctx, d)
		if err != nil {
			return fmt.Errorf("loading tree: %w", err)
		}
		report := audit.Check(snap, audit.CheckConfig{
			FamilyLevel: e.Config().FamilyLevel,
			Family:      d.Schema().Family,
		})

		if jsonOut {
			if err := printJSON(report); err != nil {
				return err
			}
		} else {
			printCheck(report)
		}
		if !report.Consistent() {
			return fmt.Errorf("%d violation(s) in %d node(s)", len(report.Violations), report.AffectedNodes)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the stored forest: trees, depth, leaves, families",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if statsTopN < 0 {
			return fmt.Errorf("--top-n must not be negative, got %d", statsTopN)
		}
		_, d, err := OpenEngine(true)
		if err != nil {
			return err
		}
		defer d.Close()

		snap, err := audit.SnapshotFromDB(cmd.Context(), d)
		if err != nil {
			return fmt.Errorf("loading tree: %w", err)
		}
		stats := audit.ComputeStats(snap, statsTopN)
		if jsonOut {
			return printJSON(stats)
		}
		printStats(stats, d.Schema())
		return nil
	},
}

func init() {
	checkCmd.Flags().IntVar(&checkLimit, "limit", 20, "Violations to list")
	checkCmd.Flags().BoolVar(&checkRepair, "repair", false, "Run a full repair before checking")
	statsCmd.Flags().IntVar(&statsTopN, "top-n", 10, "Families to list")
	rootCmd.AddCommand(checkCmd, statsCmd)
}

func printCheck(report *audit.Report) {
	barLen := int(report.Score * 20)
	if barLen > 20 {
		barLen = 20
	}
	bar := strings.Repeat("█", barLen) + strings.Repeat("░", 20-barLen)
	fmt.Printf("\n  Consistency: %.0f%%  [%s]\n", report.Score*100, bar)
	fmt.Printf("  nodes=%s affected=%s violations=%s\n\n",
		humanize.Comma(int64(report.TotalNodes)),
		humanize.Comma(int64(report.AffectedNodes)),
		humanize.Comma(int64(len(report.Violations))))

	if report.Consistent() {
		return
	}
	fmt.Println("  VIOLATIONS")
	fmt.Println("  ────────────────────────────────────────")
	limit := checkLimit
	if len(report.Violations) < limit {
		limit = len(report.Violations)
	}
	for _, v := range report.Violations[:limit] {
		if v.Want == "" && v.Got == "" {
			fmt.Printf("    %-6d %s\n", v.NodeID, v.Kind)
			continue
		}
		fmt.Printf("    %-6d %-15s want=%s got=%s\n", v.NodeID, v.Kind, v.Want, v.Got)
	}
	if len(report.Violations) > limit {
		fmt.Printf("    ... and %d more\n", len(report.Violations)-limit)
	}
	fmt.Println("\n  run `arbor repair` to recompute from the parent links")
	fmt.Println()
}

func printStats(s *audit.TreeStats, schema db.Schema) {
	fmt.Println("\n  FOREST")
	fmt.Println("  ────────────────────────────────────────")
	fmt.Printf("  Nodes: %s  Trees: %s  Roots: %s  Leaves: %s\n",
		humanize.Comma(int64(s.TotalNodes)), humanize.Comma(int64(s.Trees)),
		humanize.Comma(int64(s.Roots)), humanize.Comma(int64(s.Leaves)))
	if s.TotalNodes == 0 {
		fmt.Println()
		return
	}
	fmt.Printf("  Largest tree: %s nodes (root %d)\n", humanize.Comma(int64(s.LargestTree)), s.LargestTreeRoot)
	fmt.Printf("  Max depth: %d  Avg branching: %.2f\n", s.MaxDepth, s.AvgBranching)
	if s.Loops > 0 {
		fmt.Printf("  Trees with parent loops: %d (run `arbor check`)\n", s.Loops)
	}

	fmt.Println("\n  Depth distribution:")
	for _, b := range s.DepthHistogram {
		barWidth := int(math.Log2(float64(b.Count))) + 2
		fmt.Printf("    %5d: %4d  %s\n", b.Level, b.Count, strings.Repeat("=", barWidth))
	}

	if schema.Family && len(s.Families) > 0 {
		fmt.Println("\n  Largest families:")
		for _, f := range s.Families {
			fmt.Printf("    %-6d %d node(s)\n", f.FamilyID, f.Size)
		}
	}
	fmt.Println()
}
