package cmd

import (
	"fmt"
	"os"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mabhi256/gcscan/internal/gc"
	"github.com/mabhi256/gcscan/internal/gc/tui"
	"github.com/mabhi256/gcscan/internal/heap"
	"github.com/mabhi256/gcscan/utils"
)

var (
	scanOutput  string
	scanAll     bool
	scanVerbose bool
	scanDebug   bool
)

var scanCmd = &cobra.Command{
	Use:               "scan [snapshot-file]",
	Short:             "Scan every live object in a heap snapshot",
	Long:              `Loads a YAML heap snapshot, marks the objects reachable from its roots (or every object with --all), then runs the reference traversal over each marked object and reports what it found.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: utils.CompleteFilesByExtension([]string{".yaml", ".yml"}),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		validFormats := []string{"cli", "tui"}
		if !slices.Contains(validFormats, scanOutput) {
			return fmt.Errorf("invalid output format: %s. Valid options: %v", scanOutput, validFormats)
		}

		if _, err := os.Stat(args[0]); os.IsNotExist(err) {
			return fmt.Errorf("file does not exist: %s", args[0])
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := heap.LoadSnapshot(args[0])
		if err != nil {
			return err
		}

		queue := gc.NewReferenceQueue()
		ms := gc.NewMarkSweep(snap.Heap, heap.NewMarkBitmap(), queue)
		ms.DebugChecks = scanDebug

		report := ms.CollectReport(queue, snap.Roots, scanAll, scanVerbose)

		if scanOutput == "tui" {
			_, err := tea.NewProgram(tui.NewModel(report, snap), tea.WithAltScreen()).Run()
			return err
		}

		printReport(report, snap)
		return nil
	},
}

func printReport(report *gc.ScanReport, snap *heap.Snapshot) {
	fmt.Println(utils.TitleStyle.Render("Heap scan"))

	total := report.ObjectsScanned
	fmt.Println(utils.FormatKeyValue("Objects scanned", fmt.Sprintf("%d of %d", total, snap.Heap.NumObjects()), 18))
	fmt.Println(utils.FormatKeyValue("Classes", fmt.Sprintf("%d", report.Counts.Classes), 18))
	fmt.Println(utils.FormatKeyValue("Arrays", fmt.Sprintf("%d", report.Counts.Arrays), 18))
	fmt.Println(utils.FormatKeyValue("Instances", fmt.Sprintf("%d", report.Counts.Other), 18))
	fmt.Println(utils.FormatKeyValue("References", fmt.Sprintf("%d (%d null, %d static)",
		report.RefsVisited, report.NullRefs, report.StaticRefs), 18))
	fmt.Println(utils.FormatKeyValue("Density", fmt.Sprintf("%.2f refs/object", report.ReferenceDensity()), 18))

	if len(report.Delayed) > 0 {
		names := make([]string, len(report.Delayed))
		for i, id := range report.Delayed {
			names[i] = snap.NameOf(id)
		}
		fmt.Println(utils.FormatKeyValue("Deferred refs", strings.Join(names, ", "), 18))
	}

	if report.References != nil {
		fmt.Println()
		fmt.Println(utils.TitleStyle.Render("References"))
		for _, ref := range report.References {
			referent := "null"
			if ref.Referent != 0 {
				referent = snap.NameOf(ref.Referent)
			}
			kind := "instance"
			if ref.IsStatic {
				kind = "static"
			}
			fmt.Printf("  %s +%d -> %s (%s)\n",
				utils.TextStyle.Render(snap.NameOf(ref.Holder)), ref.Offset,
				utils.InfoStyle.Render(referent), utils.MutedStyle.Render(kind))
		}
	}
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "cli", "Output format")
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "Mark and scan every object, not just root-reachable ones")
	scanCmd.Flags().BoolVarP(&scanVerbose, "verbose", "v", false, "Print every visited reference")
	scanCmd.Flags().BoolVar(&scanDebug, "debug", true, "Enable debug precondition checks")

	// When user types: gcscan scan snapshot.yaml -o <TAB>
	scanCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"cli", "tui"}, cobra.ShellCompDirectiveNoFileComp
	})
}
