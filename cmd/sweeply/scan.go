package sweeply

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sweeply/sweeply/internal/model"
)

func init() {
	rootCmd.AddCommand(scanCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover cleanable files without deleting anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagJSON {
			initFileLog(cmd, args)
		}
		a, err := newApp()
		if err != nil {
			return err
		}

		tokens := flagCategories
		if flagDuplicates {
			tokens = append(tokens, string(model.CategoryDuplicates))
		}
		results, err := a.Scan(cmd.Context(), tokens)
		if err != nil {
			return err
		}

		if flagJSON {
			return json.NewEncoder(os.Stdout).Encode(results)
		}
		printScanSummary(results)
		return nil
	},
}

func printScanSummary(results *model.ScanResults) {
	bold := color.New(color.Bold)
	bold.Printf("Found %d cleanable items, %s total (%s safely deletable)\n",
		len(results.Items),
		humanize.IBytes(uint64(results.TotalSize)),
		humanize.IBytes(uint64(results.SafeTotalSize)))

	for _, category := range model.AllCategories {
		items := results.ItemsByCategory[category]
		if len(items) == 0 {
			continue
		}
		var size int64
		for _, it := range items {
			size += it.Size
		}
		fmt.Printf("  %-14s %5d items  %10s\n", category, len(items), humanize.IBytes(uint64(size)))
	}

	if len(results.Duplicates) > 0 {
		var wasted int64
		for _, g := range results.Duplicates {
			wasted += g.WastedSpace
		}
		fmt.Printf("  %-14s %5d groups %10s wasted\n", "duplicates", len(results.Duplicates), humanize.IBytes(uint64(wasted)))
	}
}

func printRecommendations(recs []*model.Recommendation) {
	if len(recs) == 0 {
		fmt.Println("Nothing to recommend; the scanned locations look clean.")
		return
	}
	fmt.Println("\nRecommendations:")
	for _, rec := range recs {
		marker := priorityColor(rec.Priority).Sprintf("[%s]", rec.Priority)
		fmt.Printf("  %s %s — %s\n", marker, rec.Title, rec.Description)
	}
}

func priorityColor(p model.Priority) *color.Color {
	switch p {
	case model.PriorityCritical:
		return color.New(color.FgRed, color.Bold)
	case model.PriorityHigh:
		return color.New(color.FgRed)
	case model.PriorityMedium:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}
