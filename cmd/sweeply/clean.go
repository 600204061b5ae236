package sweeply

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sweeply/sweeply/internal/model"
)

var flagYes bool

func init() {
	cleanCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(autoCmd)
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Scan and delete what passes the safety gate",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagJSON {
			initFileLog(cmd, args)
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		tokens := flagCategories
		if flagDuplicates {
			tokens = append(tokens, string(model.CategoryDuplicates))
		}
		results, err := a.Scan(ctx, tokens)
		if err != nil {
			return err
		}
		if len(results.Items) == 0 {
			fmt.Println("Nothing to clean.")
			return nil
		}

		if !flagYes && !a.Config.DryRun && !flagJSON {
			printScanSummary(results)
			if !confirm(fmt.Sprintf("Delete up to %s?", humanize.IBytes(uint64(results.SafeTotalSize)))) {
				return fmt.Errorf("cancelled by user")
			}
		}

		result, err := a.Clean(ctx, results.Items, flagYes)
		if err != nil {
			return err
		}
		if flagJSON {
			return json.NewEncoder(os.Stdout).Encode(result)
		}
		printCleanResult(result)
		return nil
	},
}

var autoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Scan, recommend and clean in one pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		results, clean, err := a.Auto(cmd.Context())
		if err != nil {
			return err
		}
		if flagJSON {
			return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
				"scan":  results,
				"clean": clean,
			})
		}
		printScanSummary(results)
		printCleanResult(clean)
		return nil
	},
}

func printCleanResult(result *model.CleanResult) {
	if result == nil {
		return
	}
	verb := "Deleted"
	if result.DryRun {
		verb = "Would delete"
	}
	color.New(color.Bold).Printf("%s %d items, freed %s\n",
		verb, len(result.Deleted), humanize.IBytes(uint64(result.FreedSpace)))
	if result.ThroughputMiBps > 0 {
		fmt.Printf("  throughput: %.1f MiB/s\n", result.ThroughputMiBps)
	}
	for _, f := range result.Failed {
		fmt.Printf("  skipped %s: %s\n", f.Item.Path, f.Error)
	}
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
