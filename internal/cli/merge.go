package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/saeedalam/promptforge/internal/merge"
)

var mergeEntry string

var mergeCmd = &cobra.Command{
	Use:   "merge <dir>",
	Short: "Fold a dot-sourced PowerShell project into one script",
	Long: `Fold a dot-sourced PowerShell project into one script.

The entry comes from promptforge.json, else app.ps1 or main.ps1. The result
is written next to it as <entry>.merged.ps1; a script with nothing to inline
is left as is.`,
	Args: cobra.ExactArgs(1),
	Run:  runMerge,
}

func init() {
	mergeCmd.Flags().StringVarP(&mergeEntry, "entry", "e", "", "Entry script relative to <dir>")
}

func runMerge(cmd *cobra.Command, args []string) {
	var (
		res merge.Result
		err error
	)
	if mergeEntry != "" {
		res, err = merge.MergeEntry(args[0], mergeEntry)
	} else {
		res, err = merge.Merge(args[0])
	}
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		os.Exit(1)
	}

	if !res.Merged {
		fmt.Printf("✓ Nothing to merge: %s\n", res.Path)
		return
	}
	fmt.Printf("✓ Merged %d file(s) into %s\n", len(res.Included), res.Path)
	for _, inc := range res.Included {
		fmt.Printf("  + %s\n", inc)
	}
}
