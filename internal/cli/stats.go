package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show build statistics",
	Long: `Show build statistics.

Displays build counts by status and framework and the size of the
constraint memory.`,
	Run: runStats,
}

func runStats(cmd *cobra.Command, args []string) {
	store, err := openStore()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer store.Close()

	stats, err := store.GetStats(cmd.Context())
	if err != nil {
		fmt.Printf("Error getting stats: %v\n", err)
		fmt.Println("Run 'promptforge init' to initialize.")
		return
	}

	fmt.Println("┌─────────────────────────────────────────────┐")
	fmt.Println("│           PromptForge Statistics            │")
	fmt.Println("├─────────────────────────────────────────────┤")
	fmt.Println("│ Builds                                      │")
	fmt.Printf("│   Total:             %-22d │\n", stats.Total)
	fmt.Printf("│   Completed:         %-22d │\n", stats.Completed)
	fmt.Printf("│   Failed:            %-22d │\n", stats.Failed)
	fmt.Println("│                                             │")
	fmt.Println("│ By framework                                │")
	for _, fw := range stats.SortedFrameworks() {
		fmt.Printf("│   %-18s %-22d │\n", fw, stats.ByFramework[fw])
	}
	fmt.Println("│                                             │")
	fmt.Println("│ Constraint memory                           │")
	fmt.Printf("│   Constraints:       %-22d │\n", stats.Constraints)
	fmt.Println("└─────────────────────────────────────────────┘")
}
