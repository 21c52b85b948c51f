package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saeedalam/promptforge/internal/pipeline"
)

var removeCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove every build record with the given name",
	Long: `Remove every build record with the given name.

Source directories on disk are left in place.`,
	Args: cobra.ExactArgs(1),
	Run:  runRemove,
}

func runRemove(cmd *cobra.Command, args []string) {
	store, err := openStore()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer store.Close()

	n, err := pipeline.New(pipeline.Options{Store: store, Logger: logger}).RemoveBuild(cmd.Context(), args[0])
	if err != nil {
		fmt.Printf("Error removing %s: %v\n", args[0], err)
		return
	}
	if n == 0 {
		fmt.Printf("No builds named %q\n", args[0])
		return
	}
	fmt.Printf("✓ Removed %d build record(s) named %q\n", n, args[0])
}
