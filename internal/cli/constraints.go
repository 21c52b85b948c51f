package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/saeedalam/promptforge/pkg/types"
)

var constraintsClear bool

var constraintsCmd = &cobra.Command{
	Use:   "constraints [framework]",
	Short: "Show constraints learned from failed builds",
	Long: `Show the constraints learned from failed builds, most frequent first.

Every new build for a framework starts with its constraints in the prompt.

Example:
  promptforge constraints
  promptforge constraints powershell
  promptforge constraints powershell --clear`,
	Args: cobra.MaximumNArgs(1),
	Run:  runConstraints,
}

func init() {
	constraintsCmd.Flags().BoolVar(&constraintsClear, "clear", false, "Delete the listed constraints")
}

func runConstraints(cmd *cobra.Command, args []string) {
	var fw types.Framework
	if len(args) == 1 {
		var ok bool
		if fw, ok = types.ParseFramework(args[0]); !ok {
			fmt.Printf("Error: unknown framework %q\n", args[0])
			return
		}
	}

	store, err := openStore()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer store.Close()

	if constraintsClear {
		n, err := store.ClearConstraints(cmd.Context(), fw)
		if err != nil {
			fmt.Printf("Error clearing constraints: %v\n", err)
			return
		}
		fmt.Printf("✓ Cleared %d constraint(s)\n", n)
		return
	}

	cs, err := store.Constraints(cmd.Context(), fw)
	if err != nil {
		fmt.Printf("Error reading constraints: %v\n", err)
		return
	}
	if len(cs) == 0 {
		fmt.Println("No constraints learned yet.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HITS\tFRAMEWORK\tPATTERN\tCONSTRAINT")
	for _, c := range cs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", c.HitCount, c.Framework, orDash(c.ErrorPattern), c.ConstraintText)
	}
	w.Flush()
}
