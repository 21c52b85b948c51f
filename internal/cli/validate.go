package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/saeedalam/promptforge/internal/storage"
	"github.com/saeedalam/promptforge/internal/validate"
	"github.com/saeedalam/promptforge/pkg/types"
)

var validateFramework string

var validateCmd = &cobra.Command{
	Use:   "validate <dir>",
	Short: "Run the static checks over a source directory",
	Long: `Run the static checks over a source directory.

The framework comes from the directory's promptforge.json unless
--framework is given.

Example:
  promptforge validate .promptforge/builds/color-picker-1a2b3c4d
  promptforge validate ./myscript --framework powershell`,
	Args: cobra.ExactArgs(1),
	Run:  runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&validateFramework, "framework", "f", "", "Framework of the sources")
}

func runValidate(cmd *cobra.Command, args []string) {
	dir := args[0]

	var fw types.Framework
	if validateFramework != "" {
		var ok bool
		if fw, ok = types.ParseFramework(validateFramework); !ok {
			fmt.Printf("Error: unknown framework %q\n", validateFramework)
			os.Exit(1)
		}
	} else if m, err := storage.ReadManifest(dir); err == nil {
		fw = m.Framework
	} else {
		fmt.Println("Error: no promptforge.json in directory; pass --framework")
		os.Exit(1)
	}

	files, err := storage.LoadSources(dir)
	if err != nil {
		fmt.Printf("Error reading %s: %v\n", dir, err)
		os.Exit(1)
	}

	res := validate.New(logger).Validate(files, fw)
	for _, w := range res.Warnings {
		fmt.Printf("  ⚠ %s\n", w)
	}
	for _, e := range res.Errors {
		fmt.Printf("  ✗ %s\n", e)
	}
	if !res.Success {
		fmt.Printf("✗ %d error(s) in %d file(s) [%s]\n", len(res.Errors), files.Len(), fw)
		os.Exit(1)
	}
	fmt.Printf("✓ %d file(s) passed [%s]\n", files.Len(), fw)
}
