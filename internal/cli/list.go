package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/saeedalam/promptforge/internal/pipeline"
)

var (
	listLimit int
	listJSON  bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List builds, newest first",
	Run:   runList,
}

func init() {
	listCmd.Flags().IntVarP(&listLimit, "limit", "l", 20, "Maximum builds to show (0 = all)")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print records as JSON")
}

func runList(cmd *cobra.Command, args []string) {
	store, err := openStore()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer store.Close()

	builds, err := pipeline.New(pipeline.Options{Store: store, Logger: logger}).ListBuilds(cmd.Context())
	if err != nil {
		fmt.Printf("Error listing builds: %v\n", err)
		return
	}
	if listLimit > 0 && len(builds) > listLimit {
		builds = builds[:listLimit]
	}

	if listJSON {
		data, _ := json.MarshalIndent(builds, "", "  ")
		fmt.Println(string(data))
		return
	}
	if len(builds) == 0 {
		fmt.Println("No builds yet. Run 'promptforge build \"<prompt>\"'.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tFRAMEWORK\tSTATUS\tTIME\tCREATED\tSOURCE")
	for _, b := range builds {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1fs\t%s\t%s\n",
			b.Name, b.Framework, b.Status, b.BuildTime,
			b.CreatedAt.Format("2006-01-02 15:04"), orDash(b.SourceDir))
	}
	w.Flush()
}
