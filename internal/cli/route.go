package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saeedalam/promptforge/internal/budget"
	"github.com/saeedalam/promptforge/internal/llm"
	"github.com/saeedalam/promptforge/internal/router"
	"github.com/saeedalam/promptforge/pkg/types"
)

var (
	routeFramework string
	routeModel     string
)

var routeCmd = &cobra.Command{
	Use:   "route <prompt>",
	Short: "Show which framework and token budget a prompt gets",
	Args:  cobra.ExactArgs(1),
	Run:   runRoute,
}

func init() {
	routeCmd.Flags().StringVarP(&routeFramework, "framework", "f", "", "Framework override")
	routeCmd.Flags().StringVar(&routeModel, "model", "", "Model to size the budget for")
}

func runRoute(cmd *cobra.Command, args []string) {
	model := routeModel
	if model == "" {
		if cfg, err := loadConfig(); err == nil {
			model = cfg.Model
			if model == "" {
				model = llm.DefaultModel(cfg.Provider)
			}
		}
	}

	d := router.New().Explain(args[0], routeFramework)
	fmt.Printf("Framework: %s\n", d.Framework)
	switch {
	case d.Override:
		fmt.Println("  (override)")
	case d.Defaulted:
		fmt.Println("  (no keyword matched; default)")
	default:
		for _, fw := range types.Frameworks {
			if s := d.Scores[fw]; s > 0 {
				fmt.Printf("  %-18s %d\n", fw, s)
			}
		}
	}
	fmt.Printf("Budget:    %d tokens (%s)\n", budget.Resolve(model, 0), orDash(model))
}
