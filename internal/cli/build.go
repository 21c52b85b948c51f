package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saeedalam/promptforge/internal/metrics"
	"github.com/saeedalam/promptforge/internal/packager"
	"github.com/saeedalam/promptforge/internal/pipeline"
	"github.com/saeedalam/promptforge/internal/publish"
	"github.com/saeedalam/promptforge/pkg/types"
)

var (
	buildFramework  string
	buildName       string
	buildNoBranding bool
	buildProvider   string
	buildModel      string
	buildRetries    int
	buildMaxTokens  int
	buildJSON       bool
)

var buildCmd = &cobra.Command{
	Use:   "build <prompt>",
	Short: "Build an app from a prompt",
	Long: `Build an app from a natural-language prompt.

The framework is picked from the prompt unless --framework is given.
Sources land in .promptforge/builds/<name>-<id>/ and every outcome is
recorded in the build history.

Example:
  promptforge build "a tkinter color picker tool"
  promptforge build "disk usage report" --framework powershell --name diskreport
  promptforge build "markdown notes app" --provider ollama --model qwen2.5-coder`,
	Args: cobra.ExactArgs(1),
	Run:  runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildFramework, "framework", "f", "", "Force a framework")
	buildCmd.Flags().StringVarP(&buildName, "name", "n", "", "App name (derived from the prompt by default)")
	buildCmd.Flags().BoolVar(&buildNoBranding, "no-branding", false, "Do not add the attribution marker")
	buildCmd.Flags().StringVar(&buildProvider, "provider", "", "Completion provider")
	buildCmd.Flags().StringVar(&buildModel, "model", "", "Model name")
	buildCmd.Flags().IntVar(&buildRetries, "max-retries", 0, "Repair attempts (default from config)")
	buildCmd.Flags().IntVar(&buildMaxTokens, "max-tokens", 0, "Output token ceiling (default from model)")
	buildCmd.Flags().BoolVar(&buildJSON, "json", false, "Print the build record as JSON")
}

func runBuild(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fail("%v", err)
		return
	}

	req := types.BuildRequest{
		Prompt:     args[0],
		Name:       buildName,
		NoBranding: buildNoBranding,
		Provider:   buildProvider,
		Model:      buildModel,
		MaxRetries: buildRetries,
		MaxTokens:  buildMaxTokens,
	}
	if buildFramework != "" {
		fw, ok := types.ParseFramework(buildFramework)
		if !ok {
			fail("unknown framework %q", buildFramework)
			return
		}
		req.FrameworkOverride = fw
	}

	store, err := openStore()
	if err != nil {
		fail("%v", err)
		return
	}

	opts := pipeline.Options{
		Config:   cfg,
		Store:    store,
		Packager: packager.NewExec(cfg.PackagerCommands(), logger),
		Metrics:  metrics.New(),
		Logger:   logger,
		OnFileWrite: func(path string) {
			logger.Debug("file written", zap.String("path", path))
		},
	}
	pubCfg := publish.Config(cfg.Artifacts)
	if pubCfg.Enabled() {
		up, err := publish.New(pubCfg, logger)
		if err != nil {
			fmt.Printf("Warning: artifact upload disabled: %v\n", err)
		} else {
			opts.Publisher = up
		}
	}

	res := pipeline.New(opts).Build(cmd.Context(), req)
	store.Close()

	if buildJSON {
		data, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(data))
	} else {
		printBuildResult(res)
	}
	if !res.Success {
		_ = logger.Sync()
		exit(1)
	}
}

func printBuildResult(res types.BuildResult) {
	if res.Record == nil {
		fmt.Printf("✗ %s\n", res.Output)
		return
	}
	mark := "✓"
	if !res.Success {
		mark = "✗"
	}
	fmt.Printf("%s %s [%s] %s\n", mark, res.AppName, res.Framework, res.Record.Status)
	fmt.Printf("  Sources:  %s\n", orDash(res.Record.SourceDir))
	fmt.Printf("  Exe:      %s\n", orDash(res.ExePath))
	fmt.Printf("  Model:    %s/%s\n", res.Record.Provider, res.Record.Model)
	fmt.Printf("  Time:     %.1fs\n", res.Record.BuildTime)
	if res.Output != "" {
		fmt.Println("")
		fmt.Println(res.Output)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
