package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saeedalam/promptforge/internal/logging"
)

var (
	verbose bool
	logger  = zap.NewNop()
	exit    = os.Exit
)

// fail prints an error line, flushes the logger and exits non-zero.
func fail(format string, a ...any) {
	fmt.Printf("Error: "+format+"\n", a...)
	_ = logger.Sync()
	exit(1)
}

var rootCmd = &cobra.Command{
	Use:   "promptforge",
	Short: "Turn a prompt into a validated, packageable app",
	Long: `PromptForge - prompt-to-source build pipeline

PromptForge routes a natural-language request to a target framework, asks a
model for the project files, validates them, repairs what fails, and hands
the result to the native packager.

Frameworks: powershell, powershell-module, python-tk, python-web, tauri

Quick Start:
  promptforge init                                 Create .promptforge/ here
  promptforge build "a tkinter color picker tool"  Build an app
  promptforge list                                 Show build history
  promptforge constraints                          Show learned constraints`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		opts := logging.Options{Verbose: verbose}
		if cfg, err := loadConfig(); err == nil {
			opts.Level = cfg.Logging.Level
			opts.File = cfg.Logging.File
			opts.JSON = cfg.Logging.JSON
		}
		l, err := logging.New(opts)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(constraintsCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(statsCmd)
	// versionCmd is registered in version.go
}
