package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/saeedalam/promptforge/internal/config"
)

var initProvider string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize PromptForge in current directory",
	Long: `Initialize PromptForge in the current directory.

This creates a .promptforge/ directory holding config.yaml, the build
history database and the per-build source directories.

Example:
  promptforge init
  promptforge init --provider ollama`,
	Run: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initProvider, "provider", "", "Default completion provider (anthropic, gemini, ollama)")
}

func runInit(cmd *cobra.Command, args []string) {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Printf("Error getting current directory: %v\n", err)
		return
	}

	if _, err := os.Stat(config.Path(cwd)); err == nil {
		fmt.Printf("PromptForge already initialized (%s)\n", config.Path(cwd))
		return
	}

	cfg := config.Default()
	if initProvider != "" {
		cfg.Provider = initProvider
	}
	if err := cfg.Save(cwd); err != nil {
		fmt.Printf("Error writing config: %v\n", err)
		return
	}
	for _, dir := range []string{cfg.OutputDir, cfg.LogDir} {
		if err := os.MkdirAll(filepath.Join(cwd, dir), 0755); err != nil {
			fmt.Printf("Error creating %s: %v\n", dir, err)
			return
		}
	}

	store, err := openStore()
	if err == nil {
		_, err = store.ListBuilds(cmd.Context(), 1)
		store.Close()
	}
	if err != nil {
		fmt.Printf("Warning: build history unavailable: %v\n", err)
	}

	fmt.Println("✓ PromptForge initialized")
	fmt.Printf("  Config:   %s\n", config.Path(cwd))
	fmt.Printf("  Builds:   %s\n", filepath.Join(cwd, cfg.OutputDir))
	fmt.Printf("  Provider: %s\n", cfg.Provider)
	fmt.Println("")
	fmt.Println("Next: promptforge build \"<describe your app>\"")
}
