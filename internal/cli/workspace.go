package cli

import (
	"os"
	"path/filepath"

	"github.com/saeedalam/promptforge/internal/config"
	"github.com/saeedalam/promptforge/internal/storage"
)

// findWorkspaceRoot returns the nearest directory at or above startDir that
// holds a .promptforge directory, or startDir itself when none does.
func findWorkspaceRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := absDir
	for {
		if _, err := os.Stat(filepath.Join(dir, config.Dir)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return absDir, nil
}

func workspaceRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return findWorkspaceRoot(cwd)
}

func loadConfig() (*config.Config, error) {
	root, err := workspaceRoot()
	if err != nil {
		return nil, err
	}
	return config.Load(root)
}

// openStore returns the workspace store. It opens lazily, so a missing or
// locked database only surfaces when a command touches it.
func openStore() (*storage.Store, error) {
	root, err := workspaceRoot()
	if err != nil {
		return nil, err
	}
	return storage.NewStore(filepath.Join(root, config.Dir), logger), nil
}
