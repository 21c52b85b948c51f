package storage

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saeedalam/promptforge/pkg/types"
)

// ManifestFile is written into every build's source directory.
const ManifestFile = "promptforge.json"

// NewBuildID returns a fresh build identifier.
func NewBuildID() string {
	return uuid.New().String()
}

// SourceDirName is the per-build directory name: <name>-<first 8 of id>.
func SourceDirName(name, buildID string) string {
	short := buildID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s-%s", name, short)
}

// WriteSources writes files under dir followed by the manifest. onWrite, when
// set, is called with the absolute path of every file written.
func WriteSources(dir string, files *types.FileSet, manifest *types.Manifest, onWrite func(string)) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	for _, f := range files.Files() {
		target := filepath.Join(root, filepath.FromSlash(f.Path))
		if !within(root, target) {
			return fmt.Errorf("refusing to write %q outside %s", f.Path, root)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(target, []byte(f.Content), 0644); err != nil {
			return err
		}
		if onWrite != nil {
			onWrite(target)
		}
	}

	if manifest == nil {
		return nil
	}
	if manifest.CreatedAt.IsZero() {
		manifest.CreatedAt = time.Now()
	}
	manifest.Files = files.Paths()
	mpath := filepath.Join(root, ManifestFile)
	if err := writeJSON(mpath, manifest); err != nil {
		return err
	}
	if onWrite != nil {
		onWrite(mpath)
	}
	return nil
}

// ReadManifest loads the manifest from a source directory.
func ReadManifest(dir string) (*types.Manifest, error) {
	return readJSON[types.Manifest](filepath.Join(dir, ManifestFile))
}

// LoadSources reads every regular file under dir (except the manifest) into a
// file set ordered by path.
func LoadSources(dir string) (*types.FileSet, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if p != dir && (strings.HasPrefix(name, ".") || name == "target" || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == ManifestFile {
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	set := types.NewFileSet()
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return nil, err
		}
		set.Put(types.GeneratedFile{Path: filepath.ToSlash(rel), Content: string(data)})
	}
	return set, nil
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func readJSON[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	// Write to a temp file then rename so readers never see a partial manifest.
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
