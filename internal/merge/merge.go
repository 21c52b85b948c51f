// Package merge folds a dot-sourced PowerShell project into a single script
// for packagers that take one entry file.
package merge

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/saeedalam/promptforge/internal/storage"
	"github.com/saeedalam/promptforge/pkg/types"
)

// Result describes a merge. Merged is false when the entry had nothing to
// inline and Path is the entry itself.
type Result struct {
	Path     string
	Merged   bool
	Included []string
}

var entryCandidates = []string{"app.ps1", "main.ps1"}

// Option configures a merge.
type Option func(*merger)

// WithHeader drops every line equal to header from the merged sources and
// writes header once at the top of the merged script.
func WithHeader(header string) Option {
	return func(m *merger) {
		m.header = strings.TrimSpace(header)
	}
}

// MergedName is the derived file name for a merged entry.
func MergedName(entry string) string {
	ext := path.Ext(entry)
	return strings.TrimSuffix(entry, ext) + ".merged" + ext
}

// Merge locates the entry script in sourceDir (from its manifest, else the
// default names) and merges it.
func Merge(sourceDir string, opts ...Option) (Result, error) {
	entry := ""
	if m, err := storage.ReadManifest(sourceDir); err == nil && m.Entry != "" {
		entry = m.Entry
	} else {
		for _, c := range entryCandidates {
			if _, err := os.Stat(filepath.Join(sourceDir, c)); err == nil {
				entry = c
				break
			}
		}
	}
	if entry == "" {
		return Result{}, fmt.Errorf("merge %s: %w", sourceDir, types.ErrEntryNotFound)
	}
	return MergeEntry(sourceDir, entry, opts...)
}

// MergeEntry merges the script at entry (relative to sourceDir). Included
// bodies are inlined, in directive order, ahead of the entry's own
// statements; directive lines are dropped.
func MergeEntry(sourceDir, entry string, opts ...Option) (Result, error) {
	entry = filepath.ToSlash(entry)
	entryPath := filepath.Join(sourceDir, filepath.FromSlash(entry))
	data, err := os.ReadFile(entryPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, fmt.Errorf("merge %s: %w", entry, types.ErrEntryNotFound)
		}
		return Result{}, fmt.Errorf("merge %s: %w", entry, err)
	}
	content := string(data)

	if len(Scan(content)) == 0 {
		return Result{Path: entryPath}, nil
	}

	m := &merger{root: sourceDir, visited: map[string]bool{entry: true}}
	for _, opt := range opts {
		opt(m)
	}
	var b strings.Builder
	if m.header != "" {
		b.WriteString(m.header + "\n")
	}
	rest, err := m.expand(entry, content, &b)
	if err != nil {
		return Result{}, err
	}
	b.WriteString(rest)

	out := filepath.Join(sourceDir, filepath.FromSlash(MergedName(entry)))
	if err := os.WriteFile(out, []byte(b.String()), 0644); err != nil {
		return Result{}, fmt.Errorf("write merged script: %w", err)
	}
	return Result{Path: out, Merged: true, Included: m.included}, nil
}

type merger struct {
	root     string
	visited  map[string]bool
	included []string
	header   string
}

// expand writes the bodies file includes into b, depth first, and returns
// file's own content with its directive lines removed.
func (m *merger) expand(file, content string, b *strings.Builder) (string, error) {
	dir := path.Dir(file)
	lines := strings.SplitAfter(content, "\n")
	var own strings.Builder
	for _, line := range lines {
		trimmed := strings.TrimRight(line, "\r\n")
		if m.header != "" && strings.TrimSpace(trimmed) == m.header {
			continue
		}
		target, ok := directiveTarget(trimmed)
		if !ok {
			own.WriteString(line)
			continue
		}
		rel := path.Join(dir, target)
		if strings.HasPrefix(rel, "../") || rel == ".." {
			return "", fmt.Errorf("merge %s: include %q escapes the source directory", file, target)
		}
		if m.visited[rel] {
			continue
		}
		m.visited[rel] = true

		data, err := os.ReadFile(filepath.Join(m.root, filepath.FromSlash(rel)))
		if err != nil {
			return "", fmt.Errorf("merge %s: include %s: %w", file, rel, err)
		}
		body, err := m.expand(rel, string(data), b)
		if err != nil {
			return "", err
		}
		m.included = append(m.included, rel)

		fmt.Fprintf(b, "#region %s\n", rel)
		b.WriteString(strings.TrimRight(body, "\r\n"))
		fmt.Fprintf(b, "\n#endregion %s\n\n", rel)
	}
	return own.String(), nil
}
