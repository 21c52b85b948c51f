package types

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// FRAMEWORKS
// =============================================================================

// Framework identifies the shape of the project a build produces.
type Framework string

const (
	FrameworkPowerShell       Framework = "powershell"
	FrameworkPowerShellModule Framework = "powershell-module"
	FrameworkPythonTk         Framework = "python-tk"
	FrameworkPythonWeb        Framework = "python-web"
	FrameworkTauri            Framework = "tauri"
)

// Frameworks lists every supported framework in routing priority order.
var Frameworks = []Framework{
	FrameworkTauri,
	FrameworkPythonWeb,
	FrameworkPythonTk,
	FrameworkPowerShellModule,
	FrameworkPowerShell,
}

// ParseFramework returns the framework named by s (case-insensitive).
func ParseFramework(s string) (Framework, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, f := range Frameworks {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// IsPowerShell reports whether the framework produces PowerShell sources.
func (f Framework) IsPowerShell() bool {
	return f == FrameworkPowerShell || f == FrameworkPowerShellModule
}

// IsPython reports whether the framework produces Python sources.
func (f Framework) IsPython() bool {
	return f == FrameworkPythonTk || f == FrameworkPythonWeb
}

// DefaultEntry is the entry file name used when a generated block carries no path.
func (f Framework) DefaultEntry() string {
	switch f {
	case FrameworkPowerShellModule:
		return "module.psm1"
	case FrameworkPythonTk, FrameworkPythonWeb:
		return "main.py"
	case FrameworkTauri:
		return "src/main.rs"
	default:
		return "app.ps1"
	}
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrInvalidRequest         = errors.New("invalid request: prompt is empty")
	ErrTruncated              = errors.New("generation truncated by output token ceiling")
	ErrRepairExhausted        = errors.New("repair attempts exhausted")
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	ErrEntryNotFound          = errors.New("entry file not found")
)

// =============================================================================
// BUILD INPUT
// =============================================================================

// BuildRequest is everything a caller supplies for one build.
type BuildRequest struct {
	Prompt            string    `json:"prompt"`
	FrameworkOverride Framework `json:"framework_override,omitempty"`
	Name              string    `json:"name,omitempty"`
	NoBranding        bool      `json:"no_branding,omitempty"`
	Provider          string    `json:"provider,omitempty"`
	Model             string    `json:"model,omitempty"`
	MaxRetries        int       `json:"max_retries,omitempty"` // <=0 uses the configured default
	MaxTokens         int       `json:"max_tokens,omitempty"`  // <=0 uses the model table
}

// Validate checks the request before any side effect happens.
func (r *BuildRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return ErrInvalidRequest
	}
	return nil
}

// =============================================================================
// GENERATED SOURCES
// =============================================================================

// GeneratedFile is one file produced by the model.
type GeneratedFile struct {
	Path     string `json:"path"`
	Language string `json:"language,omitempty"`
	Content  string `json:"content"`
}

// FileSet is the ordered collection of generated files, keyed by path.
type FileSet struct {
	order []string
	files map[string]GeneratedFile
}

// NewFileSet builds a set from files; a later file with the same path replaces the earlier one.
func NewFileSet(files ...GeneratedFile) *FileSet {
	fs := &FileSet{files: make(map[string]GeneratedFile)}
	for _, f := range files {
		fs.Put(f)
	}
	return fs
}

// Put inserts or replaces a file, keeping the original position on replace.
func (fs *FileSet) Put(f GeneratedFile) {
	if fs.files == nil {
		fs.files = make(map[string]GeneratedFile)
	}
	if _, ok := fs.files[f.Path]; !ok {
		fs.order = append(fs.order, f.Path)
	}
	fs.files[f.Path] = f
}

// Get returns the file stored at path.
func (fs *FileSet) Get(path string) (GeneratedFile, bool) {
	if fs == nil {
		return GeneratedFile{}, false
	}
	f, ok := fs.files[path]
	return f, ok
}

// Paths returns the file paths in insertion order.
func (fs *FileSet) Paths() []string {
	if fs == nil {
		return nil
	}
	out := make([]string, len(fs.order))
	copy(out, fs.order)
	return out
}

// Files returns the files in insertion order.
func (fs *FileSet) Files() []GeneratedFile {
	if fs == nil {
		return nil
	}
	out := make([]GeneratedFile, 0, len(fs.order))
	for _, p := range fs.order {
		out = append(out, fs.files[p])
	}
	return out
}

// Len returns the number of files.
func (fs *FileSet) Len() int {
	if fs == nil {
		return 0
	}
	return len(fs.order)
}

// Clone returns an independent copy.
func (fs *FileSet) Clone() *FileSet {
	return NewFileSet(fs.Files()...)
}

// ValidationResult is the outcome of validating a whole file set.
type ValidationResult struct {
	Success  bool     `json:"success"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewValidationResult derives Success from the error list.
func NewValidationResult(errs, warnings []string) ValidationResult {
	return ValidationResult{
		Success:  len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	}
}

// =============================================================================
// PERSISTED STATE
// =============================================================================

// BuildConstraint is a directive learned from a recurring failure.
type BuildConstraint struct {
	Framework      Framework `json:"framework"`
	ConstraintText string    `json:"constraint_text"`
	ErrorPattern   string    `json:"error_pattern,omitempty"`
	HitCount       int       `json:"hit_count"`
}

// Build statuses
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// BuildRecord is one terminal build outcome.
type BuildRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Framework Framework `json:"framework"`
	Prompt    string    `json:"prompt"`
	Status    string    `json:"status"`
	ExePath   string    `json:"exe_path,omitempty"`
	SourceDir string    `json:"source_dir"`
	Provider  string    `json:"provider,omitempty"`
	Model     string    `json:"model,omitempty"`
	Branded   bool      `json:"branded"`
	BuildTime float64   `json:"build_time"` // seconds
	Output    string    `json:"output,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// BuildResult is what the orchestrator returns to its caller.
type BuildResult struct {
	Success   bool         `json:"success"`
	Output    string       `json:"output"`
	ExePath   string       `json:"exe_path,omitempty"`
	Framework Framework    `json:"framework"`
	AppName   string       `json:"app_name"`
	Record    *BuildRecord `json:"record,omitempty"`
}

// Manifest is written next to the generated sources.
type Manifest struct {
	BuildID   string    `json:"build_id"`
	Name      string    `json:"name"`
	Framework Framework `json:"framework"`
	Entry     string    `json:"entry"`
	Files     []string  `json:"files"`
	Branded   bool      `json:"branded"`
	CreatedAt time.Time `json:"created_at"`
}

// BuildStats summarises the build history.
type BuildStats struct {
	Total       int               `json:"total"`
	Completed   int               `json:"completed"`
	Failed      int               `json:"failed"`
	ByFramework map[Framework]int `json:"by_framework"`
	Constraints int               `json:"constraints"`
}

// SortedFrameworks returns the keys of ByFramework in a stable order.
func (s BuildStats) SortedFrameworks() []Framework {
	out := make([]Framework, 0, len(s.ByFramework))
	for f := range s.ByFramework {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
