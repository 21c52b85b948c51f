// Package validate runs framework-specific static checks over a generated
// file set.
//
// Checks are data: a Registry maps each framework to an ordered list of rules.
// A rule either inspects one file (filtered by extension) or the whole set.
// Adding a framework or a check means adding rules, not control flow.
package validate

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/saeedalam/promptforge/pkg/types"
)

// Severity decides whether a finding fails validation.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// View selects which rendering of a file a pattern is matched against.
type View int

const (
	ViewRaw  View = iota // file as written
	ViewCode             // comments removed
	ViewBare             // comments and string bodies removed
)

// Rule is one check.
type Rule struct {
	ID         string
	Message    string
	Severity   Severity
	Extensions []string
	View       View

	// Pattern reports one finding per distinct match.
	Pattern *regexp.Regexp
	// Check returns zero or more finding details for a single file.
	Check func(f types.GeneratedFile, src Source) []string
	// CheckSet inspects the whole set; it runs once per validation.
	CheckSet func(files []types.GeneratedFile) []string
}

func (r Rule) appliesTo(p string) bool {
	if len(r.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(path.Ext(p))
	for _, e := range r.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Registry maps frameworks to their ordered rules.
type Registry map[types.Framework][]Rule

// Register appends rules for a framework.
func (r Registry) Register(fw types.Framework, rules ...Rule) {
	r[fw] = append(r[fw], rules...)
}

// DefaultRegistry returns the built-in rule set.
func DefaultRegistry() Registry {
	reg := Registry{}
	for _, fw := range types.Frameworks {
		reg.Register(fw, commonRules()...)
	}
	reg.Register(types.FrameworkPowerShell, powerShellRules()...)
	reg.Register(types.FrameworkPowerShellModule, powerShellRules()...)
	reg.Register(types.FrameworkPowerShellModule, moduleRules()...)
	reg.Register(types.FrameworkPythonTk, pythonRules()...)
	reg.Register(types.FrameworkPythonWeb, pythonRules()...)
	reg.Register(types.FrameworkTauri, tauriRules()...)
	return reg
}

// lexers choose the scanner used to build a Source for an extension.
var lexers = map[string]func(string) Source{
	".ps1":  lexPowerShell,
	".psm1": lexPowerShell,
	".psd1": lexPowerShell,
	".py":   lexPython,
	".pyw":  lexPython,
	".rs":   lexRust,
	".js":   lexScript,
	".mjs":  lexScript,
	".ts":   lexScript,
}

func sourceFor(f types.GeneratedFile) Source {
	if lex, ok := lexers[strings.ToLower(path.Ext(f.Path))]; ok {
		return lex(f.Content)
	}
	return Source{Raw: f.Content, Code: f.Content, Bare: f.Content}
}

// Validator applies a registry.
type Validator struct {
	registry Registry
	logger   *zap.Logger
}

// New returns a validator over the default registry.
func New(logger *zap.Logger) *Validator {
	return NewWithRegistry(DefaultRegistry(), logger)
}

// NewWithRegistry returns a validator over a custom registry.
func NewWithRegistry(reg Registry, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{registry: reg, logger: logger}
}

// Rules returns the rules registered for fw.
func (v *Validator) Rules(fw types.Framework) []Rule {
	return v.registry[fw]
}

// Validate checks the whole set; any error anywhere fails it.
func (v *Validator) Validate(files *types.FileSet, fw types.Framework) types.ValidationResult {
	var nonBlank []types.GeneratedFile
	for _, f := range files.Files() {
		if strings.TrimSpace(f.Content) != "" {
			nonBlank = append(nonBlank, f)
		}
	}
	if len(nonBlank) == 0 {
		return types.NewValidationResult(nil, nil)
	}

	var errs, warns []string
	add := func(r Rule, msg string) {
		if r.Severity == SeverityWarning {
			warns = append(warns, msg)
			return
		}
		errs = append(errs, msg)
	}

	rules := v.registry[fw]
	sources := make(map[string]Source, len(nonBlank))

	for _, r := range rules {
		if r.CheckSet != nil {
			for _, d := range r.CheckSet(nonBlank) {
				add(r, fmt.Sprintf("%s: %s", r.ID, d))
			}
			continue
		}
		for _, f := range nonBlank {
			if !r.appliesTo(f.Path) {
				continue
			}
			src, ok := sources[f.Path]
			if !ok {
				src = sourceFor(f)
				sources[f.Path] = src
			}
			for _, d := range applyFileRule(r, f, src) {
				add(r, fmt.Sprintf("%s: %s: %s", f.Path, r.ID, d))
			}
		}
	}

	result := types.NewValidationResult(errs, warns)
	v.logger.Debug("validation finished",
		zap.String("framework", string(fw)),
		zap.Int("files", len(nonBlank)),
		zap.Int("errors", len(errs)),
		zap.Int("warnings", len(warns)))
	return result
}

func applyFileRule(r Rule, f types.GeneratedFile, src Source) []string {
	if r.Check != nil {
		return r.Check(f, src)
	}
	if r.Pattern == nil {
		return nil
	}
	text := src.Raw
	switch r.View {
	case ViewCode:
		text = src.Code
	case ViewBare:
		text = src.Bare
	}

	seen := make(map[string]bool)
	var out []string
	for _, loc := range r.Pattern.FindAllStringIndex(text, -1) {
		m := strings.TrimSpace(text[loc[0]:loc[1]])
		if seen[m] {
			continue
		}
		seen[m] = true
		line := strings.Count(text[:loc[0]], "\n") + 1
		out = append(out, fmt.Sprintf("%s (line %d: %q)", r.Message, line, m))
	}
	return out
}

// =============================================================================
// HELPERS
// =============================================================================

func byBase(files []types.GeneratedFile, base string) []types.GeneratedFile {
	var out []types.GeneratedFile
	for _, f := range files {
		if strings.EqualFold(path.Base(f.Path), base) {
			out = append(out, f)
		}
	}
	return out
}

func byExt(files []types.GeneratedFile, exts ...string) []types.GeneratedFile {
	var out []types.GeneratedFile
	for _, f := range files {
		ext := strings.ToLower(path.Ext(f.Path))
		for _, e := range exts {
			if ext == e {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

func hasPath(files []types.GeneratedFile, p string) bool {
	p = path.Clean(p)
	for _, f := range files {
		if path.Clean(f.Path) == p {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// COMMON
// =============================================================================

func commonRules() []Rule {
	return []Rule{
		{
			ID:      "unsafe-path",
			Message: "generated file paths must be relative and stay inside the project",
			CheckSet: func(files []types.GeneratedFile) []string {
				var out []string
				for _, f := range files {
					if !SafePath(f.Path) {
						out = append(out, fmt.Sprintf("%q escapes the project directory", f.Path))
					}
				}
				return out
			},
		},
	}
}

// SafePath reports whether p is relative and contains no parent segments.
func SafePath(p string) bool {
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" || strings.HasPrefix(p, "/") || (len(p) > 1 && p[1] == ':') {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}
