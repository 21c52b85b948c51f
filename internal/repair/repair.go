// Package repair runs the validate, auto-fix, learn and regenerate cycle
// for one build.
package repair

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/saeedalam/promptforge/internal/generate"
	"github.com/saeedalam/promptforge/pkg/types"
)

// State is a step of the repair state machine.
type State int

const (
	StateGenerated State = iota
	StateValidating
	StateSuccess
	StateRepairing
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateGenerated:
		return "generated"
	case StateValidating:
		return "validating"
	case StateSuccess:
		return "success"
	case StateRepairing:
		return "repairing"
	case StateExhausted:
		return "exhausted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Generator is the part of generate.Generator the loop needs.
type Generator interface {
	Generate(ctx context.Context, in generate.Input) (generate.Result, error)
}

// Validator is the part of validate.Validator the loop needs.
type Validator interface {
	Validate(files *types.FileSet, fw types.Framework) types.ValidationResult
}

// Learner turns errors into persisted constraints.
type Learner interface {
	Learn(ctx context.Context, fw types.Framework, errs []string) []string
}

// Outcome is the terminal result of Run.
type Outcome struct {
	State       State
	Files       *types.FileSet
	Validation  types.ValidationResult
	Attempts    int // regenerations performed
	Constraints []string
	Fixes       []string
	Truncations int
	LogPath     string
	Output      string
}

// Loop drives a file set to a passing validation or to exhaustion.
type Loop struct {
	gen        Generator
	val        Validator
	mem        Learner
	fixes      []Fix
	maxRetries int
	logger     *zap.Logger

	// OnTransition, when set, observes every state change.
	OnTransition func(state State, attempt int)
}

// New creates a loop that regenerates at most maxRetries times.
func New(gen Generator, val Validator, mem Learner, maxRetries int, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Loop{
		gen:        gen,
		val:        val,
		mem:        mem,
		fixes:      DefaultFixes,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// WithFixes replaces the auto-fix table.
func (l *Loop) WithFixes(fixes []Fix) *Loop {
	l.fixes = fixes
	return l
}

func (l *Loop) enter(s State, attempt int) {
	l.logger.Debug("repair state", zap.Stringer("state", s), zap.Int("attempt", attempt))
	if l.OnTransition != nil {
		l.OnTransition(s, attempt)
	}
}

// Run validates files generated from in and repairs them until they pass.
// It returns types.ErrRepairExhausted when the retry bound is reached with
// errors remaining; provider failures are returned as they occur.
func (l *Loop) Run(ctx context.Context, in generate.Input, files *types.FileSet) (Outcome, error) {
	fw := in.Framework
	out := Outcome{Files: files, Constraints: append([]string(nil), in.Constraints...)}
	l.enter(StateGenerated, 0)

	// learn is false while the file set is unchanged since the last Learn.
	learn := true
	for {
		l.enter(StateValidating, out.Attempts)
		res := l.val.Validate(out.Files, fw)

		if !res.Success {
			fixed, applied := ApplyFixes(l.fixes, out.Files, res.Errors)
			if len(applied) > 0 {
				l.logger.Info("auto-fixes applied",
					zap.String("framework", string(fw)),
					zap.Strings("fixes", applied))
				out.Fixes = append(out.Fixes, applied...)
				out.Files = fixed
				res = l.val.Validate(out.Files, fw)
			}
		}
		out.Validation = res

		if res.Success {
			l.enter(StateSuccess, out.Attempts)
			out.State = StateSuccess
			out.Output = fmt.Sprintf("validation passed after %d repair attempt(s)", out.Attempts)
			return out, nil
		}

		l.logger.Info("validation failed",
			zap.String("framework", string(fw)),
			zap.Int("attempt", out.Attempts),
			zap.Strings("errors", res.Errors))

		if learn {
			learned := l.mem.Learn(ctx, fw, res.Errors)
			out.Constraints = mergeConstraints(out.Constraints, learned)
			learn = false
		}

		if out.Attempts >= l.maxRetries {
			l.enter(StateExhausted, out.Attempts)
			out.State = StateExhausted
			out.Output = fmt.Sprintf("validation failed after %d repair attempt(s):\n  %s",
				out.Attempts, strings.Join(res.Errors, "\n  "))
			return out, types.ErrRepairExhausted
		}

		if err := ctx.Err(); err != nil {
			out.State = StateExhausted
			out.Output = fmt.Sprintf("repair interrupted: %v", err)
			return out, err
		}

		out.Attempts++
		l.enter(StateRepairing, out.Attempts)

		next := in
		next.Constraints = out.Constraints
		next.Repair = &generate.RepairContext{Errors: res.Errors, Files: out.Files}

		gr, err := l.gen.Generate(ctx, next)
		switch {
		case errors.Is(err, types.ErrTruncated):
			// The attempt is spent; the previous files stay in play.
			out.Truncations++
			out.LogPath = gr.LogPath
			l.logger.Warn("repair generation truncated",
				zap.Int("attempt", out.Attempts), zap.String("log", gr.LogPath))
			continue
		case err != nil:
			out.State = StateExhausted
			out.Output = gr.Output
			if out.Output == "" {
				out.Output = err.Error()
			}
			return out, err
		}

		out.Files = gr.Files
		learn = true
		l.enter(StateGenerated, out.Attempts)
	}
}

func mergeConstraints(have, add []string) []string {
	seen := make(map[string]bool, len(have))
	for _, c := range have {
		seen[c] = true
	}
	out := have
	for _, c := range add {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
