// Package packager hands a validated source directory to the native
// toolchain that turns it into an executable.
package packager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/saeedalam/promptforge/pkg/types"
)

// Job is one packaging request.
type Job struct {
	Framework types.Framework
	SourceDir string
	Entry     string // path of the entry file, absolute or relative to SourceDir
	AppName   string
}

// Result is what the packager reported.
type Result struct {
	Skipped  bool
	ExitCode int
	ExePath  string
	Output   string
	Duration time.Duration
}

// Succeeded reports whether packaging finished with exit code 0.
func (r Result) Succeeded() bool {
	return r.Skipped || r.ExitCode == 0
}

// Packager builds the executable for a job. An error means the tool could
// not be run at all; a non-zero exit is reported in Result.
type Packager interface {
	Package(ctx context.Context, job Job) (Result, error)
}

// Noop never packages; every build stays source-only.
type Noop struct{}

func (Noop) Package(context.Context, Job) (Result, error) {
	return Result{Skipped: true, Output: "no packager configured; sources only"}, nil
}

// Exec runs a configured command line per framework. Arguments may use the
// placeholders {entry}, {source_dir}, {output} and {name}.
type Exec struct {
	Commands map[types.Framework][]string
	logger   *zap.Logger
}

// NewExec returns an exec packager for the given command table.
func NewExec(commands map[types.Framework][]string, logger *zap.Logger) *Exec {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exec{Commands: commands, logger: logger}
}

// OutputPath is where a job's executable is expected.
func OutputPath(job Job) string {
	return filepath.Join(job.SourceDir, "dist", job.AppName+".exe")
}

// Expand substitutes the job's values into argv.
func Expand(argv []string, job Job) []string {
	entry := job.Entry
	if entry != "" && !filepath.IsAbs(entry) {
		entry = filepath.Join(job.SourceDir, filepath.FromSlash(entry))
	}
	r := strings.NewReplacer(
		"{entry}", entry,
		"{source_dir}", job.SourceDir,
		"{output}", OutputPath(job),
		"{name}", job.AppName,
	)
	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = r.Replace(a)
	}
	return out
}

func (e *Exec) Package(ctx context.Context, job Job) (Result, error) {
	argv := e.Commands[job.Framework]
	if len(argv) == 0 {
		return Noop{}.Package(ctx, job)
	}
	args := Expand(argv, job)

	if err := os.MkdirAll(filepath.Dir(OutputPath(job)), 0755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = job.SourceDir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	e.logger.Info("packaging",
		zap.String("framework", string(job.Framework)),
		zap.Strings("argv", args))

	start := time.Now()
	err := cmd.Run()
	res := Result{Output: buf.String(), Duration: time.Since(start)}

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	case err != nil:
		return res, fmt.Errorf("run %s: %w", args[0], err)
	}

	if _, err := os.Stat(OutputPath(job)); err == nil {
		res.ExePath = OutputPath(job)
	}
	return res, nil
}
