// Package bridge runs the external device-bridge executable (adb) and reports
// its exit status and output streams.
package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bryanchriswhite/questcap/internal/logger"
)

// DefaultPath is the bridge executable looked up on PATH when none is configured.
const DefaultPath = "adb"

// ErrNotFound is returned when the bridge executable cannot be started.
var ErrNotFound = errors.New("bridge executable not found")

// Result holds the outcome of one bridge invocation.
type Result struct {
	Args     []string
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// OK reports whether the command exited with status 0.
func (r *Result) OK() bool {
	return r.ExitCode == 0
}

// Output returns stdout as trimmed text.
func (r *Result) Output() string {
	return strings.TrimSpace(string(r.Stdout))
}

// Runner executes bridge commands. A non-zero exit is not an error: it is
// reported through Result.ExitCode. Errors mean the command could not be run
// at all (missing binary, cancelled context, I/O failure).
type Runner interface {
	Run(ctx context.Context, args ...string) (*Result, error)
}

// ExecRunner runs the bridge as a subprocess.
type ExecRunner struct {
	Path string
}

// NewExecRunner creates a runner for the executable at path (DefaultPath if empty).
func NewExecRunner(path string) *ExecRunner {
	if path == "" {
		path = DefaultPath
	}
	return &ExecRunner{Path: path}
}

// Run executes the bridge with args and waits for it to exit.
func (r *ExecRunner) Run(ctx context.Context, args ...string) (*Result, error) {
	log := logger.WithComponent("bridge")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug().Strs("args", args).Msg("Running bridge command")

	err := cmd.Run()
	res := &Result{
		Args:   args,
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			res.ExitCode = exitErr.ExitCode()
			log.Debug().
				Strs("args", args).
				Int("exit_code", res.ExitCode).
				Str("stderr", strings.TrimSpace(stderr.String())).
				Msg("Bridge command failed")
			return res, nil
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, r.Path)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to run %s %s: %w", r.Path, strings.Join(args, " "), err)
	}

	return res, nil
}
