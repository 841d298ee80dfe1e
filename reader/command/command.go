// Package command runs the external process-control tool with a bounded timeout.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"clawdash/logger"
)

// DefaultTimeout bounds a single invocation when none is configured.
const DefaultTimeout = 10 * time.Second

// Runner executes name with args and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExitError is returned when the command ran but exited non-zero.
type ExitError struct {
	Name   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Name, e.Code)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// ErrTimeout is wrapped when an invocation exceeds its timeout.
var ErrTimeout = errors.New("command timed out")

// ExecRunner runs commands through os/exec.
type ExecRunner struct {
	Timeout time.Duration
	log     *logger.Entry
}

func NewExecRunner(timeout time.Duration) *ExecRunner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ExecRunner{
		Timeout: timeout,
		log:     logger.GetLogger().WithComponent("command"),
	}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	logger.LogPerformanceEntry(r.log, "command", name+" "+strings.Join(args, " "), time.Since(start), nil)

	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%s %s: %w after %s", name, strings.Join(args, " "), ErrTimeout, r.Timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ExitError{Name: name, Code: exitErr.ExitCode(), Stderr: strings.TrimSpace(stderr.String())}
		}
		return nil, fmt.Errorf("run %s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// Func adapts a function to the Runner interface.
type Func func(ctx context.Context, name string, args ...string) ([]byte, error)

func (f Func) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f(ctx, name, args...)
}
