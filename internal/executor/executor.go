// Package executor runs external commands with a hard wall-clock timeout,
// reliable termination, and bounded in-memory capture of both output
// streams.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/codeforge/execd/internal/logging"
)

const (
	// SentinelExitCode signals executor-level failure (timeout, launch
	// failure) as distinct from the guest program's own exit codes.
	SentinelExitCode = -1

	// maxCaptureBytes caps each captured stream to prevent OOM from
	// chatty commands. Display-level truncation happens later.
	maxCaptureBytes = 4 << 20 // 4 MB

	// killGracePeriod bounds how long we wait for a killed process group
	// to release its pipes so already-buffered output can drain.
	killGracePeriod = 5 * time.Second
)

// Request describes one external command to run.
type Request struct {
	// Argv is the program and arguments, exec'd directly with no shell
	// interpretation. Ignored when ShellLine is set.
	Argv []string

	// ShellLine, when non-empty, is run via "/bin/sh -c" instead of Argv.
	ShellLine string

	// Dir is the working directory. Empty means the caller's cwd.
	Dir string

	// Timeout is the hard wall-clock deadline measured from process start.
	Timeout time.Duration

	// Env adds variables on top of the inherited environment; keys here
	// override inherited ones.
	Env map[string]string
}

// Outcome is the uniform result shape for every execution, including
// launch failures and timeouts. Callers branch on ExitCode and never
// receive an error from Run.
type Outcome struct {
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out"`
}

// Executor runs commands as isolated OS processes.
type Executor struct {
	logger *logging.Logger
}

// New creates an executor.
func New(logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Executor{logger: logger.Component("executor")}
}

// Run executes req and always returns an Outcome; failures at launch or
// runtime are normalized into the sentinel exit code with a diagnostic on
// stderr. The call never blocks longer than req.Timeout plus the bounded
// grace period. Cancelling ctx terminates the process the same way the
// timeout does.
func (e *Executor) Run(ctx context.Context, req Request) Outcome {
	start := time.Now()

	var cmd *exec.Cmd
	switch {
	case req.ShellLine != "":
		cmd = exec.Command("/bin/sh", "-c", req.ShellLine)
	case len(req.Argv) > 0:
		cmd = exec.Command(req.Argv[0], req.Argv[1:]...)
	default:
		return Outcome{
			ExitCode: SentinelExitCode,
			Stderr:   "empty command",
			Duration: time.Since(start),
		}
	}

	cmd.Dir = req.Dir
	cmd.Env = mergeEnv(os.Environ(), req.Env)

	// Own process group, so a timeout can kill descendants too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdoutBuf, remaining: maxCaptureBytes}
	cmd.Stderr = &limitedWriter{w: &stderrBuf, remaining: maxCaptureBytes}

	if err := cmd.Start(); err != nil {
		return Outcome{
			ExitCode: SentinelExitCode,
			Stderr:   launchDiagnostic(err),
			Duration: time.Since(start),
		}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case waitErr := <-done:
		duration := time.Since(start)
		exitCode := 0
		if waitErr != nil {
			var exitErr *exec.ExitError
			if errors.As(waitErr, &exitErr) {
				exitCode = exitErr.ExitCode()
			} else {
				// Wait itself failed (pipe error etc.); treat as an
				// executor failure, not a guest failure.
				return Outcome{
					ExitCode: SentinelExitCode,
					Stdout:   decode(stdoutBuf.Bytes()),
					Stderr:   fmt.Sprintf("execution error: %v", waitErr),
					Duration: duration,
				}
			}
		}

		e.logger.Debug("execution completed",
			zap.Int("exit_code", exitCode),
			zap.Duration("duration", duration),
			zap.Int("stdout_bytes", stdoutBuf.Len()),
			zap.Int("stderr_bytes", stderrBuf.Len()),
		)

		return Outcome{
			ExitCode: exitCode,
			Stdout:   decode(stdoutBuf.Bytes()),
			Stderr:   decode(stderrBuf.Bytes()),
			Duration: duration,
		}

	case <-timer.C:
		e.reap(cmd, done)

		duration := time.Since(start)
		e.logger.Warn("execution timed out",
			zap.Duration("timeout", timeout),
			zap.Duration("duration", duration),
		)

		return Outcome{
			ExitCode: SentinelExitCode,
			Stdout:   decode(stdoutBuf.Bytes()),
			Stderr:   fmt.Sprintf("execution timed out after %s", timeout),
			Duration: duration,
			TimedOut: true,
		}

	case <-ctx.Done():
		e.reap(cmd, done)

		return Outcome{
			ExitCode: SentinelExitCode,
			Stdout:   decode(stdoutBuf.Bytes()),
			Stderr:   fmt.Sprintf("execution canceled: %v", ctx.Err()),
			Duration: time.Since(start),
		}
	}
}

// reap kills the process group and waits up to the grace period for Wait
// to return so already-buffered output can drain. Never blocks past the
// bound; after it the process is treated as reaped regardless.
func (e *Executor) reap(cmd *exec.Cmd, done <-chan error) {
	e.kill(cmd)
	select {
	case <-done:
	case <-time.After(killGracePeriod):
	}
}

// kill terminates the whole process group, falling back to the single
// process if the group signal fails.
func (e *Executor) kill(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	// Negative PID = the entire process group.
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		_ = cmd.Process.Kill()
	}
}

// launchDiagnostic maps the three launch failure classes to distinct
// messages, all carried on the sentinel exit path.
func launchDiagnostic(err error) string {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return fmt.Sprintf("command not found: %v", err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Sprintf("permission denied: %v", err)
	default:
		return fmt.Sprintf("execution error: %v", err)
	}
}

// decode converts captured bytes to a string, replacing invalid UTF-8
// rather than failing on binary output.
func decode(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}

// mergeEnv layers extra on top of base; extra keys win.
func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	merged := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		key := kv
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			key = kv[:idx]
		}
		if _, overridden := extra[key]; !overridden {
			merged = append(merged, kv)
		}
	}
	for k, v := range extra {
		merged = append(merged, k+"="+v)
	}
	return merged
}

// limitedWriter stops writing after a byte limit; excess is silently
// discarded rather than treated as an error.
type limitedWriter struct {
	w         io.Writer
	remaining int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if lw.remaining <= 0 {
		return len(p), nil
	}
	n := len(p)
	if n > lw.remaining {
		p = p[:lw.remaining]
	}
	written, err := lw.w.Write(p)
	lw.remaining -= written
	if err != nil {
		return written, err
	}
	return n, nil
}
