// Package runner executes the wrapped command once and captures its output
// into temporary buffers.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/CZERTAINLY/email-output/internal/buffer"
	"github.com/CZERTAINLY/email-output/internal/model"
	"golang.org/x/sys/unix"
)

// ExitCodeUnknown is used for launch failures not carrying an errno.
const ExitCodeUnknown = 127

// Runner is a thin wrapper around os/exec:
//   - starts the process and waits for it
//   - captures stdout and stderr (or both combined) into buffers
//   - records the time before start and after exit
//   - turns a failed start into a synthetic output line and an errno exit code
type Runner struct {
	// TempDir is where the buffers are created, empty means os.TempDir.
	TempDir string
	// Timeout kills the command when exceeded, zero waits indefinitely.
	Timeout time.Duration
	// Stdin is passed to the command, nil means the null device.
	Stdin io.Reader
	// Now returns the current time, time.Now by default.
	Now func() time.Time
}

func NewRunner() *Runner {
	return &Runner{
		Stdin: os.Stdin,
		Now:   time.Now,
	}
}

// Run executes the request. The returned error is about the runner itself
// (buffers could not be created); neither a non-zero exit nor a failed start
// of the command are errors. The caller owns the result and must Close it.
func (r *Runner) Run(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResult, error) {
	stdout, stderr, err := r.buffers(req.CombineOutput())
	if err != nil {
		return model.ExecutionResult{}, err
	}
	result := model.ExecutionResult{
		Combined: req.CombineOutput(),
		Stdout:   stdout,
		Stderr:   stderr,
	}

	if r.Timeout == 0 {
		slog.DebugContext(ctx, "command has no timeout", "path", req.Path())
	} else {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, req.Path(), req.Args()...)
	cmd.Stdin = r.Stdin
	cmd.Stdout = stdout.File()
	if stderr != nil {
		cmd.Stderr = stderr.File()
	} else {
		cmd.Stderr = stdout.File()
	}

	result.StartedAt = r.now()
	runErr := cmd.Run()
	result.FinishedAt = r.now()

	if err := errors.Join(stdout.Sync(), stderrSync(stderr)); err != nil {
		_ = result.Close()
		return model.ExecutionResult{}, err
	}

	if cmd.ProcessState != nil {
		result.ExitCode = exitCode(cmd.ProcessState)
		slog.DebugContext(ctx, "command finished",
			"path", req.Path(),
			"exit_code", result.ExitCode,
			"duration", result.Duration(),
		)
		return result, nil
	}

	// the process has never started
	code, text := launchFailure(runErr)
	result.ExitCode = code
	result.LaunchError = runErr
	slog.DebugContext(ctx, "command failed to start", "path", req.Path(), "error", runErr)

	sink := stdout
	if stderr != nil {
		sink = stderr
	}
	if _, err := fmt.Fprintf(sink, "%s: %s\n", req.Path(), text); err != nil {
		_ = result.Close()
		return model.ExecutionResult{}, fmt.Errorf("writing launch error: %w", err)
	}
	return result, nil
}

func (r *Runner) buffers(combined bool) (*buffer.Buffer, *buffer.Buffer, error) {
	stdout, err := buffer.New(r.TempDir)
	if err != nil {
		return nil, nil, err
	}
	if combined {
		return stdout, nil, nil
	}
	stderr, err := buffer.New(r.TempDir)
	if err != nil {
		_ = stdout.Close()
		return nil, nil, err
	}
	return stdout, stderr, nil
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func stderrSync(b *buffer.Buffer) error {
	if b == nil {
		return nil
	}
	return b.Sync()
}

// exitCode follows the shell convention 128+N for a process killed by signal N.
func exitCode(state *os.ProcessState) int {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}

// launchFailure maps an error from exec into the OS error number and its
// text, so "not found" becomes (2, "No such file or directory").
func launchFailure(err error) (int, string) {
	var errno unix.Errno
	switch {
	case errors.As(err, &errno):
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		errno = unix.ENOENT
	case errors.Is(err, fs.ErrPermission):
		errno = unix.EACCES
	default:
		return ExitCodeUnknown, err.Error()
	}
	return int(errno), capitalize(errno.Error())
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
