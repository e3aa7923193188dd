package model

import (
	"strings"
	"time"

	"github.com/CZERTAINLY/email-output/internal/buffer"
)

// ExecutionRequest describes a single command to be executed.
type ExecutionRequest struct {
	command       []string
	combineOutput bool
}

func NewExecutionRequest(command []string, combineOutput bool) (ExecutionRequest, error) {
	if len(command) == 0 || command[0] == "" {
		return ExecutionRequest{}, ErrEmptyCommand
	}
	return ExecutionRequest{
		command:       append([]string(nil), command...),
		combineOutput: combineOutput,
	}, nil
}

// Command returns a copy of argv.
func (r ExecutionRequest) Command() []string {
	return append([]string(nil), r.command...)
}

func (r ExecutionRequest) Path() string {
	if len(r.command) == 0 {
		return ""
	}
	return r.command[0]
}

func (r ExecutionRequest) Args() []string {
	if len(r.command) < 2 {
		return nil
	}
	return append([]string(nil), r.command[1:]...)
}

func (r ExecutionRequest) CombineOutput() bool {
	return r.combineOutput
}

// CommandLine is the space joined argv, used as default subject and in the
// message header.
func (r ExecutionRequest) CommandLine() string {
	return strings.Join(r.command, " ")
}

// ExecutionResult is produced once per run by the runner. Stderr is nil
// when the output was combined. The buffers are owned by the result and
// released by Close.
type ExecutionResult struct {
	ExitCode    int
	Combined    bool
	StartedAt   time.Time
	FinishedAt  time.Time
	Stdout      *buffer.Buffer
	Stderr      *buffer.Buffer
	LaunchError error
}

// HasOutput is true iff stdout is non-empty, or the output was not combined
// and stderr is non-empty.
func (r ExecutionResult) HasOutput() bool {
	if r.Stdout != nil && r.Stdout.NonEmpty() {
		return true
	}
	return !r.Combined && r.Stderr != nil && r.Stderr.NonEmpty()
}

func (r ExecutionResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r ExecutionResult) Close() error {
	errStdout := r.Stdout.Close()
	errStderr := r.Stderr.Close()
	if errStdout != nil {
		return errStdout
	}
	return errStderr
}
