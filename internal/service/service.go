package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/CZERTAINLY/email-output/internal/compose"
	"github.com/CZERTAINLY/email-output/internal/metrics"
	"github.com/CZERTAINLY/email-output/internal/model"
	"github.com/CZERTAINLY/email-output/internal/policy"
)

// ExitCodeFailure is returned together with an error when the wrapper
// itself failed.
const ExitCodeFailure = 1

// Job is one invocation of the wrapper.
type Job struct {
	Request    model.ExecutionRequest
	Flags      policy.Flags
	Subject    string   // empty means the command line
	Recipients []string // empty means the default local recipient
}

type Runner interface {
	Run(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResult, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, msg model.OutgoingMessage) int
}

type Wrapper struct {
	runner      Runner
	composer    compose.Composer
	dispatcher  Dispatcher
	metrics     *metrics.Recorder
	metricsPath string
	stdout      io.Writer
	stderr      io.Writer
}

// NewWrapper returns a Wrapper echoing the captured output to stdout and
// stderr.
func NewWrapper(runner Runner, composer compose.Composer, dispatcher Dispatcher, stdout, stderr io.Writer) *Wrapper {
	return &Wrapper{
		runner:     runner,
		composer:   composer,
		dispatcher: dispatcher,
		stdout:     stdout,
		stderr:     stderr,
	}
}

// WithMetrics makes Do record the run into the textfile at path.
func (w *Wrapper) WithMetrics(recorder *metrics.Recorder, path string) *Wrapper {
	w.metrics = recorder
	w.metricsPath = path
	return w
}

// Do runs the job and returns the exit code of the command. An error means
// the wrapper itself failed (no temporary buffer, output not valid UTF-8).
func (w *Wrapper) Do(ctx context.Context, job Job) (int, error) {
	result, err := w.runner.Run(ctx, job.Request)
	if err != nil {
		return ExitCodeFailure, fmt.Errorf("running %s: %w", job.Request.Path(), err)
	}
	defer func() {
		if err := result.Close(); err != nil {
			slog.WarnContext(ctx, "releasing output buffers", "error", err)
		}
	}()

	w.echo(ctx, result)

	hasOutput := result.HasOutput()
	send := policy.ShouldSend(result.ExitCode, hasOutput, job.Flags)
	slog.DebugContext(ctx, "notification policy",
		"exit_code", result.ExitCode,
		"has_output", hasOutput,
		"flags", job.Flags,
		"send", send,
	)

	w.metrics.ObserveRun(result, send)
	defer w.writeMetrics(ctx)

	if !send {
		return result.ExitCode, nil
	}

	msg, err := w.composer.Compose(result, job.Request, job.Subject, model.Recipients(job.Recipients))
	if err != nil {
		return ExitCodeFailure, fmt.Errorf("composing message: %w", err)
	}
	sent := w.dispatcher.Dispatch(ctx, msg)
	slog.DebugContext(ctx, "notification dispatched", "sent", sent, "recipients", len(msg.Recipients))
	return result.ExitCode, nil
}

func (w *Wrapper) echo(ctx context.Context, result model.ExecutionResult) {
	if result.Stdout != nil {
		if _, err := result.Stdout.WriteTo(w.stdout); err != nil {
			slog.WarnContext(ctx, "writing captured stdout", "error", err)
		}
	}
	if !result.Combined && result.Stderr != nil {
		if _, err := result.Stderr.WriteTo(w.stderr); err != nil {
			slog.WarnContext(ctx, "writing captured stderr", "error", err)
		}
	}
}

func (w *Wrapper) writeMetrics(ctx context.Context) {
	if err := w.metrics.WriteTextfile(w.metricsPath); err != nil {
		slog.WarnContext(ctx, "metrics not written", "error", err)
	}
}
