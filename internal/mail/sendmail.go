package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/CZERTAINLY/email-output/internal/model"
)

// StatusError is returned when the MTA exits with non-zero status.
type StatusError struct {
	Command string
	Code    int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("'%s' returned %d", e.Command, e.Code)
}

// Sendmail hands the message to a local MTA on stdin.
type Sendmail struct {
	Headers Headers
	Path    string
	Args    []string
	// Output receives whatever the MTA prints, os.Stderr when nil.
	Output io.Writer
}

func NewSendmail(headers Headers, cfg *model.Sendmail) Sendmail {
	if cfg == nil {
		cfg = model.DefaultSendmail()
	}
	return Sendmail{
		Headers: headers,
		Path:    cfg.Path,
		Args:    append([]string(nil), cfg.Args...),
	}
}

func (s Sendmail) Send(ctx context.Context, body, subject string, to model.Recipient) error {
	msg, err := s.Headers.message(body, subject, to)
	if err != nil {
		return err
	}
	var stdin bytes.Buffer
	if _, err := msg.WriteTo(&stdin); err != nil {
		return fmt.Errorf("formatting message: %w", err)
	}

	out := s.Output
	if out == nil {
		out = os.Stderr
	}
	cmd := exec.CommandContext(ctx, s.Path, s.Args...)
	cmd.Stdin = &stdin
	cmd.Stdout = out
	cmd.Stderr = out

	slog.DebugContext(ctx, "running sendmail", "cmd", s.commandLine(), "to", to.String())
	err = cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &exitErr):
		return &StatusError{Command: s.commandLine(), Code: exitErr.ExitCode()}
	default:
		return fmt.Errorf("running '%s': %w", s.commandLine(), err)
	}
}

func (s Sendmail) String() string {
	return "sendmail"
}

func (s Sendmail) commandLine() string {
	return strings.Join(append([]string{s.Path}, s.Args...), " ")
}
