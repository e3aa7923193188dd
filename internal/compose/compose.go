// Package compose builds the notification mail out of an execution result.
package compose

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/CZERTAINLY/email-output/internal/buffer"
	"github.com/CZERTAINLY/email-output/internal/model"
)

// TimestampLayout renders as "Fri, 01.03.2024 12:00:00.000000 CET (+0100)".
const TimestampLayout = "Mon, 02.01.2006 15:04:05.000000 MST (-0700)"

const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

var ErrDecode = errors.New("output is not valid UTF-8")

// DecodeError reports captured output which is not valid UTF-8 text.
type DecodeError struct {
	Stream string
	Offset int // of the first invalid byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: invalid UTF-8 at byte %d", e.Stream, e.Offset)
}

func (e *DecodeError) Unwrap() error {
	return ErrDecode
}

type Composer struct {
	Hostname string
}

// Compose builds the message. Empty subject means the command line.
func (c Composer) Compose(result model.ExecutionResult, req model.ExecutionRequest, subject string, recipients []model.Recipient) (model.OutgoingMessage, error) {
	if subject == "" {
		subject = req.CommandLine()
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Host:        %s\n", c.Hostname)
	fmt.Fprintf(&body, "Command:     %s\n", req.CommandLine())
	fmt.Fprintf(&body, "Started at:  %s\n", result.StartedAt.Format(TimestampLayout))
	fmt.Fprintf(&body, "Finished at: %s\n", result.FinishedAt.Format(TimestampLayout))
	fmt.Fprintf(&body, "Return code: %d\n", result.ExitCode)
	body.WriteString("\n")

	if result.Combined {
		body.WriteString("Output:\n")
		if err := decode(&body, StreamStdout, result.Stdout); err != nil {
			return model.OutgoingMessage{}, err
		}
	} else {
		body.WriteString("----- stdout -----\n")
		if err := decode(&body, StreamStdout, result.Stdout); err != nil {
			return model.OutgoingMessage{}, err
		}
		body.WriteString("----- stderr -----\n")
		if err := decode(&body, StreamStderr, result.Stderr); err != nil {
			return model.OutgoingMessage{}, err
		}
	}

	if len(recipients) == 0 {
		recipients = model.Recipients(nil)
	}
	return model.OutgoingMessage{
		Subject:    subject,
		Body:       body.String(),
		Recipients: append([]model.Recipient(nil), recipients...),
	}, nil
}

func decode(sb *strings.Builder, stream string, b *buffer.Buffer) error {
	if b == nil {
		return nil
	}
	raw, err := b.Bytes()
	if err != nil {
		return fmt.Errorf("reading %s: %w", stream, err)
	}
	if !utf8.Valid(raw) {
		return &DecodeError{Stream: stream, Offset: invalidAt(raw)}
	}
	sb.Write(raw)
	return nil
}

func invalidAt(raw []byte) int {
	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRune(raw[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(raw)
}
