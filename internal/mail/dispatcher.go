package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CZERTAINLY/email-output/internal/model"
)

// Observer is notified about the outcome of every delivery.
type Observer interface {
	MailSent(transport string)
	MailFailed(transport string)
}

type Dispatcher struct {
	sender    Sender
	transport string
	observer  Observer
}

// NewDispatcher returns a Dispatcher for sender. The observer may be nil.
func NewDispatcher(sender Sender, observer Observer) Dispatcher {
	return Dispatcher{
		sender:    sender,
		transport: fmt.Sprint(sender),
		observer:  observer,
	}
}

// Dispatch sends msg to every recipient in order and returns how many
// deliveries succeeded. A failed delivery is logged and the loop goes on.
func (d Dispatcher) Dispatch(ctx context.Context, msg model.OutgoingMessage) int {
	var sent int
	for _, to := range msg.Recipients {
		err := d.sender.Send(ctx, msg.Body, msg.Subject, to)
		if err != nil {
			slog.ErrorContext(ctx, "sending email failed ("+err.Error()+")",
				"transport", d.transport,
				"recipient", to.String(),
				"error", err,
			)
			if d.observer != nil {
				d.observer.MailFailed(d.transport)
			}
			continue
		}
		sent++
		if d.observer != nil {
			d.observer.MailSent(d.transport)
		}
	}
	return sent
}
