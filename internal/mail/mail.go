package mail

import (
	"context"
	"errors"

	"github.com/CZERTAINLY/email-output/internal/host"
	"github.com/CZERTAINLY/email-output/internal/model"
	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

var ErrNoRecipient = errors.New("no recipient")

// Sender delivers a single message. An empty (default) recipient means
// the local mailbox of the invoking user.
type Sender interface {
	Send(ctx context.Context, body, subject string, to model.Recipient) error
}

// Headers holds the addresses used to build a message.
type Headers struct {
	Identity host.Identity
	// From overrides the default From header.
	From string
	// DefaultTo replaces "<user>" for model.DefaultRecipient.
	DefaultTo string
}

func (h Headers) message(body, subject string, to model.Recipient) (*gomail.Message, error) {
	msg := gomail.NewMessage()
	if h.From != "" {
		msg.SetHeader("From", h.From)
	} else {
		user := h.Identity.User
		msg.SetAddressHeader("From", user, user+" @ "+h.Identity.Hostname)
	}

	switch {
	case !to.IsDefault():
		msg.SetHeader("To", string(to))
	case h.DefaultTo != "":
		msg.SetHeader("To", h.DefaultTo)
	case h.Identity.User != "":
		msg.SetHeader("To", "<"+h.Identity.User+">")
	default:
		return nil, ErrNoRecipient
	}

	msg.SetHeader("Subject", subject)
	msg.SetHeader("Message-ID", "<"+uuid.NewString()+"@"+h.Identity.Hostname+">")
	msg.SetBody("text/plain", body)
	return msg, nil
}
