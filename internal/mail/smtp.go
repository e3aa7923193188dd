package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/CZERTAINLY/email-output/internal/model"
	"gopkg.in/gomail.v2"
)

const maxBackoff = 32 * time.Second

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTP delivers through a relay. The local mailbox has no meaning there, so
// the default recipient is a configured address.
type SMTP struct {
	headers    Headers
	dialer     dialer
	host       string
	port       int
	retryCount int
	backoff    time.Duration
	sleep      func(context.Context, time.Duration) error
}

func NewSMTP(headers Headers, cfg model.SMTP) (*SMTP, error) {
	backoff, err := cfg.Backoff()
	if err != nil {
		return nil, err
	}
	if headers.From == "" {
		headers.From = fmt.Sprintf("%q <%s@%s>",
			headers.Identity.User+" @ "+headers.Identity.Hostname,
			headers.Identity.User,
			headers.Identity.Hostname,
		)
	}
	headers.DefaultTo = cfg.DefaultRecipient

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	if cfg.InsecureSkipVerify {
		slog.Warn("InsecureSkipVerify is enabled for mail TLS connection", "host", cfg.Host)
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true, ServerName: cfg.Host}
	}

	return &SMTP{
		headers:    headers,
		dialer:     d,
		host:       cfg.Host,
		port:       cfg.Port,
		retryCount: cfg.RetryCount,
		backoff:    backoff,
		sleep:      sleep,
	}, nil
}

func (s *SMTP) Send(ctx context.Context, body, subject string, to model.Recipient) error {
	msg, err := s.headers.message(body, subject, to)
	if err != nil {
		return err
	}

	var lastErr error
	backoff := s.backoff
	for attempt := 0; attempt <= s.retryCount; attempt++ {
		err := s.dialer.DialAndSend(msg)
		if err == nil {
			slog.DebugContext(ctx, "mail sent", "host", s.host, "to", to.String(), "attempt", attempt+1)
			return nil
		}
		lastErr = err
		if attempt == s.retryCount {
			break
		}
		slog.WarnContext(ctx, "send attempt failed, retrying",
			"host", s.host,
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err,
		)
		if err := s.sleep(ctx, backoff); err != nil {
			return err
		}
		backoff = min(2*backoff, maxBackoff)
	}
	return fmt.Errorf("sending via %s:%d after %d attempts: %w", s.host, s.port, s.retryCount+1, lastErr)
}

func (s *SMTP) String() string {
	return "smtp"
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
