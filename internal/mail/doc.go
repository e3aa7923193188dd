// Package mail delivers the composed notification.
//
// A Sender delivers one message to one recipient. Two transports exist:
//   - Sendmail pipes the RFC 5322 message to a local MTA ("sendmail -t -oi"),
//     the MTA takes the recipients from the headers. This is the default and
//     the only one able to deliver to the local mailbox of the invoking user.
//   - SMTP talks to a relay through gomail's Dialer, with optional retries.
//
// The Dispatcher calls a Sender once per recipient, in order. Failures are
// logged and counted, they never stop the loop nor change the exit code of
// the wrapper.
//
// Headers:
//
//	From:       "<user> @ <host>" <user>   (unless configured)
//	To:         <user>                     (default recipient)
//	Subject:    the command line           (unless configured)
//	Message-ID: <uuid@host>
package mail
