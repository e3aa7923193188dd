// Package policy decides whether the output of a command is worth a mail.
package policy

// Flags are the suppression flags. Each one set adds a necessary condition
// for sending; with none set a mail is always sent.
type Flags struct {
	// NotOnSilence suppresses the mail when the command produced no output.
	NotOnSilence bool
	// NotOnSuccess suppresses the mail when the command exited with zero.
	NotOnSuccess bool
	// NotOnSilentSuccess suppresses the mail when the command produced no
	// output and exited with zero.
	NotOnSilentSuccess bool
}

// Or merges two flag sets, a flag is set when set in any of them.
func (f Flags) Or(o Flags) Flags {
	return Flags{
		NotOnSilence:       f.NotOnSilence || o.NotOnSilence,
		NotOnSuccess:       f.NotOnSuccess || o.NotOnSuccess,
		NotOnSilentSuccess: f.NotOnSilentSuccess || o.NotOnSilentSuccess,
	}
}

// ShouldSend reports whether a mail is sent for a command which exited with
// exitCode and did (or did not) produce output.
//
// Setting both NotOnSilence and NotOnSuccess sends only when the command
// fails AND produces output.
func ShouldSend(exitCode int, hasOutput bool, flags Flags) bool {
	failed := exitCode != 0
	return (hasOutput || !flags.NotOnSilence) &&
		(failed || !flags.NotOnSuccess) &&
		(hasOutput || failed || !flags.NotOnSilentSuccess)
}
