package model

// Recipient is a mail address. The zero value stands for the local mailbox
// of the invoking user.
type Recipient string

const DefaultRecipient Recipient = ""

func (r Recipient) IsDefault() bool {
	return r == DefaultRecipient
}

// String returns the address or "<default>" for DefaultRecipient.
func (r Recipient) String() string {
	if r.IsDefault() {
		return "<default>"
	}
	return string(r)
}

// Recipients converts configured addresses into a recipient list. It never
// returns an empty slice: no address means exactly one DefaultRecipient.
func Recipients(addrs []string) []Recipient {
	ret := make([]Recipient, 0, max(1, len(addrs)))
	for _, a := range addrs {
		ret = append(ret, Recipient(a))
	}
	if len(ret) == 0 {
		ret = append(ret, DefaultRecipient)
	}
	return ret
}

// OutgoingMessage is built once per run and handed over to a mail dispatcher.
type OutgoingMessage struct {
	Subject    string
	Body       string
	Recipients []Recipient
}
