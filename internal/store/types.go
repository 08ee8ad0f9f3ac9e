package store

// SendEntry is one row of the send journal.
type SendEntry struct {
	ID           int64
	ClientMsgID  string
	ContactID    int64
	Kind         string // text, template
	Body         string
	Status       string // sending, sent, failed
	MessageID    string
	ErrorMessage string
	CreatedAt    int64
}
