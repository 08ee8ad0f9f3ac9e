package bus

import "time"

// Event kinds published by the console. Subscribers filter by prefix, so
// "outbox." receives both send outcomes.
const (
	KindConnection  = "connection.status_changed"
	KindAuthExpired = "auth.expired"
	KindMessageSent = "outbox.sent"
	KindSendFailed  = "outbox.failed"
)

// Event is a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// NewEvent stamps an event with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
