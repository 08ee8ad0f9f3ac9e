package realtime

import (
	"errors"
	"time"

	"github.com/matheus3301/wppcrm/internal/api"
)

// ErrUnrecognizedFrame is returned by Classify for frames matching no known
// shape. Such frames are dropped at the transport boundary.
var ErrUnrecognizedFrame = errors.New("unrecognized realtime frame")

// Frame is the raw JSON pushed on /ws/contacts/. The backend does not tag
// frames reliably, so the shape decides what a frame means.
type Frame struct {
	EventType   *string          `json:"event_type"`
	ContactID   int64            `json:"contact_id"`
	MessageID   string           `json:"message_id"`
	ContactName string           `json:"contact_name"`
	PhoneNumber string           `json:"phone_number"`
	Content     string           `json:"content"`
	MediaURL    string           `json:"media_url"`
	IsFromUser  bool             `json:"is_from_user"`
	Timestamp   *time.Time       `json:"timestamp"`
	MessageType string           `json:"message_type"`
	Status      string           `json:"status"`
	DeliveredAt *time.Time       `json:"delivered_at"`
	ReadAt      *time.Time       `json:"read_at"`
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	UnreadCount *int             `json:"unread_count"`
	LastMessage *api.LastMessage `json:"last_message"`
}

// Event is one classified realtime event: NewMessage, StatusUpdate or
// ContactUpdate.
type Event interface {
	Kind() string
	isEvent()
}

// NewMessage announces a message that should be inserted in its conversation.
type NewMessage struct {
	Message api.Message
}

// StatusUpdate moves an existing message along its delivery lifecycle.
type StatusUpdate struct {
	ContactID   int64
	MessageID   string
	Status      string
	DeliveredAt *time.Time
	ReadAt      *time.Time
}

// ContactUpdate refreshes a contact summary.
type ContactUpdate struct {
	ContactID   int64
	Name        string
	PhoneNumber string
	UnreadCount *int
	LastMessage *api.LastMessage
}

func (NewMessage) Kind() string    { return "new_message" }
func (StatusUpdate) Kind() string  { return "status_update" }
func (ContactUpdate) Kind() string { return "contact_update" }

func (NewMessage) isEvent()    {}
func (StatusUpdate) isEvent()  {}
func (ContactUpdate) isEvent() {}

// Classify maps a frame to exactly one event. Rules apply in order:
//  1. contact, message id and content: a new message, even when the frame
//     announces itself as a status update.
//  2. id and name without a contact/message pair: a contact update.
//  3. contact and message id without content: a status update.
func Classify(f Frame) (Event, error) {
	hasPair := f.ContactID != 0 && f.MessageID != ""
	switch {
	case hasPair && f.Content != "":
		return NewMessage{Message: f.message()}, nil
	case !hasPair && f.ID != 0 && f.Name != "":
		return ContactUpdate{
			ContactID:   f.ID,
			Name:        f.Name,
			PhoneNumber: f.PhoneNumber,
			UnreadCount: f.UnreadCount,
			LastMessage: f.LastMessage,
		}, nil
	case hasPair:
		return StatusUpdate{
			ContactID:   f.ContactID,
			MessageID:   f.MessageID,
			Status:      f.Status,
			DeliveredAt: f.DeliveredAt,
			ReadAt:      f.ReadAt,
		}, nil
	default:
		return nil, ErrUnrecognizedFrame
	}
}

func (f Frame) message() api.Message {
	m := api.Message{
		MessageID:    f.MessageID,
		ContactID:    f.ContactID,
		ContactName:  f.ContactName,
		ContactPhone: f.PhoneNumber,
		Content:      f.Content,
		MediaURL:     f.MediaURL,
		IsFromUser:   f.IsFromUser,
		MessageType:  f.MessageType,
		Status:       f.Status,
		DeliveredAt:  f.DeliveredAt,
		ReadAt:       f.ReadAt,
	}
	if m.MessageType == "" {
		m.MessageType = api.KindText
	}
	if f.Timestamp != nil {
		m.Timestamp = *f.Timestamp
	} else {
		m.Timestamp = time.Now()
	}
	m.CreatedAt = m.Timestamp
	return m
}
