package outbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/matheus3301/wppcrm/internal/api"
	"github.com/matheus3301/wppcrm/internal/bus"
	"github.com/matheus3301/wppcrm/internal/observability"
	"go.uber.org/zap"
)

// ErrEmptyMessage is returned for blank text sends.
var ErrEmptyMessage = errors.New("message is empty")

// MessageSender is the backend half of a send.
type MessageSender interface {
	SendText(ctx context.Context, contactID int64, content string) (*api.Message, error)
	SendTemplate(ctx context.Context, templateID, contactID int64, params map[string]string) (*api.Message, error)
}

// Journal records every send attempt and its outcome.
type Journal interface {
	RecordSend(clientMsgID string, contactID int64, kind, body string) error
	MarkSendConfirmed(clientMsgID, messageID string) error
	MarkSendFailed(clientMsgID, errMsg string) error
}

// Appender receives confirmed messages for the open conversation.
type Appender interface {
	AppendLocal(msg api.Message) bool
}

// Sent is the payload of bus.KindMessageSent.
type Sent struct {
	ClientMsgID string
	Message     api.Message
}

// Failed is the payload of bus.KindSendFailed.
type Failed struct {
	ClientMsgID string
	ContactID   int64
	Kind        string
	Err         error
}

// Sender issues sends one at a time, journals them and inserts the
// confirmed record into the timeline.
type Sender struct {
	backend  MessageSender
	journal  Journal
	timeline Appender
	bus      *bus.Bus
	logger   *zap.Logger

	mu sync.Mutex
}

// NewSender creates a new sender. journal, timeline and b may be nil.
func NewSender(backend MessageSender, journal Journal, timeline Appender, b *bus.Bus, logger *zap.Logger) *Sender {
	return &Sender{
		backend:  backend,
		journal:  journal,
		timeline: timeline,
		bus:      b,
		logger:   logger,
	}
}

// SendText sends a free-text message to a contact.
func (s *Sender) SendText(ctx context.Context, contactID int64, text string) (*api.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	return s.send(ctx, contactID, api.KindText, text, func(ctx context.Context) (*api.Message, error) {
		return s.backend.SendText(ctx, contactID, text)
	})
}

// SendTemplate sends an approved template. Every declared parameter must
// have a value.
func (s *Sender) SendTemplate(ctx context.Context, contactID int64, tmpl api.Template, params map[string]string) (*api.Message, error) {
	if missing := tmpl.MissingParameters(params); len(missing) > 0 {
		return nil, fmt.Errorf("template %q: missing parameters: %s", tmpl.Name, strings.Join(missing, ", "))
	}
	return s.send(ctx, contactID, api.KindTemplate, tmpl.Name, func(ctx context.Context) (*api.Message, error) {
		return s.backend.SendTemplate(ctx, tmpl.ID, contactID, params)
	})
}

func (s *Sender) send(ctx context.Context, contactID int64, kind, body string, do func(context.Context) (*api.Message, error)) (*api.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clientMsgID := uuid.NewString()
	log := s.logger.With(
		zap.String("client_msg_id", clientMsgID),
		zap.Int64("contact_id", contactID),
		zap.String("kind", kind),
	)
	if s.journal != nil {
		if err := s.journal.RecordSend(clientMsgID, contactID, kind, body); err != nil {
			log.Warn("failed to journal send", zap.Error(err))
		}
	}

	msg, err := do(ctx)
	if err != nil {
		observability.IncSend(kind, "failed")
		log.Error("failed to send message", zap.Error(err))
		if s.journal != nil {
			_ = s.journal.MarkSendFailed(clientMsgID, err.Error())
		}
		s.publish(bus.KindSendFailed, Failed{ClientMsgID: clientMsgID, ContactID: contactID, Kind: kind, Err: err})
		return nil, fmt.Errorf("send %s: %w", kind, err)
	}

	observability.IncSend(kind, "sent")
	if msg.ContactID == 0 {
		msg.ContactID = contactID
	}
	if s.journal != nil {
		if err := s.journal.MarkSendConfirmed(clientMsgID, msg.MessageID); err != nil {
			log.Warn("failed to mark send confirmed", zap.Error(err))
		}
	}
	if s.timeline != nil {
		s.timeline.AppendLocal(*msg)
	}
	log.Info("message sent", zap.String("message_id", msg.MessageID))
	s.publish(bus.KindMessageSent, Sent{ClientMsgID: clientMsgID, Message: *msg})
	return msg, nil
}

func (s *Sender) publish(kind string, payload any) {
	if s.bus != nil {
		s.bus.Publish(bus.NewEvent(kind, payload))
	}
}
