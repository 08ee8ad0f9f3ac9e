package sync

import (
	"context"
	"fmt"

	"github.com/matheus3301/wppcrm/internal/realtime"
	"go.uber.org/zap"
)

// EventSource delivers classified realtime events.
type EventSource interface {
	Subscribe(bufSize int) (<-chan realtime.Event, func())
}

// Checkpointer remembers the last opened conversation across runs.
type Checkpointer interface {
	SetLastContact(id int64) error
	LastContact() (int64, error)
}

// Engine routes realtime events into the open Timeline and the ContactBook,
// and switches conversations.
type Engine struct {
	source   EventSource
	timeline *Timeline
	book     *ContactBook
	state    Checkpointer
	logger   *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewEngine creates a new sync engine. state may be nil.
func NewEngine(source EventSource, timeline *Timeline, book *ContactBook, state Checkpointer, logger *zap.Logger) *Engine {
	return &Engine{
		source:   source,
		timeline: timeline,
		book:     book,
		state:    state,
		logger:   logger,
	}
}

// Timeline returns the open conversation's message list.
func (e *Engine) Timeline() *Timeline { return e.timeline }

// Contacts returns the contact summary book.
func (e *Engine) Contacts() *ContactBook { return e.book }

// Start subscribes to realtime events.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.source.Subscribe(256)
	e.done = make(chan struct{})

	go func() {
		defer close(e.done)
		defer unsub()
		for {
			select {
			case ev := <-ch:
				e.Apply(ev)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and waits for the event loop to exit.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
}

// Apply routes one event.
func (e *Engine) Apply(ev realtime.Event) {
	switch ev := ev.(type) {
	case realtime.NewMessage:
		e.book.ApplyNewMessage(ev.Message)
		if ev.Message.ContactID == e.timeline.ContactID() {
			if e.timeline.AppendLocal(ev.Message) {
				e.logger.Debug("message appended",
					zap.Int64("contact_id", ev.Message.ContactID),
					zap.String("message_id", ev.Message.MessageID),
				)
			}
		}
	case realtime.StatusUpdate:
		if ev.ContactID == e.timeline.ContactID() {
			e.timeline.ApplyStatusUpdate(ev.MessageID, ev.Status, ev.DeliveredAt, ev.ReadAt)
		}
		e.book.ApplyStatusUpdate(ev)
	case realtime.ContactUpdate:
		e.book.ApplyContactUpdate(ev)
	}
}

// Open switches the timeline to contactID, marks it read and loads its newest
// page. The switch happens even when the load fails, so the caller can retry.
func (e *Engine) Open(ctx context.Context, contactID int64) (PageResult, error) {
	e.timeline.Reset(contactID)
	e.book.SetOpen(contactID)
	if e.state != nil {
		if err := e.state.SetLastContact(contactID); err != nil {
			e.logger.Warn("failed to remember last contact", zap.Error(err))
		}
	}
	res, err := e.timeline.LoadPage(ctx, 1)
	if err != nil {
		return res, fmt.Errorf("open contact %d: %w", contactID, err)
	}
	return res, nil
}

// Close closes the open conversation.
func (e *Engine) Close() {
	e.timeline.Reset(0)
	e.book.SetOpen(0)
}

// LastContact returns the conversation open when the previous run ended.
func (e *Engine) LastContact() int64 {
	if e.state == nil {
		return 0
	}
	id, err := e.state.LastContact()
	if err != nil {
		e.logger.Debug("no last contact", zap.Error(err))
		return 0
	}
	return id
}
