package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/wppcrm/internal/api"
	"github.com/matheus3301/wppcrm/internal/bus"
	"github.com/matheus3301/wppcrm/internal/realtime"
	"go.uber.org/zap"
)

type memCheckpoint struct {
	id  int64
	err error
}

func (m *memCheckpoint) SetLastContact(id int64) error { m.id = id; return m.err }
func (m *memCheckpoint) LastContact() (int64, error)   { return m.id, m.err }

func newTestEngine(t *testing.T) (*Engine, *bus.Topic[realtime.Event], *memCheckpoint) {
	t.Helper()
	topic := bus.NewTopic[realtime.Event](nil)
	tl := newTestTimeline(&fakeFetcher{respond: threePages})
	book := loadedBook(t)
	cp := &memCheckpoint{}
	e := NewEngine(topic, tl, book, cp, zap.NewNop())
	return e, topic, cp
}

func TestEngineOpen(t *testing.T) {
	e, _, cp := newTestEngine(t)
	e.Contacts().ApplyNewMessage(api.Message{MessageID: "w", ContactID: 1, IsFromUser: true})

	res, err := e.Open(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Page != 1 || res.Count != 2 {
		t.Errorf("result = %+v", res)
	}
	if e.Timeline().ContactID() != 1 || e.Contacts().Open() != 1 {
		t.Error("conversation not switched")
	}
	if c, _ := e.Contacts().Get(1); c.UnreadCount != 0 {
		t.Errorf("unread = %d after open", c.UnreadCount)
	}
	if cp.id != 1 || e.LastContact() != 1 {
		t.Errorf("last contact = %d", cp.id)
	}

	e.Close()
	if e.Timeline().ContactID() != 0 || e.Contacts().Open() != 0 {
		t.Error("conversation still open after Close")
	}
}

func TestEngineOpenSurvivesCheckpointError(t *testing.T) {
	e, _, cp := newTestEngine(t)
	cp.err = errors.New("disk full")
	if _, err := e.Open(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if e.LastContact() != 0 {
		t.Error("LastContact should report 0 on error")
	}
}

func TestEngineRoutesEvents(t *testing.T) {
	e, topic, _ := newTestEngine(t)
	if _, err := e.Open(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)
	defer e.Stop()

	live := api.Message{MessageID: "live", ContactID: 1, Content: "oi", IsFromUser: true, Status: api.StatusSent, Timestamp: base.Add(time.Hour)}
	other := api.Message{MessageID: "o1", ContactID: 2, Content: "hey", IsFromUser: true, Timestamp: base.Add(time.Hour)}
	topic.Publish(realtime.NewMessage{Message: live})
	topic.Publish(realtime.NewMessage{Message: live})
	topic.Publish(realtime.NewMessage{Message: other})
	topic.Publish(realtime.StatusUpdate{ContactID: 1, MessageID: "live", Status: api.StatusRead})
	topic.Publish(realtime.ContactUpdate{ContactID: 2, Name: "Bruno S"})

	deadline := time.Now().Add(2 * time.Second)
	for {
		c, _ := e.Contacts().Get(2)
		if c.Name == "Bruno S" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("events not routed")
		}
		time.Sleep(time.Millisecond)
	}

	equalIDs(t, e.Timeline().Messages(), "m40", "m50", "live")
	if got := e.Timeline().Messages()[2].Status; got != api.StatusRead {
		t.Errorf("live status = %q, want read", got)
	}
	if c, _ := e.Contacts().Get(1); c.UnreadCount != 0 {
		t.Errorf("open conversation unread = %d", c.UnreadCount)
	}
	if c, _ := e.Contacts().Get(2); c.UnreadCount != 1 {
		t.Errorf("other conversation unread = %d, want 1", c.UnreadCount)
	}
}

func TestEngineStatusForClosedConversationOnlyTouchesBook(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.Contacts().ApplyNewMessage(api.Message{MessageID: "w", ContactID: 2, Status: api.StatusSent})
	e.Apply(realtime.StatusUpdate{ContactID: 2, MessageID: "w", Status: api.StatusDelivered})

	if c, _ := e.Contacts().Get(2); c.LastMessage.Status != api.StatusDelivered {
		t.Errorf("status = %q", c.LastMessage.Status)
	}
	if len(e.Timeline().Messages()) != 0 {
		t.Error("timeline changed with no conversation open")
	}
}
