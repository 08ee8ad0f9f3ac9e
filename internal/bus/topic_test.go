package bus

import (
	"testing"
	"time"
)

type ping struct{ n int }

func TestTopicFanOut(t *testing.T) {
	topic := NewTopic[ping](nil)
	a, unsubA := topic.Subscribe(4)
	defer unsubA()
	b, unsubB := topic.Subscribe(4)
	defer unsubB()

	topic.Publish(ping{n: 7})

	for i, ch := range []<-chan ping{a, b} {
		select {
		case v := <-ch:
			if v.n != 7 {
				t.Errorf("subscriber %d got %d, want 7", i, v.n)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d timed out", i)
		}
	}
}

func TestTopicDropAndUnsubscribe(t *testing.T) {
	drops := 0
	topic := NewTopic(func(ping) { drops++ })
	ch, unsub := topic.Subscribe(1)

	topic.Publish(ping{n: 1})
	topic.Publish(ping{n: 2})
	if drops != 1 {
		t.Errorf("drops = %d, want 1", drops)
	}
	if v := <-ch; v.n != 1 {
		t.Errorf("got %d, want 1", v.n)
	}

	unsub()
	topic.Publish(ping{n: 3})
	select {
	case v := <-ch:
		t.Errorf("received %v after unsubscribe", v)
	case <-time.After(50 * time.Millisecond):
	}
}
