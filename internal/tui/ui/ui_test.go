package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

type page struct {
	*tview.Box
	name string
}

func (p *page) Name() string      { return p.name }
func (p *page) Hints() []MenuHint { return nil }

func newPage(name string) *page { return &page{Box: tview.NewBox(), name: name} }

func TestPagesStack(t *testing.T) {
	p := NewPages()
	var seen [][]string
	p.SetOnChange(func(stack []Component) {
		names := make([]string, len(stack))
		for i, c := range stack {
			names[i] = c.Name()
		}
		seen = append(seen, names)
	})

	contacts, chat, help := newPage("Contacts"), newPage("Chat"), newPage("Help")
	p.Reset(contacts)
	p.Push(chat)
	p.Push(help)
	if got := strings.Join(p.Names(), ","); got != "Contacts,Chat,Help" {
		t.Fatalf("stack = %s", got)
	}
	if p.Pop() != help || p.Current() != chat {
		t.Fatal("pop should return help and expose chat")
	}
	p.Pop()
	if p.Pop() != nil {
		t.Error("the last page must not be popped")
	}
	if p.Depth() != 1 || p.Current() != contacts {
		t.Errorf("depth = %d current = %v", p.Depth(), p.Current())
	}

	p.Push(chat)
	p.Push(chat)
	if p.Depth() != 2 {
		t.Errorf("pushing the top page twice grew the stack to %d", p.Depth())
	}
	if len(seen) == 0 || strings.Join(seen[len(seen)-1], ",") != "Contacts,Chat" {
		t.Errorf("last notification = %v", seen)
	}
}

func TestFormatCrumbs(t *testing.T) {
	out := FormatCrumbs([]string{"Contacts", "Chat"}, DefaultTheme())
	if !strings.Contains(out, "<contacts>") || !strings.Contains(out, "<chat>") {
		t.Fatalf("crumbs = %q", out)
	}
	if strings.Index(out, "<contacts>") > strings.Index(out, "<chat>") {
		t.Error("crumbs out of order")
	}
	if !strings.Contains(out, "::b] <chat>") && !strings.Contains(out, ":b] <chat>") {
		t.Errorf("active crumb not bold: %q", out)
	}
}

func TestFormatMenuColumns(t *testing.T) {
	var hints []MenuHint
	for _, k := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		hints = append(hints, MenuHint{Key: k, Description: "do " + k})
	}
	lines := strings.Split(FormatMenu(hints, DefaultTheme()), "\n")
	if len(lines) != menuRows {
		t.Fatalf("rows = %d, want %d", len(lines), menuRows)
	}
	if !strings.Contains(lines[0], "<a>") || !strings.Contains(lines[0], "<g>") {
		t.Errorf("first row = %q, want a and g", lines[0])
	}
	if strings.Contains(lines[5], "<h>") {
		t.Errorf("h should wrap onto row 2: %q", lines[5])
	}
	if FormatMenu(nil, DefaultTheme()) != "" {
		t.Error("empty hints should render nothing")
	}
}

func TestFlashExpiresAndClears(t *testing.T) {
	f := NewFlashModel()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }

	f.Err(errors.New("boom"))
	m := f.GetMessage()
	if m == nil || m.Level != FlashErr || m.Text != "boom" {
		t.Fatalf("message = %+v", m)
	}
	select {
	case got := <-f.Watch():
		if got.Text != "boom" {
			t.Errorf("watched %q", got.Text)
		}
	default:
		t.Error("watch channel empty")
	}

	now = now.Add(11 * time.Second)
	if f.Get() != "" {
		t.Error("error flash should expire after 10s")
	}

	f.Infof("sent %d", 2)
	if f.Get() != "sent 2" {
		t.Fatalf("get = %q", f.Get())
	}
	f.Clear()
	if f.GetMessage() != nil {
		t.Error("clear left a message")
	}
}

func TestPromptHistory(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	p.Activate(PromptCommand)
	p.remember("contacts")
	p.remember("contacts")
	p.remember("open ana")
	if got := strings.Join(p.History(), "|"); got != "contacts|open ana" {
		t.Fatalf("history = %s", got)
	}

	p.Activate(PromptCommand)
	p.recall(-1)
	if p.GetText() != "open ana" {
		t.Errorf("up = %q", p.GetText())
	}
	p.recall(-1)
	p.recall(-1)
	if p.GetText() != "contacts" {
		t.Errorf("up past the start = %q", p.GetText())
	}
	p.recall(1)
	p.recall(1)
	if p.GetText() != "" {
		t.Errorf("down past the end = %q", p.GetText())
	}
}

func TestFormatSession(t *testing.T) {
	out := FormatSession(&SessionData{Session: "work", Connection: "CONNECTED", Contacts: 4, Unread: 2, Uptime: 90 * time.Minute}, DefaultTheme())
	for _, want := range []string{"work", "CONNECTED", "1h30m", "User:", "]-[-]"} {
		if !strings.Contains(out, want) {
			t.Errorf("session info missing %q:\n%s", want, out)
		}
	}
}

func TestConnectionColor(t *testing.T) {
	theme := DefaultTheme()
	tests := []struct {
		state string
		want  tcell.Color
	}{
		{"CONNECTED", theme.OnlineColor},
		{"CONNECTING", theme.PendingColor},
		{"RECONNECTING", theme.PendingColor},
		{"DISCONNECTED", theme.OfflineColor},
		{"AUTH_REQUIRED", theme.OfflineColor},
		{"", theme.OfflineColor},
	}
	for _, tt := range tests {
		if got := theme.ConnectionColor(tt.state); got != tt.want {
			t.Errorf("ConnectionColor(%q) = %v, want %v", tt.state, got, tt.want)
		}
	}
}
