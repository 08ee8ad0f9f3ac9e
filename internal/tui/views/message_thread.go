package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppcrm/internal/api"
	"github.com/matheus3301/wppcrm/internal/dategroup"
	intsync "github.com/matheus3301/wppcrm/internal/sync"
	"github.com/matheus3301/wppcrm/internal/tui/ui"
	"github.com/rivo/tview"
)

// ThreadState is everything the thread renders.
type ThreadState struct {
	Contact string
	Buckets []dategroup.Bucket
	Cursor  intsync.Cursor
	Loading bool
}

// MessageThread displays one conversation and its composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *Composer
	follow   bool
	lastKey  string
	contact  string
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := NewComposer(theme)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
		follow:   true,
	}

	messages.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch ev.Key() {
		case tcell.KeyUp, tcell.KeyPgUp, tcell.KeyHome:
			mt.follow = false
		case tcell.KeyEnd:
			mt.Follow()
			return nil
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'k', 'g':
				mt.follow = false
			case 'G':
				mt.Follow()
				return nil
			}
		}
		return ev
	})

	return mt
}

// Name implements Component.
func (mt *MessageThread) Name() string { return "Chat" }

// Hints implements Component.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "o", Description: "Older"},
		{Key: "r", Description: "Reload"},
		{Key: "t", Description: "Templates"},
		{Key: "d", Description: "Details"},
		{Key: "G", Description: "Latest"},
		{Key: "Esc", Description: "Back"},
	}
}

// SetOnSend sets the callback when a message is sent.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.composer.SetOnSend(fn)
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *Composer {
	return mt.composer
}

// Follow scrolls to the newest message and keeps following new ones.
func (mt *MessageThread) Follow() {
	mt.follow = true
	mt.messages.ScrollToEnd()
}

// Following reports whether the view sticks to the newest message.
func (mt *MessageThread) Following() bool { return mt.follow }

// Update re-renders the conversation. It reports whether a message from the
// contact arrived below the visible area since the last update.
func (mt *MessageThread) Update(st ThreadState) bool {
	if st.Contact != mt.contact {
		mt.contact = st.Contact
		mt.lastKey = ""
		mt.follow = true
	}
	mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(st.Contact)))

	row, col := mt.messages.GetScrollOffset()
	mt.messages.Clear()
	_, _ = fmt.Fprint(mt.messages, RenderThread(st, mt.theme))

	last, ok := newestMessage(st.Buckets)
	unseen := false
	if ok {
		key := last.MessageID
		if key != mt.lastKey {
			unseen = mt.lastKey != "" && !mt.follow && last.Direction() == api.FromContact
			mt.lastKey = key
		}
	}
	if mt.follow {
		mt.messages.ScrollToEnd()
	} else {
		mt.messages.ScrollTo(row, col)
	}
	return unseen
}

func newestMessage(buckets []dategroup.Bucket) (api.Message, bool) {
	if len(buckets) == 0 {
		return api.Message{}, false
	}
	b := buckets[len(buckets)-1].Messages
	if len(b) == 0 {
		return api.Message{}, false
	}
	return b[len(b)-1], true
}

// RenderThread formats a conversation as tview-tagged text: one separator per
// calendar day followed by that day's messages, oldest first.
func RenderThread(st ThreadState, theme *ui.Theme) string {
	var sb strings.Builder
	dim := ui.Tag(theme.DayColor)

	switch {
	case st.Loading:
		fmt.Fprintf(&sb, "[%s]  loading…[-]\n\n", dim)
	case st.Cursor.HasNext:
		fmt.Fprintf(&sb, "[%s]  ↑ o: load older messages[-]\n\n", dim)
	}
	if len(st.Buckets) == 0 && !st.Loading {
		fmt.Fprintf(&sb, "[%s]  no messages yet[-]\n", dim)
	}

	for _, b := range st.Buckets {
		fmt.Fprintf(&sb, "[%s]──────── %s ────────[-]\n\n", dim, b.Label)
		for _, m := range b.Messages {
			writeMessage(&sb, m, st.Contact, theme)
		}
	}
	return sb.String()
}

func writeMessage(sb *strings.Builder, m api.Message, contact string, theme *ui.Theme) {
	dir := m.Direction()
	author, color := "You", ui.Tag(theme.OperatorColor)
	if dir == api.FromContact {
		author, color = contact, ui.Tag(theme.ContactColor)
		if author == "" {
			author = m.ContactName
		}
	}
	fmt.Fprintf(sb, "[%s::b]%s[-:-:-] [::d]%s[-:-:-]",
		color, tview.Escape(sanitizeForTerminal(author)), m.Timestamp.Local().Format("15:04"))
	if g := statusGlyph(dir, m.Status, theme); g != "" {
		sb.WriteString(" " + g)
	}
	sb.WriteString("\n")

	if r := m.ReplyToInfo; r != nil {
		quoted := r.Content
		if quoted == "" {
			quoted = "[" + r.MessageType + "]"
		}
		fmt.Fprintf(sb, "[::d]  ┃ %s[-:-:-]\n", tview.Escape(truncate(singleLine(quoted), 80)))
	}

	for _, line := range strings.Split(messageBody(m), "\n") {
		fmt.Fprintf(sb, "  %s\n", tview.Escape(sanitizeForTerminal(line)))
	}
	sb.WriteString("\n")
}
