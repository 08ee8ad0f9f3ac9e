package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppcrm/internal/api"
	intsync "github.com/matheus3301/wppcrm/internal/sync"
	"github.com/matheus3301/wppcrm/internal/tui/ui"
	"github.com/rivo/tview"
)

const loadMoreLabel = " ↓ load more contacts"

// ContactList is the main contact table.
type ContactList struct {
	*tview.Table
	theme      *ui.Theme
	contacts   []api.Contact
	hasMore    bool
	total      int
	filter     string
	onOpen     func(id int64)
	onLoadMore func()
}

// NewContactList creates a new contact table.
func NewContactList(theme *ui.Theme) *ContactList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Contacts ")
	table.SetTitleColor(theme.TitleColor)

	cl := &ContactList{
		Table: table,
		theme: theme,
	}
	table.SetSelectedFunc(func(row, _ int) {
		if cl.isLoadMoreRow(row) {
			if cl.onLoadMore != nil {
				cl.onLoadMore()
			}
			return
		}
		if id := cl.contactAt(row); id != 0 && cl.onOpen != nil {
			cl.onOpen(id)
		}
	})
	return cl
}

// Name implements Component.
func (cl *ContactList) Name() string { return "Contacts" }

// Hints implements Component.
func (cl *ContactList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "d", Description: "Details"},
		{Key: "m", Description: "More"},
		{Key: "r", Description: "Reload"},
		{Key: "/", Description: "Filter"},
		{Key: "1-9", Description: "Jump", Numeric: true},
	}
}

// SetOnOpen sets the callback for opening a contact's conversation.
func (cl *ContactList) SetOnOpen(fn func(id int64)) { cl.onOpen = fn }

// SetOnLoadMore sets the callback for the load-more row.
func (cl *ContactList) SetOnLoadMore(fn func()) { cl.onLoadMore = fn }

// Update replaces the rows. contacts is already filtered by filter.
func (cl *ContactList) Update(contacts []api.Contact, cursor intsync.Cursor, filter string, now time.Time) {
	selected := cl.SelectedContact()
	cl.contacts = contacts
	cl.hasMore = cursor.HasNext && filter == ""
	cl.total = cursor.Total
	cl.filter = filter
	cl.render(now)
	cl.reselect(selected)
}

func (cl *ContactList) render(now time.Time) {
	cl.Clear()

	headers := []struct {
		text  string
		exp   int
		align int
	}{
		{" NAME", 1, tview.AlignLeft},
		{" PHONE", 0, tview.AlignLeft},
		{" LAST MESSAGE", 3, tview.AlignLeft},
		{" TIME", 0, tview.AlignRight},
		{" UNREAD", 0, tview.AlignRight},
	}
	for col, h := range headers {
		cl.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp).
			SetAlign(h.align))
	}

	for i, c := range cl.contacts {
		row := i + 1
		name := c.Name
		if name == "" {
			name = c.PhoneNumber
		}
		fg := cl.theme.FgColor
		unread := ""
		if c.UnreadCount > 0 {
			fg = cl.theme.UnreadColor
			unread = fmt.Sprintf("%d ", c.UnreadCount)
		}
		var ts time.Time
		if c.LastMessage != nil {
			ts = c.LastMessage.Timestamp
		}
		cl.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(singleLine(name))).SetExpansion(1).SetTextColor(fg))
		cl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(c.PhoneNumber)).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 2, tview.NewTableCell(" "+lastMessagePreview(c.LastMessage, cl.theme)).SetExpansion(3).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 3, tview.NewTableCell(" "+formatListTime(ts, now)).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
		cl.SetCell(row, 4, tview.NewTableCell(unread).SetTextColor(cl.theme.UnreadColor).SetAttributes(tcell.AttrBold).SetAlign(tview.AlignRight))
	}
	if cl.hasMore {
		cl.SetCell(len(cl.contacts)+1, 0, tview.NewTableCell(loadMoreLabel).
			SetTextColor(cl.theme.MenuKeyColor).
			SetExpansion(1))
	}

	switch {
	case cl.filter != "":
		cl.SetTitle(fmt.Sprintf(" Contacts (%d) filter: %s ", len(cl.contacts), tview.Escape(cl.filter)))
	case cl.total > len(cl.contacts):
		cl.SetTitle(fmt.Sprintf(" Contacts (%d/%d) ", len(cl.contacts), cl.total))
	default:
		cl.SetTitle(fmt.Sprintf(" Contacts (%d) ", len(cl.contacts)))
	}
}

func (cl *ContactList) reselect(id int64) {
	for i, c := range cl.contacts {
		if c.ID == id {
			cl.Select(i+1, 0)
			return
		}
	}
	if len(cl.contacts) > 0 {
		row, _ := cl.GetSelection()
		if row < 1 || row > len(cl.contacts) {
			cl.Select(1, 0)
		}
	}
}

func (cl *ContactList) isLoadMoreRow(row int) bool {
	return cl.hasMore && row == len(cl.contacts)+1
}

func (cl *ContactList) contactAt(row int) int64 {
	idx := row - 1
	if idx < 0 || idx >= len(cl.contacts) {
		return 0
	}
	return cl.contacts[idx].ID
}

// SelectedContact returns the id of the highlighted contact, or 0.
func (cl *ContactList) SelectedContact() int64 {
	row, _ := cl.GetSelection()
	return cl.contactAt(row)
}

// ContactByIndex returns the id of the Nth visible contact (1-based).
func (cl *ContactList) ContactByIndex(n int) int64 {
	return cl.contactAt(n)
}

// Len returns the number of visible contacts.
func (cl *ContactList) Len() int { return len(cl.contacts) }
