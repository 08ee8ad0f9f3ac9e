package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// SessionData holds session information for display.
type SessionData struct {
	Session    string
	User       string
	API        string
	Connection string
	Contacts   int
	Unread     int
	Uptime     time.Duration
}

// SessionInfo displays session metadata in the header.
type SessionInfo struct {
	*tview.TextView
	theme *Theme
}

// NewSessionInfo creates a new session info panel.
func NewSessionInfo(theme *Theme) *SessionInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &SessionInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the session info.
func (si *SessionInfo) Update(data *SessionData) {
	si.Clear()
	if data == nil {
		return
	}
	_, _ = fmt.Fprint(si, FormatSession(data, si.theme))
}

// FormatSession renders data as tview-tagged lines.
func FormatSession(data *SessionData, theme *Theme) string {
	fg := colorName(theme.FgColor)
	ct := colorName(theme.CounterColor)

	user := data.User
	if user == "" {
		user = "-"
	}
	rows := []struct {
		label string
		value string
		color string
	}{
		{"Session:", data.Session, ct},
		{"User:", user, ct},
		{"API:", data.API, ct},
		{"Socket:", data.Connection, colorName(theme.ConnectionColor(data.Connection))},
		{"Contacts:", fmt.Sprintf("%d", data.Contacts), ct},
		{"Unread:", fmt.Sprintf("%d", data.Unread), ct},
		{"Uptime:", formatDuration(data.Uptime), ct},
	}
	var out string
	for i, r := range rows {
		if i > 0 {
			out += "\n"
		}
		out += fmt.Sprintf("[%s::b]%-9s[-:-:-] [%s]%s[-]", fg, r.label, r.color, tview.Escape(r.value))
	}
	return out
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
