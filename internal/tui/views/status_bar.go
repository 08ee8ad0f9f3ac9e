package views

import (
	"fmt"
	"time"

	"github.com/matheus3301/wppcrm/internal/status"
	"github.com/matheus3301/wppcrm/internal/tui/ui"
	"github.com/rivo/tview"
)

// StatusBar displays the session, connection state and operator.
type StatusBar struct {
	*tview.TextView
	theme   *ui.Theme
	session string
	state   status.State
	user    string
	loading bool
	now     func() time.Time
}

// NewStatusBar creates a new status bar.
func NewStatusBar(theme *ui.Theme) *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv, theme: theme, now: time.Now}
}

// SetSession updates the session name display.
func (sb *StatusBar) SetSession(name string) {
	sb.session = name
	sb.render()
}

// SetState updates the connection state display.
func (sb *StatusBar) SetState(s status.State) {
	sb.state = s
	sb.render()
}

// SetUser updates the operator display.
func (sb *StatusBar) SetUser(user string) {
	sb.user = user
	sb.render()
}

// SetLoading toggles the loading indicator.
func (sb *StatusBar) SetLoading(loading bool) {
	sb.loading = loading
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()
	_, _ = fmt.Fprint(sb, FormatStatus(sb.session, sb.state, sb.user, sb.loading, sb.now(), sb.theme))
}

// FormatStatus renders the status line.
func FormatStatus(session string, state status.State, user string, loading bool, now time.Time, theme *ui.Theme) string {
	if state == "" {
		state = status.Disconnected
	}
	color := ui.Tag(theme.ConnectionColor(string(state)))
	busy := " "
	if loading {
		busy = "[green]~[-]"
	}
	if user == "" {
		user = "not logged in"
	}
	return fmt.Sprintf(" [::b]%s[-:-:-] | [%s]%s[-] %s | %s | %s",
		tview.Escape(session), color, state, busy, tview.Escape(user), now.Format("15:04"))
}
