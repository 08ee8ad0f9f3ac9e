package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/wppcrm/internal/tui/ui"
	"github.com/rivo/tview"
)

type helpSection struct {
	title string
	keys  [][2]string
}

var helpSections = []helpSection{
	{"Global", [][2]string{
		{":", "Command mode"},
		{"/", "Filter contacts"},
		{"Esc", "Cancel / go back"},
		{"?", "Help"},
		{"q", "Quit"},
		{"Ctrl-C", "Quit immediately"},
	}},
	{"Contacts", [][2]string{
		{"Enter", "Open conversation"},
		{"1-9", "Open Nth contact"},
		{"d", "Contact details"},
		{"m", "Load more contacts"},
		{"r", "Reload first page"},
		{"j/k", "Move down / up"},
	}},
	{"Chat", [][2]string{
		{"i", "Focus composer"},
		{"Enter", "Send (in composer)"},
		{"o", "Load older messages"},
		{"r", "Reload newest page"},
		{"t", "Send a template"},
		{"d", "Contact details"},
		{"G", "Jump to newest"},
	}},
	{"Commands", [][2]string{
		{":contacts", "Contact list"},
		{":open <name>", "Open a conversation by name or phone"},
		{":templates", "Template catalogue"},
		{":flows", "Flow catalogue"},
		{":reconnect", "Reopen the realtime socket"},
		{":logout", "Forget the stored login"},
		{":help", "This page"},
		{":quit", "Quit"},
	}},
}

// HelpView displays key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	_, _ = fmt.Fprint(hv, FormatHelp(theme))
	return hv
}

// Name implements Component.
func (hv *HelpView) Name() string { return "Help" }

// Hints implements Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

// FormatHelp renders every help section.
func FormatHelp(theme *ui.Theme) string {
	kc := ui.Tag(theme.MenuKeyColor)
	var sb strings.Builder
	for _, s := range helpSections {
		fmt.Fprintf(&sb, "\n  [::b]%s[-:-:-]\n\n", s.title)
		for _, k := range s.keys {
			fmt.Fprintf(&sb, "  [%s]%-14s[-:-:-] %s\n", kc, tview.Escape(k[0]), k[1])
		}
	}
	return sb.String()
}
