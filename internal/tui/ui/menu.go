package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// menuRows is the header height available to hints.
const menuRows = 6

// Menu displays keyboard shortcut hints in columns.
type Menu struct {
	*tview.TextView
	theme *Theme
}

// NewMenu creates a new menu hint bar.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)

	return &Menu{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders hints column-major, menuRows per column.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	_, _ = fmt.Fprint(m, FormatMenu(hints, m.theme))
}

// FormatMenu lays hints out in columns of at most menuRows lines.
func FormatMenu(hints []MenuHint, theme *Theme) string {
	keyColor := colorName(theme.MenuKeyColor)
	numColor := colorName(theme.NumericKeyColor)

	rows := make([][]string, min(len(hints), menuRows))
	for i, h := range hints {
		kc := keyColor
		if h.Numeric {
			kc = numColor
		}
		cell := fmt.Sprintf("[%s::b]%-7s[-:-:-] %-14s", kc, "<"+h.Key+">", h.Description)
		rows[i%menuRows] = append(rows[i%menuRows], cell)
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = strings.TrimRight(strings.Join(r, " "), " ")
	}
	return strings.Join(lines, "\n")
}
