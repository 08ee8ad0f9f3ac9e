package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Crumbs is a breadcrumb bar showing the current navigation path.
type Crumbs struct {
	*tview.TextView
	theme *Theme
}

// NewCrumbs creates a new breadcrumb bar.
func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &Crumbs{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the breadcrumb trail, bottom of the stack first.
func (c *Crumbs) Update(names []string) {
	c.Clear()
	_, _ = fmt.Fprint(c, FormatCrumbs(names, c.theme))
}

// FormatCrumbs renders names as tagged crumbs; the last one is active.
func FormatCrumbs(names []string, theme *Theme) string {
	parts := make([]string, 0, len(names))
	for i, name := range names {
		fg, bg, attr := theme.CrumbInactiveFg, theme.CrumbInactiveBg, ""
		if i == len(names)-1 {
			fg, bg, attr = theme.CrumbActiveFg, theme.CrumbActiveBg, "b"
		}
		parts = append(parts, fmt.Sprintf("[%s:%s:%s] <%s> [-:-:-]",
			colorName(fg), colorName(bg), attr, tview.Escape(strings.ToLower(name))))
	}
	return strings.Join(parts, " ")
}

// colorName returns the tview tag name of c. Colors with several names
// resolve to the alphabetically first one.
func colorName(c tcell.Color) string {
	best := ""
	for name, val := range tcell.ColorNames {
		if val == c && (best == "" || name < best) {
			best = name
		}
	}
	if best != "" {
		return best
	}
	return fmt.Sprintf("#%06x", c.Hex())
}
