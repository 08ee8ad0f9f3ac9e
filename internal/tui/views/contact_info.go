package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/wppcrm/internal/api"
	"github.com/matheus3301/wppcrm/internal/tui/ui"
	"github.com/rivo/tview"
)

// ContactInfo displays the full record of a contact and a QR code of its
// click-to-chat link.
type ContactInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewContactInfo creates a new contact details view.
func NewContactInfo(theme *ui.Theme) *ContactInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Contact ")
	tv.SetTitleColor(theme.TitleColor)

	return &ContactInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (ci *ContactInfo) Name() string { return "Details" }

// Hints implements Component.
func (ci *ContactInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Chat"},
		{Key: "Esc", Description: "Back"},
	}
}

// ShowLoading clears the view while the record is fetched.
func (ci *ContactInfo) ShowLoading(name string) {
	ci.Clear()
	ci.SetTitle(fmt.Sprintf(" %s ", tview.Escape(name)))
	_, _ = fmt.Fprint(ci, "\n  loading…")
}

// Update renders the contact record.
func (ci *ContactInfo) Update(c *api.ContactDetail) {
	ci.Clear()
	if c == nil {
		return
	}
	ci.SetTitle(fmt.Sprintf(" %s ", tview.Escape(c.Name)))
	_, _ = fmt.Fprint(ci, FormatContactDetail(c, ci.theme))
	ci.ScrollToBeginning()
}

// FormatContactDetail renders c as labelled rows followed by the QR code.
func FormatContactDetail(c *api.ContactDetail, theme *ui.Theme) string {
	fg := ui.Tag(theme.FgColor)
	ct := ui.Tag(theme.CounterColor)

	lastSeen := "-"
	if c.LastSeen != nil {
		lastSeen = c.LastSeen.Local().Format("Jan 2 15:04")
	}
	notes := "-"
	if c.Notes != nil && *c.Notes != "" {
		notes = *c.Notes
	}
	labels := "-"
	if len(c.Labels) > 0 {
		labels = strings.Join(c.Labels, ", ")
	}
	blocked := "no"
	if c.IsBlocked {
		blocked = "yes"
	}
	created := "-"
	if !c.CreatedAt.IsZero() {
		created = c.CreatedAt.Local().Format(time.DateOnly)
	}

	rows := []struct{ label, value string }{
		{"Name:", c.Name},
		{"Phone:", c.PhoneNumber},
		{"Country:", c.CountryCode},
		{"Unread:", fmt.Sprintf("%d", c.UnreadCount)},
		{"Labels:", labels},
		{"Notes:", notes},
		{"Blocked:", blocked},
		{"Last seen:", lastSeen},
		{"Created:", created},
	}
	var sb strings.Builder
	sb.WriteString("\n")
	for _, r := range rows {
		fmt.Fprintf(&sb, " [%s::b]%-11s[-:-:-] [%s]%s[-]\n", fg, r.label, ct, tview.Escape(singleLine(r.value)))
	}

	link := waLink(c.PhoneNumber)
	if link == "" {
		return sb.String()
	}
	fmt.Fprintf(&sb, "\n [%s::b]%-11s[-:-:-] [%s]%s[-]\n\n", fg, "Link:", ct, link)
	qr, err := renderQR(link)
	if err != nil {
		fmt.Fprintf(&sb, "  (QR generation failed: %s)\n", tview.Escape(err.Error()))
		return sb.String()
	}
	sb.WriteString(qr)
	return sb.String()
}
