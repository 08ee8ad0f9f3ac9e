package views

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/matheus3301/wppcrm/internal/api"
	"github.com/matheus3301/wppcrm/internal/tui/ui"
	"github.com/rivo/tview"
)

// formatListTime renders a contact list timestamp: clock time today, weekday
// within the week, date otherwise.
func formatListTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.In(now.Location())
	y1, m1, d1 := t.Date()
	y2, m2, d2 := now.Date()
	switch {
	case y1 == y2 && m1 == m2 && d1 == d2:
		return t.Format("15:04")
	case now.Sub(t) < 7*24*time.Hour:
		return t.Format("Mon")
	case y1 == y2:
		return t.Format("Jan 2")
	default:
		return t.Format("02/01/06")
	}
}

// statusGlyph is the delivery marker shown after operator messages. Messages
// written by the contact carry none.
func statusGlyph(dir api.Direction, status string, theme *ui.Theme) string {
	if dir != api.FromOperator {
		return ""
	}
	switch status {
	case api.StatusSending, api.StatusSent:
		return "✓"
	case api.StatusDelivered:
		return "✓✓"
	case api.StatusRead:
		return fmt.Sprintf("[%s]✓✓[-]", ui.Tag(theme.ReadColor))
	case api.StatusFailed:
		return fmt.Sprintf("[%s]✗[-]", ui.Tag(theme.FailedColor))
	}
	return ""
}

// messageBody returns the printable text of a message, summarizing template
// and flow payloads that have no plain content.
func messageBody(m api.Message) string {
	var parts []string
	if m.Content != "" {
		parts = append(parts, m.Content)
	}
	switch m.MessageType {
	case api.KindTemplate:
		name := "template"
		if m.TemplateName != nil && *m.TemplateName != "" {
			name = *m.TemplateName
		}
		if m.Content == "" {
			for _, c := range m.TemplateComponents {
				if strings.EqualFold(c.Type, "BODY") && c.Text != "" {
					parts = append(parts, c.Text)
				}
			}
		}
		parts = append([]string{"[template: " + name + "]"}, parts...)
	case api.KindFlow:
		for _, fr := range m.FlowResponses {
			parts = append(parts, flowSummary(fr))
		}
		if len(m.FlowResponses) == 0 {
			parts = append([]string{"[flow]"}, parts...)
		}
	}
	if m.MediaURL != "" {
		parts = append(parts, "[media] "+m.MediaURL)
	}
	return strings.Join(parts, "\n")
}

func flowSummary(fr api.FlowResponse) string {
	title := fr.FlowName
	if fr.ScreenTitle != "" {
		title += " / " + fr.ScreenTitle
	}
	keys := make([]string, 0, len(fr.ResponseData))
	for k := range fr.ResponseData {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]string, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, fmt.Sprintf("%s=%v", k, fr.ResponseData[k]))
	}
	if len(fields) == 0 {
		return "[flow: " + title + "]"
	}
	return "[flow: " + title + "] " + strings.Join(fields, ", ")
}

// lastMessagePreview renders the contact list preview column.
func lastMessagePreview(lm *api.LastMessage, theme *ui.Theme) string {
	if lm == nil {
		return ""
	}
	text := lm.Content
	if text == "" && lm.MessageType != "" && lm.MessageType != api.KindText {
		text = "[" + lm.MessageType + "]"
	}
	dir := api.FromOperator
	if lm.IsFromUser {
		dir = api.FromContact
	}
	text = truncate(singleLine(text), 60)
	if g := statusGlyph(dir, lm.Status, theme); g != "" {
		return g + " " + tview.Escape(text)
	}
	return tview.Escape(text)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
