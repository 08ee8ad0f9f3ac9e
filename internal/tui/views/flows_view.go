package views

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppcrm/internal/api"
	"github.com/matheus3301/wppcrm/internal/tui/ui"
	"github.com/rivo/tview"
)

// FlowsView lists WhatsApp flows and shows the selected one.
type FlowsView struct {
	*tview.Flex
	theme    *ui.Theme
	table    *tview.Table
	detail   *tview.TextView
	data     []api.Flow
	onSelect func(id int64)
}

// NewFlowsView creates a new flows view.
func NewFlowsView(theme *ui.Theme) *FlowsView {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetTitle(" Flows ")
	table.SetTitleColor(theme.TitleColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))

	detail := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	detail.SetBorder(true)
	detail.SetBorderColor(theme.BorderColor)
	detail.SetBackgroundColor(theme.BgColor)
	detail.SetTextColor(theme.FgColor)
	detail.SetTitle(" Flow ")
	detail.SetTitleColor(theme.TitleColor)

	fv := &FlowsView{
		Flex: tview.NewFlex().
			AddItem(table, 0, 1, true).
			AddItem(detail, 0, 1, false),
		theme:  theme,
		table:  table,
		detail: detail,
	}
	table.SetSelectionChangedFunc(func(row, _ int) {
		if f, ok := fv.flowAt(row); ok {
			fv.ShowFlow(&f)
		}
	})
	table.SetSelectedFunc(func(row, _ int) {
		if f, ok := fv.flowAt(row); ok && fv.onSelect != nil {
			fv.onSelect(f.ID)
		}
	})
	return fv
}

// Name implements Component.
func (fv *FlowsView) Name() string { return "Flows" }

// Hints implements Component.
func (fv *FlowsView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Screens"},
		{Key: "r", Description: "Reload"},
		{Key: "Esc", Description: "Back"},
	}
}

// SetOnSelect sets the callback that fetches a flow's full definition.
func (fv *FlowsView) SetOnSelect(fn func(id int64)) { fv.onSelect = fn }

// Update replaces the flow list.
func (fv *FlowsView) Update(flows []api.Flow) {
	fv.data = flows
	fv.table.Clear()
	headers := []string{" NAME", " STATUS", " CATEGORIES"}
	for col, h := range headers {
		fv.table.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(fv.theme.TableHeaderFg).
			SetBackgroundColor(fv.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold))
	}
	for i, f := range flows {
		row := i + 1
		fv.table.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(f.Name)).SetExpansion(1).SetTextColor(fv.theme.FgColor))
		fv.table.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(f.Status)).SetTextColor(fv.theme.FgColor))
		fv.table.SetCell(row, 2, tview.NewTableCell(" "+tview.Escape(strings.Join(f.Categories, ","))).SetTextColor(fv.theme.FgColor))
	}
	fv.table.SetTitle(fmt.Sprintf(" Flows (%d) ", len(flows)))
	if len(flows) > 0 {
		fv.table.Select(1, 0)
		fv.ShowFlow(&flows[0])
	} else {
		fv.detail.Clear()
	}
}

func (fv *FlowsView) flowAt(row int) (api.Flow, bool) {
	idx := row - 1
	if idx < 0 || idx >= len(fv.data) {
		return api.Flow{}, false
	}
	return fv.data[idx], true
}

// ShowFlow renders one flow in the detail pane.
func (fv *FlowsView) ShowFlow(f *api.Flow) {
	fv.detail.Clear()
	if f == nil {
		return
	}
	fv.detail.SetTitle(fmt.Sprintf(" %s ", tview.Escape(f.Name)))
	_, _ = fmt.Fprint(fv.detail, FormatFlow(f, fv.theme))
	fv.detail.ScrollToBeginning()
}

// FormatFlow renders a flow's attributes and, when present, its screens.
func FormatFlow(f *api.Flow, theme *ui.Theme) string {
	fg := ui.Tag(theme.FgColor)
	ct := ui.Tag(theme.CounterColor)
	key := ui.Tag(theme.MenuKeyColor)

	var sb strings.Builder
	rows := []struct{ label, value string }{
		{"Name:", f.Name},
		{"Status:", f.Status},
		{"Flow ID:", f.FlowID},
		{"Categories:", strings.Join(f.Categories, ", ")},
		{"About:", f.Description},
	}
	for _, r := range rows {
		if r.value == "" {
			r.value = "-"
		}
		fmt.Fprintf(&sb, " [%s::b]%-11s[-:-:-] [%s]%s[-]\n", fg, r.label, ct, tview.Escape(singleLine(r.value)))
	}

	screens := screenSummary(f.Screens)
	if screens == "" {
		return sb.String()
	}
	fmt.Fprintf(&sb, "\n [%s::b]SCREENS[-:-:-]\n%s", key, tview.Escape(screens))
	return sb.String()
}

// screenSummary lists screen ids and titles, or the indented JSON when the
// screens do not have the usual shape.
func screenSummary(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var screens []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal(raw, &screens); err == nil && len(screens) > 0 {
		var sb strings.Builder
		for _, s := range screens {
			fmt.Fprintf(&sb, "  %s", s.ID)
			if s.Title != "" {
				fmt.Fprintf(&sb, "  %s", s.Title)
			}
			sb.WriteString("\n")
		}
		return sb.String()
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "  ", "  "); err != nil {
		return ""
	}
	return "  " + buf.String() + "\n"
}
