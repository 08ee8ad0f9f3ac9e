package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppcrm/internal/api"
	"github.com/matheus3301/wppcrm/internal/tui/ui"
	"github.com/rivo/tview"
)

// TemplatesView lists message templates, shows the highlighted one and
// collects its parameters before sending it to the open conversation.
type TemplatesView struct {
	*tview.Flex
	theme   *ui.Theme
	table   *tview.Table
	detail  *tview.TextView
	form    *tview.Form
	data    []api.Template
	target  string
	onSend  func(tmpl api.Template, params map[string]string)
	focus   func(p tview.Primitive)
	editing *api.Template
}

// NewTemplatesView creates a new templates view.
func NewTemplatesView(theme *ui.Theme) *TemplatesView {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetTitle(" Templates ")
	table.SetTitleColor(theme.TitleColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))

	detail := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	detail.SetBorder(true)
	detail.SetBorderColor(theme.BorderColor)
	detail.SetBackgroundColor(theme.BgColor)
	detail.SetTextColor(theme.FgColor)
	detail.SetTitle(" Template ")
	detail.SetTitleColor(theme.TitleColor)

	form := tview.NewForm()
	form.SetBorder(true)
	form.SetBorderColor(theme.BorderColor)
	form.SetBackgroundColor(theme.BgColor)
	form.SetFieldBackgroundColor(theme.BgColor)
	form.SetFieldTextColor(theme.FgColor)
	form.SetLabelColor(theme.MenuKeyColor)
	form.SetButtonBackgroundColor(theme.TableCursorBg)
	form.SetButtonTextColor(theme.TableCursorFg)
	form.SetTitle(" Parameters ")
	form.SetTitleColor(theme.TitleColor)

	right := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(detail, 0, 1, false).
		AddItem(form, 0, 1, false)

	flex := tview.NewFlex().
		AddItem(table, 0, 1, true).
		AddItem(right, 0, 1, false)

	tv := &TemplatesView{
		Flex:   flex,
		theme:  theme,
		table:  table,
		detail: detail,
		form:   form,
	}
	table.SetSelectionChangedFunc(func(row, _ int) {
		if t, ok := tv.templateAt(row); ok {
			tv.showDetail(t)
		}
	})
	table.SetSelectedFunc(func(row, _ int) {
		if t, ok := tv.templateAt(row); ok {
			tv.edit(t)
		}
	})
	return tv
}

// Name implements Component.
func (tv *TemplatesView) Name() string { return "Templates" }

// Hints implements Component.
func (tv *TemplatesView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Fill & Send"},
		{Key: "r", Description: "Reload"},
		{Key: "Esc", Description: "Back"},
	}
}

// SetOnSend sets the callback when a filled template is submitted.
func (tv *TemplatesView) SetOnSend(fn func(tmpl api.Template, params map[string]string)) {
	tv.onSend = fn
}

// SetFocusFunc lets the view move application focus between its parts.
func (tv *TemplatesView) SetFocusFunc(fn func(p tview.Primitive)) {
	tv.focus = fn
}

// SetTarget names the conversation templates will be sent to.
func (tv *TemplatesView) SetTarget(name string) {
	tv.target = name
	if name == "" {
		tv.form.SetTitle(" Parameters (no conversation open) ")
		return
	}
	tv.form.SetTitle(fmt.Sprintf(" Parameters → %s ", tview.Escape(name)))
}

// Table returns the template table (for focus management).
func (tv *TemplatesView) Table() *tview.Table { return tv.table }

// Editing reports whether the parameter form has focus.
func (tv *TemplatesView) Editing() bool { return tv.editing != nil }

// Update replaces the template list.
func (tv *TemplatesView) Update(templates []api.Template) {
	tv.data = templates
	tv.table.Clear()

	headers := []string{" NAME", " CATEGORY", " LANGUAGE", " STATUS", " PARAMS"}
	for col, h := range headers {
		tv.table.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(tv.theme.TableHeaderFg).
			SetBackgroundColor(tv.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold))
	}
	for i, t := range templates {
		row := i + 1
		tv.table.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(t.Name)).SetExpansion(1).SetTextColor(tv.theme.FgColor))
		tv.table.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(t.Category)).SetTextColor(tv.theme.FgColor))
		tv.table.SetCell(row, 2, tview.NewTableCell(" "+tview.Escape(t.Language)).SetTextColor(tv.theme.FgColor))
		tv.table.SetCell(row, 3, tview.NewTableCell(" "+tview.Escape(t.Status)).SetTextColor(tv.theme.FgColor))
		tv.table.SetCell(row, 4, tview.NewTableCell(fmt.Sprintf(" %d", len(t.PayloadStructure.Parameters))).SetTextColor(tv.theme.FgColor).SetAlign(tview.AlignRight))
	}
	tv.table.SetTitle(fmt.Sprintf(" Templates (%d) ", len(templates)))
	if len(templates) > 0 {
		tv.table.Select(1, 0)
		tv.showDetail(templates[0])
	} else {
		tv.detail.Clear()
	}
}

func (tv *TemplatesView) templateAt(row int) (api.Template, bool) {
	idx := row - 1
	if idx < 0 || idx >= len(tv.data) {
		return api.Template{}, false
	}
	return tv.data[idx], true
}

func (tv *TemplatesView) showDetail(t api.Template) {
	tv.detail.Clear()
	tv.detail.SetTitle(fmt.Sprintf(" %s ", tview.Escape(t.Name)))
	_, _ = fmt.Fprint(tv.detail, FormatTemplate(t, tv.theme))
	tv.detail.ScrollToBeginning()
}

func (tv *TemplatesView) edit(t api.Template) {
	tv.editing = &t
	tv.form.Clear(true)
	for _, p := range t.PayloadStructure.Parameters {
		tv.form.AddInputField(p.Name, "", 30, nil, nil)
		if f, ok := tv.form.GetFormItemByLabel(p.Name).(*tview.InputField); ok && p.Example != "" {
			f.SetPlaceholder(p.Example)
		}
	}
	tv.form.AddButton("Send", tv.submit)
	tv.form.AddButton("Cancel", tv.CancelEdit)
	tv.form.SetCancelFunc(tv.CancelEdit)
	if tv.focus != nil {
		tv.focus(tv.form)
	}
}

// CancelEdit leaves the parameter form.
func (tv *TemplatesView) CancelEdit() {
	tv.editing = nil
	tv.form.Clear(true)
	if tv.focus != nil {
		tv.focus(tv.table)
	}
}

func (tv *TemplatesView) submit() {
	if tv.editing == nil {
		return
	}
	t := *tv.editing
	params := make(map[string]string, len(t.PayloadStructure.Parameters))
	for _, p := range t.PayloadStructure.Parameters {
		if f, ok := tv.form.GetFormItemByLabel(p.Name).(*tview.InputField); ok {
			params[p.Name] = strings.TrimSpace(f.GetText())
		}
	}
	tv.CancelEdit()
	if tv.onSend != nil {
		tv.onSend(t, params)
	}
}

// FormatTemplate renders a template's components and declared parameters.
func FormatTemplate(t api.Template, theme *ui.Theme) string {
	fg := ui.Tag(theme.FgColor)
	key := ui.Tag(theme.MenuKeyColor)
	var sb strings.Builder

	fmt.Fprintf(&sb, "[%s::b]%s[-:-:-] · %s · %s · %s\n\n", fg,
		tview.Escape(t.Name), tview.Escape(t.Category), tview.Escape(t.Language), tview.Escape(t.Status))
	for _, c := range t.Components {
		fmt.Fprintf(&sb, "[%s::b]%s[-:-:-]", key, tview.Escape(strings.ToUpper(c.Type)))
		if c.Format != "" {
			fmt.Fprintf(&sb, " (%s)", tview.Escape(c.Format))
		}
		sb.WriteString("\n")
		if c.Text != "" {
			fmt.Fprintf(&sb, "  %s\n", tview.Escape(sanitizeForTerminal(c.Text)))
		}
		for _, b := range c.Buttons {
			fmt.Fprintf(&sb, "  (%s) %s", tview.Escape(b.Type), tview.Escape(b.Text))
			if b.URL != "" {
				fmt.Fprintf(&sb, " → %s", tview.Escape(b.URL))
			}
			sb.WriteString("\n")
		}
	}
	if params := t.PayloadStructure.Parameters; len(params) > 0 {
		fmt.Fprintf(&sb, "\n[%s::b]PARAMETERS[-:-:-]\n", key)
		for _, p := range params {
			fmt.Fprintf(&sb, "  %s (%s)", tview.Escape(p.Name), tview.Escape(p.Type))
			if p.Example != "" {
				fmt.Fprintf(&sb, " e.g. %s", tview.Escape(p.Example))
			}
			if p.Description != "" {
				fmt.Fprintf(&sb, " · %s", tview.Escape(p.Description))
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
