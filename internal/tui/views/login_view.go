package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/wppcrm/internal/tui/ui"
	"github.com/rivo/tview"
)

// LoginView asks for the operator's backend credentials.
type LoginView struct {
	*tview.Flex
	theme    *ui.Theme
	form     *tview.Form
	message  *tview.TextView
	onSubmit func(username, password string)
}

// NewLoginView creates a new login form.
func NewLoginView(theme *ui.Theme) *LoginView {
	form := tview.NewForm()
	form.SetBackgroundColor(theme.BgColor)
	form.SetFieldBackgroundColor(theme.BgColor)
	form.SetFieldTextColor(theme.FgColor)
	form.SetLabelColor(theme.MenuKeyColor)
	form.SetButtonBackgroundColor(theme.TableCursorBg)
	form.SetButtonTextColor(theme.TableCursorFg)

	message := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	message.SetBackgroundColor(theme.BgColor)

	box := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(form, 7, 0, true).
		AddItem(message, 2, 0, false)
	box.SetBorder(true)
	box.SetBorderColor(theme.BorderColor)
	box.SetBackgroundColor(theme.BgColor)
	box.SetTitle(" Login ")
	box.SetTitleColor(theme.TitleColor)

	centered := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(box, 11, 0, true).
			AddItem(nil, 0, 1, false), 50, 0, true).
		AddItem(nil, 0, 1, false)

	lv := &LoginView{
		Flex:    centered,
		theme:   theme,
		form:    form,
		message: message,
	}

	form.AddInputField("Username", "", 30, nil, nil)
	form.AddPasswordField("Password", "", 30, '*', nil)
	form.AddButton("Login", lv.submit)
	return lv
}

// Name implements Component.
func (lv *LoginView) Name() string { return "Login" }

// Hints implements Component.
func (lv *LoginView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Tab", Description: "Next"},
		{Key: "Enter", Description: "Login"},
	}
}

// SetOnSubmit sets the callback when the form is submitted.
func (lv *LoginView) SetOnSubmit(fn func(username, password string)) {
	lv.onSubmit = fn
}

// Form returns the form primitive (for focus management).
func (lv *LoginView) Form() *tview.Form {
	return lv.form
}

func (lv *LoginView) submit() {
	user := strings.TrimSpace(lv.field("Username"))
	pass := lv.field("Password")
	if user == "" || pass == "" {
		lv.ShowError("username and password are required")
		return
	}
	lv.ShowMessage("signing in…")
	if lv.onSubmit != nil {
		lv.onSubmit(user, pass)
	}
}

func (lv *LoginView) field(label string) string {
	if f, ok := lv.form.GetFormItemByLabel(label).(*tview.InputField); ok {
		return f.GetText()
	}
	return ""
}

// Reset clears the password and any message.
func (lv *LoginView) Reset() {
	if f, ok := lv.form.GetFormItemByLabel("Password").(*tview.InputField); ok {
		f.SetText("")
	}
	lv.message.Clear()
	lv.form.SetFocus(0)
}

// ShowMessage displays a neutral status line.
func (lv *LoginView) ShowMessage(msg string) {
	lv.message.Clear()
	_, _ = fmt.Fprintf(lv.message, "[%s]%s[-]", ui.Tag(lv.theme.FgColor), tview.Escape(msg))
}

// ShowError displays a failure line.
func (lv *LoginView) ShowError(msg string) {
	lv.message.Clear()
	_, _ = fmt.Fprintf(lv.message, "[%s]%s[-]", ui.Tag(lv.theme.FlashErrColor), tview.Escape(msg))
}
